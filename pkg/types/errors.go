package types

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
//                              错误分类
// ============================================================================

var (
	// ErrIncompleteFrame 帧数据不足（缓冲状态，不是真正的错误）
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrOversizedFrame 声明长度超过协议最大值（致命）
	ErrOversizedFrame = errors.New("oversized frame")

	// ErrDecompression 解压失败或解压长度不匹配（默认非致命）
	ErrDecompression = errors.New("decompression failure")

	// ErrSerialization 序列化失败（非致命）
	ErrSerialization = errors.New("serialization error")

	// ErrDeserialization 反序列化失败（非致命）
	ErrDeserialization = errors.New("deserialization error")

	// ErrCipher 流加密失败（致命）
	ErrCipher = errors.New("cipher failure")

	// ErrTransport 底层 socket 错误或超时（致命）
	ErrTransport = errors.New("transport error")
)

// ============================================================================
//                              CodecError
// ============================================================================

// CodecError 单个数据包的编解码错误
//
// Field 为点分路径 state.direction.fieldPath，调用方可以据此记录日志后
// 继续处理后续帧。
type CodecError struct {
	// Kind 为 ErrSerialization 或 ErrDeserialization
	Kind error

	State     State
	Direction Direction

	// Path schema 内部的字段路径，如 "keep_alive.keepAliveId"
	Path string

	// Partial 反序列化失败时已解析的部分数据（可能为 nil）
	Partial *Packet

	Err error
}

// Field 返回完整的点分字段路径
func (e *CodecError) Field() string {
	parts := []string{string(e.State), string(e.Direction)}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	return strings.Join(parts, ".")
}

func (e *CodecError) Error() string {
	verb := "Deserialization"
	if errors.Is(e.Kind, ErrSerialization) {
		verb = "Serialization"
	}
	return fmt.Sprintf("%s error for %s : %v", verb, e.Field(), e.Err)
}

// Unwrap 同时暴露错误类别与底层错误
func (e *CodecError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ============================================================================
//                              FatalError
// ============================================================================

// FatalError 破坏字节流完整性的错误，会导致连接终止
type FatalError struct {
	// Stage 出错的阶段名称
	Stage string
	Err   error
}

// Fatal 将错误标记为致命
func Fatal(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Stage: stage, Err: err}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal 判断错误是否应提升为连接终止
//
// 显式的 FatalError 以及超长帧、加密失败、传输错误都视为致命。
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	return errors.Is(err, ErrOversizedFrame) ||
		errors.Is(err, ErrCipher) ||
		errors.Is(err, ErrTransport)
}
