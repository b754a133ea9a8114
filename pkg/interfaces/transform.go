// Package interfaces 定义 go-mcproto 公共接口
//
// 本文件定义变换阶段接口，抽象帧、压缩、加密、序列化四类双工转换器。
package interfaces

import (
	"context"
	"fmt"
)

// Push 向下游输出一个数据块
//
// 字节阶段输出 []byte，序列化阶段（输入方向）输出 *types.Packet。
type Push func(chunk any) error

// Transformer 双工转换器
//
// Transform 处理一个输入块，可以调用 push 零次或多次。push 返回错误时
// Transform 应停止输出并把错误返回。Transform 返回的错误由 Pipeline
// 交给错误处理器；致命错误（types.IsFatal）会终止连接。
type Transformer interface {
	Transform(ctx context.Context, chunk any, push Push) error

	// Close 释放资源，之后不会再被调用 Transform
	Close() error
}

// HotReloader 可在存活实例上直接修改参数的转换器
//
// Pipeline.Update 对比新旧选项，只把变化的字段逐个交给 Apply，
// 不会重建实例，缓冲中的数据不受影响。
type HotReloader interface {
	Transformer

	// Apply 修改单个字段，未知字段返回错误
	Apply(field string, value any) error
}

// FlowControl 报告阶段的流控容量（高水位）
type FlowControl interface {
	// WritableHighWaterMark 入站方向可缓冲的最大量
	WritableHighWaterMark() int

	// ReadableHighWaterMark 出站方向可缓冲的最大量
	ReadableHighWaterMark() int
}

// Constructor 阶段构造函数
//
// 构造函数必须是选项的纯函数，热重载依赖它从"上次选项 + 增量"重建阶段。
type Constructor func(opts Options) (Transformer, error)

// ============================================================================
//                              Options
// ============================================================================

// Options 阶段选项（字段名 -> 值）
//
// nil 表示阶段被禁用，由 Pipeline 以直通阶段占位。
type Options map[string]any

// Clone 返回浅拷贝
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge 返回 o 合并 delta 后的新选项，delta 中的字段覆盖 o
func (o Options) Merge(delta Options) Options {
	out := o.Clone()
	if out == nil {
		out = make(Options, len(delta))
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// Int 读取整数字段
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool 读取布尔字段
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Str 读取字符串字段（实现了 fmt.Stringer 的值也可以）
func (o Options) Str(key string, def string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return def
}

// Bytes 读取字节切片字段
func (o Options) Bytes(key string) []byte {
	if v, ok := o[key].([]byte); ok {
		return v
	}
	return nil
}
