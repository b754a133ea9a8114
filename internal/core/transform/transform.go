// Package transform 提供变换阶段共用的基础设施
//
// 四类阶段分别位于子包中：
//   - framing       - 帧切分（Splitter）与帧封装（Framer）
//   - compression   - zlib 压缩（Compressor）与解压（Decompressor）
//   - encryption    - AES-128/CFB8 流加密（Cipher / Decipher）
//   - serialization - 数据包序列化（Serializer / Deserializer）
//
// 每个子包都导出 CreateInput / CreateOutput 两个构造函数，它们只依赖
// 传入的选项，Pipeline 可以据此在热重载时重建阶段。
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// 默认流控高水位
const (
	// ByteHighWaterMark 字节阶段的缓冲上限
	ByteHighWaterMark = 16 * 1024

	// ObjectHighWaterMark 对象阶段（数据包）的缓冲上限
	ObjectHighWaterMark = 16
)

// ErrUnexpectedChunk 输入块类型与阶段不匹配
var ErrUnexpectedChunk = errors.New("transform: unexpected chunk type")

// Bytes 将输入块断言为字节切片
func Bytes(chunk any) ([]byte, error) {
	b, ok := chunk.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: want []byte, got %T", ErrUnexpectedChunk, chunk)
	}
	return b, nil
}

// ============================================================================
//                              Passthrough
// ============================================================================

// 确保实现了接口
var (
	_ interfaces.Transformer = (*Passthrough)(nil)
	_ interfaces.FlowControl = (*Passthrough)(nil)
)

// Passthrough 直通阶段
//
// 阶段被禁用（选项为 nil）时用它占位，保持管道形状不变。
type Passthrough struct{}

// NewPassthrough 创建直通阶段
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Transform 原样输出
func (p *Passthrough) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return push(chunk)
}

// Close 无资源可释放
func (p *Passthrough) Close() error { return nil }

// WritableHighWaterMark 实现 FlowControl
func (p *Passthrough) WritableHighWaterMark() int { return ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (p *Passthrough) ReadableHighWaterMark() int { return ByteHighWaterMark }

// IsPassthrough 判断转换器是否为直通占位
func IsPassthrough(t interfaces.Transformer) bool {
	_, ok := t.(*Passthrough)
	return ok
}
