package framing

import (
	"context"
	"fmt"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/internal/util/varint"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// 确保实现了接口
var (
	_ interfaces.Transformer = (*Framer)(nil)
	_ interfaces.FlowControl = (*Framer)(nil)
)

// Framer 帧封装器，为每个字节块加上 varint 长度前缀
type Framer struct{}

// NewFramer 创建帧封装器
func NewFramer() *Framer {
	return &Framer{}
}

// Transform 输出 varint(len) + chunk
func (f *Framer) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	b, err := transform.Bytes(chunk)
	if err != nil {
		return err
	}
	if len(b) > types.MaxPacketSize {
		return types.Fatal("framing", fmt.Errorf("%w: outgoing %d, max %d", types.ErrOversizedFrame, len(b), types.MaxPacketSize))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := varint.Append(make([]byte, 0, varint.Size(int32(len(b)))+len(b)), int32(len(b)))
	return push(append(frame, b...))
}

// Close 无资源可释放
func (f *Framer) Close() error { return nil }

// WritableHighWaterMark 实现 FlowControl
func (f *Framer) WritableHighWaterMark() int { return transform.ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (f *Framer) ReadableHighWaterMark() int { return transform.ByteHighWaterMark }
