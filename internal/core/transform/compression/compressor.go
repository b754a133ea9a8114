package compression

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/internal/util/varint"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// 确保实现了接口
var (
	_ interfaces.HotReloader = (*Compressor)(nil)
	_ interfaces.FlowControl = (*Compressor)(nil)
)

// Compressor 输出方向压缩器
//
// 每个输入块只输出一个帧体：压缩后的或原始的，两者互斥。
type Compressor struct {
	threshold  atomic.Int64
	hideErrors atomic.Bool

	buf bytes.Buffer
	zw  *zlib.Writer
}

// NewCompressor 创建压缩器
func NewCompressor(threshold int) *Compressor {
	c := &Compressor{}
	c.threshold.Store(int64(EffectiveThreshold(threshold)))
	return c
}

// Threshold 返回生效的阈值（禁用时为 -1）
func (c *Compressor) Threshold() int {
	return int(c.threshold.Load())
}

// Enabled 是否启用压缩
func (c *Compressor) Enabled() bool {
	return c.threshold.Load() >= 0
}

// Transform 压缩或标记为未压缩
func (c *Compressor) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	b, err := transform.Bytes(chunk)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	threshold := c.Threshold()
	if threshold < 0 {
		return push(b)
	}

	if len(b) >= threshold && len(b) < types.MaxPacketSize {
		out, err := c.deflate(b)
		if err != nil {
			return fmt.Errorf("compression: deflate %d bytes: %w", len(b), err)
		}
		return push(out)
	}

	out := make([]byte, 0, 1+len(b))
	out = varint.Append(out, 0)
	return push(append(out, b...))
}

// deflate 输出 varint(len(b)) + zlib(b)
func (c *Compressor) deflate(b []byte) ([]byte, error) {
	c.buf.Reset()
	if c.zw == nil {
		c.zw = zlib.NewWriter(&c.buf)
	} else {
		c.zw.Reset(&c.buf)
	}
	if _, err := c.zw.Write(b); err != nil {
		return nil, err
	}
	if err := c.zw.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, varint.Size(int32(len(b)))+c.buf.Len())
	out = varint.Append(out, int32(len(b)))
	return append(out, c.buf.Bytes()...), nil
}

// Apply 热更新字段
func (c *Compressor) Apply(field string, value any) error {
	switch field {
	case OptThreshold:
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("compression: %s must be int, got %T", field, value)
		}
		c.threshold.Store(int64(EffectiveThreshold(v)))
		return nil
	case OptHideErrors:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("compression: %s must be bool, got %T", field, value)
		}
		c.hideErrors.Store(v)
		return nil
	case OptStrict:
		return nil
	}
	return fmt.Errorf("compression: unknown compressor option %q", field)
}

// Close 释放 zlib writer
func (c *Compressor) Close() error {
	c.zw = nil
	c.buf = bytes.Buffer{}
	return nil
}

// WritableHighWaterMark 实现 FlowControl
func (c *Compressor) WritableHighWaterMark() int { return transform.ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (c *Compressor) ReadableHighWaterMark() int { return transform.ByteHighWaterMark }

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	}
	return 0, false
}
