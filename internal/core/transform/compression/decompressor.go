package compression

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/internal/util/varint"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("transform/compression")

// ErrLengthMismatch 解压长度与声明长度不一致
var ErrLengthMismatch = errors.New("compression: uncompressed length mismatch")

// 确保实现了接口
var (
	_ interfaces.HotReloader = (*Decompressor)(nil)
	_ interfaces.FlowControl = (*Decompressor)(nil)
)

// Decompressor 输入方向解压器
type Decompressor struct {
	threshold  atomic.Int64
	hideErrors atomic.Bool

	// strict 为 true 时长度不一致和解压失败都是致命错误
	strict atomic.Bool
}

// NewDecompressor 创建解压器
func NewDecompressor(threshold int, hideErrors, strict bool) *Decompressor {
	d := &Decompressor{}
	d.threshold.Store(int64(EffectiveThreshold(threshold)))
	d.hideErrors.Store(hideErrors)
	d.strict.Store(strict)
	return d
}

// Threshold 返回生效的阈值（禁用时为 -1）
func (d *Decompressor) Threshold() int {
	return int(d.threshold.Load())
}

// Transform 解析 uncompressedLength 并按需解压
func (d *Decompressor) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	b, err := transform.Bytes(chunk)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.Threshold() < 0 {
		return push(b)
	}

	length, size, err := varint.DecodeLength(b)
	if err != nil {
		return d.fail(fmt.Errorf("%w: bad uncompressed length: %v", types.ErrDecompression, err))
	}
	if length == 0 {
		return push(b[size:])
	}
	if len(b) > types.MaxPacketSize || length > types.MaxPacketSize {
		return types.Fatal("compression", fmt.Errorf("%w: badly compressed packet of %d bytes (declared %d), max %d",
			types.ErrOversizedFrame, len(b), length, types.MaxPacketSize))
	}

	out, err := inflate(b[size:], length)
	if err != nil {
		return d.fail(fmt.Errorf("%w: inflate (uncompressed length %d): %v", types.ErrDecompression, length, err))
	}
	if len(out) != length {
		mismatch := fmt.Errorf("%w: uncompressed length should be %d but is %d", ErrLengthMismatch, length, len(out))
		if d.strict.Load() {
			return types.Fatal("compression", fmt.Errorf("%w: %v", types.ErrDecompression, mismatch))
		}
		if !d.hideErrors.Load() {
			logger.Warn("解压长度不一致", "declared", length, "actual", len(out))
		}
	}
	return push(out)
}

// fail 处理可恢复的解压错误
//
// hideErrors 时静默丢弃该帧；strict 时提升为致命错误。
func (d *Decompressor) fail(err error) error {
	if d.strict.Load() {
		return types.Fatal("compression", err)
	}
	if d.hideErrors.Load() {
		return nil
	}
	return err
}

// inflate 解压 body，最多读取 length+1 字节以便发现长度不一致
func inflate(body []byte, length int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := bytes.NewBuffer(make([]byte, 0, length))
	if _, err := io.Copy(out, io.LimitReader(zr, int64(length)+1)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Apply 热更新字段
func (d *Decompressor) Apply(field string, value any) error {
	switch field {
	case OptThreshold:
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("compression: %s must be int, got %T", field, value)
		}
		d.threshold.Store(int64(EffectiveThreshold(v)))
		return nil
	case OptHideErrors, OptStrict:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("compression: %s must be bool, got %T", field, value)
		}
		if field == OptHideErrors {
			d.hideErrors.Store(v)
		} else {
			d.strict.Store(v)
		}
		return nil
	}
	return fmt.Errorf("compression: unknown decompressor option %q", field)
}

// Close 无资源可释放
func (d *Decompressor) Close() error { return nil }

// WritableHighWaterMark 实现 FlowControl
func (d *Decompressor) WritableHighWaterMark() int { return transform.ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (d *Decompressor) ReadableHighWaterMark() int { return transform.ByteHighWaterMark }
