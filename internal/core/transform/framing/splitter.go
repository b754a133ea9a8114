package framing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/internal/util/varint"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("transform/framing")

// LegacyPingPacketID 旧版服务器列表查询的单字节标记
const LegacyPingPacketID = 0xfe

// OptRecognizeLegacyPing Splitter 选项：是否识别旧版查询（仅握手状态）
const OptRecognizeLegacyPing = "recognizeLegacyPing"

// 确保实现了接口
var (
	_ interfaces.HotReloader = (*Splitter)(nil)
	_ interfaces.FlowControl = (*Splitter)(nil)
)

// Splitter 帧切分器
//
// 入站字节累积在 backlog 中，反复尝试读取 varint 长度和对应数量的字节。
// need 记录下一次扫描至少需要的 backlog 长度，数据不足时直接返回，
// 不会对每个小块都从头扫描。
type Splitter struct {
	backlog []byte
	need    int

	// recognizeLegacyPing 可能在其他 goroutine 中随状态切换被修改
	recognizeLegacyPing atomic.Bool
}

// NewSplitter 创建帧切分器
func NewSplitter(recognizeLegacyPing bool) *Splitter {
	s := &Splitter{}
	s.recognizeLegacyPing.Store(recognizeLegacyPing)
	return s
}

// RecognizeLegacyPing 是否识别旧版查询
func (s *Splitter) RecognizeLegacyPing() bool {
	return s.recognizeLegacyPing.Load()
}

// Buffered 返回尚未组成完整帧的字节数
func (s *Splitter) Buffered() int {
	return len(s.backlog)
}

// Transform 累积字节并输出所有完整帧体
func (s *Splitter) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	b, err := transform.Bytes(chunk)
	if err != nil {
		return err
	}
	s.backlog = append(s.backlog, b...)

	if s.recognizeLegacyPing.Load() && len(s.backlog) > 0 && s.backlog[0] == LegacyPingPacketID {
		s.backlog = legacyFrame(s.backlog[1:])
		s.need = 0
		logger.Debug("识别到旧版状态查询", "size", len(s.backlog))
	}

	if len(s.backlog) < s.need {
		return nil
	}

	offset := 0
	defer func() {
		s.compact(offset)
	}()

	for offset < len(s.backlog) {
		if err := ctx.Err(); err != nil {
			return err
		}
		rest := s.backlog[offset:]
		length, size, err := varint.DecodeLength(rest)
		if err != nil {
			if errors.Is(err, varint.ErrIncomplete) {
				s.need = len(rest) + 1
				return nil
			}
			if errors.Is(err, varint.ErrTooBig) {
				return types.Fatal("framing", fmt.Errorf("%w: length prefix exceeds %d bytes", types.ErrOversizedFrame, types.MaxPacketSize))
			}
			return types.Fatal("framing", fmt.Errorf("%w: %v", ErrMalformedLength, err))
		}
		if length > types.MaxPacketSize {
			return types.Fatal("framing", fmt.Errorf("%w: declared %d, max %d", types.ErrOversizedFrame, length, types.MaxPacketSize))
		}
		end := size + length
		if len(rest) < end {
			s.need = end
			return nil
		}

		frame := make([]byte, length)
		copy(frame, rest[size:end])
		offset += end
		s.need = 0

		if err := push(frame); err != nil {
			return err
		}
	}
	return nil
}

// compact 丢弃已消费的字节
func (s *Splitter) compact(offset int) {
	if offset == 0 {
		return
	}
	n := copy(s.backlog, s.backlog[offset:])
	s.backlog = s.backlog[:n]
	if n == 0 {
		s.backlog = nil
	}
}

// legacyFrame 把旧版查询的剩余字节包装成标准帧
//
// 帧体为 varint(0xFE) + 剩余字节；没有剩余字节时补一个 0 字节。
func legacyFrame(rest []byte) []byte {
	payload := rest
	if len(payload) == 0 {
		payload = []byte{0}
	}
	body := varint.Append(nil, LegacyPingPacketID)
	body = append(body, payload...)
	frame := varint.Append(make([]byte, 0, varint.MaxLen+len(body)), int32(len(body)))
	return append(frame, body...)
}

// Apply 热更新字段
func (s *Splitter) Apply(field string, value any) error {
	switch field {
	case OptRecognizeLegacyPing:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("framing: %s must be bool, got %T", field, value)
		}
		s.recognizeLegacyPing.Store(v)
		return nil
	}
	return fmt.Errorf("framing: unknown splitter option %q", field)
}

// Close 丢弃 backlog
func (s *Splitter) Close() error {
	s.backlog = nil
	s.need = 0
	return nil
}

// WritableHighWaterMark 实现 FlowControl
func (s *Splitter) WritableHighWaterMark() int { return transform.ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (s *Splitter) ReadableHighWaterMark() int { return transform.ByteHighWaterMark }
