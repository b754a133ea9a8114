package serialization

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/transform/serialization")

// 确保实现了接口
var (
	_ interfaces.HotReloader = (*Serializer)(nil)
	_ interfaces.FlowControl = (*Serializer)(nil)
	_ interfaces.HotReloader = (*Deserializer)(nil)
	_ interfaces.FlowControl = (*Deserializer)(nil)
)

// ============================================================================
//                              Serializer
// ============================================================================

// Serializer 输出方向：*types.Packet -> []byte
type Serializer struct {
	mu sync.Mutex
	settings
	codec *codec.Codec
}

// NewSerializer 创建序列化器
func NewSerializer(opts interfaces.Options) (*Serializer, error) {
	s, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}
	ser := &Serializer{settings: s}
	if err := ser.reload(); err != nil {
		return nil, err
	}
	return ser, nil
}

func (s *Serializer) reload() error {
	c, err := s.lookup(s.role().Outbound())
	if err != nil {
		return fmt.Errorf("serialization: %w", err)
	}
	s.codec = c
	return nil
}

// State 当前协议状态
func (s *Serializer) State() types.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Codec 当前使用的 Codec
func (s *Serializer) Codec() *codec.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

// Transform 编码数据包
func (s *Serializer) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var pkt *types.Packet
	switch v := chunk.(type) {
	case *types.Packet:
		pkt = v
	case types.Packet:
		pkt = &v
	default:
		return fmt.Errorf("%w: want *types.Packet, got %T", transform.ErrUnexpectedChunk, chunk)
	}

	raw, err := s.Codec().Encode(pkt.Name, pkt.Params)
	if err != nil {
		return err
	}
	return push(raw)
}

// Apply 热更新字段并重新查询 Codec
func (s *Serializer) Apply(field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.settings
	if err := s.set(field, value); err != nil {
		return err
	}
	if err := s.reload(); err != nil {
		s.settings = prev
		return err
	}
	return nil
}

// Close 无资源可释放
func (s *Serializer) Close() error { return nil }

// WritableHighWaterMark 实现 FlowControl
func (s *Serializer) WritableHighWaterMark() int { return transform.ObjectHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (s *Serializer) ReadableHighWaterMark() int { return transform.ByteHighWaterMark }

// ============================================================================
//                              Deserializer
// ============================================================================

// Deserializer 输入方向：[]byte -> *types.Packet
type Deserializer struct {
	mu sync.Mutex
	settings
	codec *codec.Codec
}

// NewDeserializer 创建反序列化器
func NewDeserializer(opts interfaces.Options) (*Deserializer, error) {
	s, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}
	d := &Deserializer{settings: s}
	if err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Deserializer) reload() error {
	c, err := d.lookup(d.role().Inbound())
	if err != nil {
		return fmt.Errorf("serialization: %w", err)
	}
	d.codec = c
	return nil
}

// State 当前协议状态
func (d *Deserializer) State() types.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Codec 当前使用的 Codec
func (d *Deserializer) Codec() *codec.Codec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codec
}

// Transform 解码数据包
//
// hideErrors 时解码失败的帧被丢弃，只记录调试日志。
func (d *Deserializer) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	b, err := transform.Bytes(chunk)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	c, hideErrors := d.codec, d.hideErrors
	d.mu.Unlock()

	pkt, err := c.Decode(b)
	if err != nil {
		if hideErrors {
			logger.Debug("丢弃无法解码的数据包", "state", c.Key().State, "size", len(b), "err", err)
			return nil
		}
		return err
	}
	return push(pkt)
}

// Apply 热更新字段并重新查询 Codec
func (d *Deserializer) Apply(field string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.settings
	if err := d.set(field, value); err != nil {
		return err
	}
	if err := d.reload(); err != nil {
		d.settings = prev
		return err
	}
	return nil
}

// Close 无资源可释放
func (d *Deserializer) Close() error { return nil }

// WritableHighWaterMark 实现 FlowControl
func (d *Deserializer) WritableHighWaterMark() int { return transform.ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (d *Deserializer) ReadableHighWaterMark() int { return transform.ObjectHighWaterMark }

// ============================================================================
//                              构造函数
// ============================================================================

// CreateInput 构造输入方向的序列化阶段
func CreateInput(opts interfaces.Options) (interfaces.Transformer, error) {
	return NewDeserializer(opts)
}

// CreateOutput 构造输出方向的序列化阶段
func CreateOutput(opts interfaces.Options) (interfaces.Transformer, error) {
	return NewSerializer(opts)
}
