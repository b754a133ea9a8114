package eventbus

import "github.com/dep2p/go-mcproto/pkg/types"

// ============================================================================
//                              类型化订阅
// ============================================================================

// OnPacket 按名称订阅负载
func (b *Bus) OnPacket(name string, once bool, fn func(types.Params)) (*Subscription, error) {
	return b.Subscribe(PacketTopic(name), once, func(args ...any) {
		fn(args[0].(types.Params))
	})
}

// OnPacketMeta 按名称订阅负载与元信息
func (b *Bus) OnPacketMeta(name string, once bool, fn func(types.Params, types.Metadata)) (*Subscription, error) {
	return b.Subscribe(PacketMetaTopic(name), once, func(args ...any) {
		fn(args[0].(types.Params), args[1].(types.Metadata))
	})
}

// OnRaw 按名称订阅原始字节
func (b *Bus) OnRaw(name string, once bool, fn func([]byte, types.Metadata)) (*Subscription, error) {
	return b.Subscribe(RawTopic(name), once, func(args ...any) {
		fn(args[0].([]byte), args[1].(types.Metadata))
	})
}

// OnAny 订阅所有数据包
func (b *Bus) OnAny(fn func(types.Params, types.Metadata)) (*Subscription, error) {
	return b.Subscribe(TopicPacket, false, func(args ...any) {
		fn(args[0].(types.Params), args[1].(types.Metadata))
	})
}

// OnAnyRaw 订阅所有数据包的原始字节
func (b *Bus) OnAnyRaw(fn func([]byte, types.Metadata)) (*Subscription, error) {
	return b.Subscribe(TopicRaw, false, func(args ...any) {
		fn(args[0].([]byte), args[1].(types.Metadata))
	})
}

// OnState 订阅状态切换
func (b *Bus) OnState(fn func(StateChange)) (*Subscription, error) {
	return b.Subscribe(TopicState, false, func(args ...any) {
		fn(args[0].(StateChange))
	})
}

// OnError 订阅非致命错误
func (b *Bus) OnError(fn func(error)) (*Subscription, error) {
	return b.Subscribe(TopicError, false, func(args ...any) {
		fn(args[0].(error))
	})
}

// OnEnd 订阅连接结束，回调参数为结束原因
func (b *Bus) OnEnd(fn func(reason string)) (*Subscription, error) {
	return b.Subscribe(TopicEnd, false, func(args ...any) {
		fn(args[0].(string))
	})
}

// OnConnect 订阅 socket 建立
func (b *Bus) OnConnect(fn func()) (*Subscription, error) {
	return b.Subscribe(TopicConnect, false, func(...any) {
		fn()
	})
}
