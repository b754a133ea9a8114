package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/eventbus")

// ErrClosed 事件总线已关闭
var ErrClosed = errors.New("eventbus: closed")

// ============================================================================
//                              主题
// ============================================================================

// Topic 事件主题
type Topic string

// 通用主题
const (
	TopicPacket  Topic = "packet"
	TopicRaw     Topic = "raw"
	TopicState   Topic = "state"
	TopicError   Topic = "error"
	TopicEnd     Topic = "end"
	TopicConnect Topic = "connect"
)

// PacketTopic 按名称订阅负载的主题
func PacketTopic(name string) Topic { return Topic("packet/" + name) }

// PacketMetaTopic 按名称订阅负载与元信息的主题
func PacketMetaTopic(name string) Topic { return Topic("packet-meta/" + name) }

// RawTopic 按名称订阅原始字节的主题
func RawTopic(name string) Topic { return Topic("raw/" + name) }

// StateChange 状态切换事件
type StateChange struct {
	From types.State
	To   types.State
}

// ============================================================================
//                              Bus
// ============================================================================

// Bus 同步事件总线
type Bus struct {
	mu sync.RWMutex

	// nodes 主题节点映射
	nodes  map[Topic]*node
	closed bool
}

// node 主题节点
type node struct {
	lk    sync.Mutex
	topic Topic
	sinks []*Subscription

	// fired 分发次数
	fired atomic.Int64
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[Topic]*node),
	}
}

// Subscribe 订阅主题
//
// handler 的参数类型由主题决定，见包文档。once 为 true 时第一次触发后
// 自动取消订阅。
func (b *Bus) Subscribe(topic Topic, once bool, handler func(args ...any)) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("eventbus: nil handler")
	}
	sub := &Subscription{
		bus:     b,
		topic:   topic,
		handler: handler,
		once:    once,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	n, ok := b.nodes[topic]
	if !ok {
		n = &node{topic: topic}
		b.nodes[topic] = n
	}
	n.lk.Lock()
	b.mu.Unlock()

	n.sinks = append(n.sinks, sub)
	n.lk.Unlock()
	return sub, nil
}

// Emit 向主题的所有订阅者同步分发
func (b *Bus) Emit(topic Topic, args ...any) {
	b.mu.RLock()
	n, ok := b.nodes[topic]
	b.mu.RUnlock()
	if !ok {
		return
	}
	n.emit(args)
}

// Has 判断主题是否有订阅者
func (b *Bus) Has(topic Topic) bool {
	b.mu.RLock()
	n, ok := b.nodes[topic]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	n.lk.Lock()
	defer n.lk.Unlock()
	return len(n.sinks) > 0
}

// Count 返回主题的订阅者数量
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	n, ok := b.nodes[topic]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	n.lk.Lock()
	defer n.lk.Unlock()
	return len(n.sinks)
}

// Topics 返回所有已注册的主题
func (b *Bus) Topics() []Topic {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Topic, 0, len(b.nodes))
	for t := range b.nodes {
		out = append(out, t)
	}
	return out
}

// Close 移除所有订阅，之后的订阅返回 ErrClosed
func (b *Bus) Close() {
	b.mu.Lock()
	nodes := b.nodes
	b.nodes = make(map[Topic]*node)
	b.closed = true
	b.mu.Unlock()

	for _, n := range nodes {
		n.lk.Lock()
		for _, s := range n.sinks {
			s.closed.Store(true)
		}
		n.sinks = nil
		n.lk.Unlock()
	}
}

// ============================================================================
//                              数据包分发
// ============================================================================

// Dispatch 把一个数据包分发到五个数据包通道
//
// 顺序：packet/<name>、packet-meta/<name>、raw/<name>、packet、raw。
func (b *Bus) Dispatch(pkt *types.Packet) {
	b.Emit(PacketTopic(pkt.Name), pkt.Params)
	b.Emit(PacketMetaTopic(pkt.Name), pkt.Params, pkt.Meta)
	b.Emit(RawTopic(pkt.Name), pkt.Raw, pkt.Meta)
	b.Emit(TopicPacket, pkt.Params, pkt.Meta)
	b.Emit(TopicRaw, pkt.Raw, pkt.Meta)
}

// ============================================================================
//                              内部方法
// ============================================================================

// emit 复制订阅者列表后在锁外调用回调
func (n *node) emit(args []any) {
	n.lk.Lock()
	sinks := make([]*Subscription, len(n.sinks))
	copy(sinks, n.sinks)
	n.lk.Unlock()

	n.fired.Add(1)
	for _, sub := range sinks {
		sub.deliver(args)
	}
}

// removeSub 移除订阅，节点为空时删除节点
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[sub.topic]
	if !ok {
		return
	}

	n.lk.Lock()
	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i:i], n.sinks[i+1:]...)
			break
		}
	}
	empty := len(n.sinks) == 0
	n.lk.Unlock()

	if empty {
		delete(b.nodes, sub.topic)
		logger.Debug("主题已无订阅者", "topic", sub.topic)
	}
}
