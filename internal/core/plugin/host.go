package plugin

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var _ interfaces.PluginHost = (*host)(nil)

// host 单个插件的能力对象
type host struct {
	c *conn.Conn

	mu     sync.Mutex
	subs   []*eventbus.Subscription
	closed bool
}

func newHost(c *conn.Conn) *host {
	return &host{c: c}
}

func (h *host) Role() types.Role                            { return h.c.Role() }
func (h *host) State() types.State                          { return h.c.State() }
func (h *host) Clock() clock.Clock                          { return h.c.Clock() }
func (h *host) Write(name string, params types.Params) error { return h.c.Write(name, params) }
func (h *host) SetOutputCompression(threshold int) error    { return h.c.SetOutputCompression(threshold) }
func (h *host) SetInputCompression(threshold int) error     { return h.c.SetInputCompression(threshold) }
func (h *host) SetLatency(d time.Duration)                  { h.c.SetLatency(d) }
func (h *host) End(reason string)                           { h.c.End(reason) }

// OnPacket 订阅指定名称的数据包
func (h *host) OnPacket(name string, fn func(types.Params)) interfaces.Cancel {
	return h.track(h.c.OnPacket(name, false, fn))
}

// OnState 订阅状态迁移
func (h *host) OnState(fn func(types.State)) interfaces.Cancel {
	return h.track(h.c.OnState(func(sc eventbus.StateChange) { fn(sc.To) }))
}

// OnEnd 订阅连接终止
func (h *host) OnEnd(fn func(reason string)) interfaces.Cancel {
	return h.track(h.c.OnEnd(fn))
}

// track 记录订阅，卸载插件时统一取消
func (h *host) track(sub *eventbus.Subscription, err error) interfaces.Cancel {
	if err != nil {
		logger.Warn("插件订阅失败", "err", err)
		return func() {}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = sub.Close()
		return func() {}
	}
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	return func() { _ = sub.Close() }
}

// close 取消所有订阅，之后的订阅立即失效
func (h *host) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
}
