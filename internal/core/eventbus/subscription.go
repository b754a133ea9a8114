package eventbus

import (
	"sync"
	"sync/atomic"
)

// Subscription 订阅句柄
type Subscription struct {
	bus     *Bus
	topic   Topic
	handler func(args ...any)
	once    bool

	closeOnce sync.Once
	closed    atomic.Bool
}

// Topic 返回订阅的主题
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Close 取消订阅
//
// Close 是并发安全的，可以多次调用，也可以在回调内部调用。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.bus.removeSub(s)
	})
	return nil
}

// deliver 调用回调，once 订阅在调用前取消
func (s *Subscription) deliver(args []any) {
	if s.once {
		if !s.closed.CompareAndSwap(false, true) {
			return
		}
		s.closeOnce.Do(func() { s.bus.removeSub(s) })
	} else if s.closed.Load() {
		return
	}
	s.handler(args...)
}
