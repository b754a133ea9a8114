package plugin

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// ReasonKeepAliveTimeout 心跳超时的终止原因
const ReasonKeepAliveTimeout = "KeepAliveTimeout"

// KeepAliveOptions 心跳参数
type KeepAliveOptions struct {
	// Timeout 客户端多久未收到心跳即断开；服务器多久未收到应答即断开
	// 默认值: 30s
	Timeout time.Duration

	// Interval 服务器检查与发送心跳的间隔
	// 默认值: 4s
	Interval time.Duration
}

func (o KeepAliveOptions) withDefaults() KeepAliveOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = 4 * time.Second
	}
	return o
}

// KeepAlive 心跳插件
type KeepAlive struct {
	opts KeepAliveOptions
}

// NewKeepAlive 创建心跳插件
func NewKeepAlive(opts KeepAliveOptions) *KeepAlive {
	return &KeepAlive{opts: opts.withDefaults()}
}

// Name 实现 Plugin
func (k *KeepAlive) Name() string { return string(KindKeepAlive) }

// Attach 实现 Plugin
func (k *KeepAlive) Attach(h interfaces.PluginHost) (interfaces.Cancel, error) {
	if h.Role().IsServer() {
		return k.attachServer(h), nil
	}
	return k.attachClient(h), nil
}

// attachClient 回显服务器的心跳，超时未收到时断开
func (k *KeepAlive) attachClient(h interfaces.PluginHost) interfaces.Cancel {
	var (
		mu    sync.Mutex
		timer *clock.Timer
	)
	stop := func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		mu.Unlock()
	}

	unsubPacket := h.OnPacket("keep_alive", func(p types.Params) {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = h.Clock().AfterFunc(k.opts.Timeout, func() {
			logger.Debug("未收到服务器心跳", "timeout", k.opts.Timeout)
			h.End(ReasonKeepAliveTimeout)
		})
		mu.Unlock()

		if err := h.Write("keep_alive", types.Params{"keepAliveId": p["keepAliveId"]}); err != nil {
			logger.Debug("回显心跳失败", "err", err)
		}
	})
	unsubEnd := h.OnEnd(func(string) { stop() })

	return func() {
		unsubPacket()
		unsubEnd()
		stop()
	}
}

// serverLoop 服务器端单个连接的心跳状态
type serverLoop struct {
	h    interfaces.PluginHost
	opts KeepAliveOptions

	mu       sync.Mutex
	running  bool
	lastSeen time.Time
	sentAt   time.Time
	ticker   *clock.Ticker
	done     chan struct{}
}

// attachServer 进入 PLAY 后定期发送心跳
func (k *KeepAlive) attachServer(h interfaces.PluginHost) interfaces.Cancel {
	l := &serverLoop{h: h, opts: k.opts}

	unsubState := h.OnState(func(s types.State) {
		if s == types.StatePlay {
			l.start()
		}
	})
	unsubPacket := h.OnPacket("keep_alive", func(types.Params) { l.ack() })
	unsubEnd := h.OnEnd(func(string) { l.stop() })
	if h.State() == types.StatePlay {
		l.start()
	}

	return func() {
		unsubState()
		unsubPacket()
		unsubEnd()
		l.stop()
	}
}

func (l *serverLoop) start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	clk := l.h.Clock()
	l.running = true
	l.lastSeen = clk.Now()
	l.sentAt = time.Time{}
	l.ticker = clk.Ticker(l.opts.Interval)
	l.done = make(chan struct{})
	go l.run(l.ticker, l.done)
}

func (l *serverLoop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	l.ticker.Stop()
	close(l.done)
}

func (l *serverLoop) run(ticker *clock.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !l.tick() {
				return
			}
		}
	}
}

// tick 检查超时并发送下一个心跳，返回 false 表示循环结束
func (l *serverLoop) tick() bool {
	now := l.h.Clock().Now()

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return false
	}
	if now.Sub(l.lastSeen) > l.opts.Timeout {
		l.mu.Unlock()
		logger.Debug("客户端心跳超时", "timeout", l.opts.Timeout)
		l.h.End(ReasonKeepAliveTimeout)
		return false
	}
	l.sentAt = now
	l.mu.Unlock()

	id := rand.Int64N(math.MaxInt32)
	if err := l.h.Write("keep_alive", types.Params{"keepAliveId": id}); err != nil {
		logger.Debug("发送心跳失败", "err", err)
	}
	return true
}

// ack 收到客户端应答，更新延迟
func (l *serverLoop) ack() {
	now := l.h.Clock().Now()

	l.mu.Lock()
	sent := l.sentAt
	l.lastSeen = now
	l.mu.Unlock()

	if !sent.IsZero() {
		l.h.SetLatency(now.Sub(sent))
	}
}
