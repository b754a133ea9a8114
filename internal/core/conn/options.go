package conn

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// 默认值
const (
	DefaultCloseTimeout = 30 * time.Second
	DefaultIdleTimeout  = 30 * time.Second

	readBufferSize = 32 * 1024
)

// Option 连接选项
type Option func(*options)

type options struct {
	version      string
	custom       codec.CustomPackets
	hideErrors   bool
	strict       bool
	closeTimeout time.Duration
	idleTimeout  time.Duration
	clock        clock.Clock
	reporter     interfaces.Reporter
	cache        *codec.Cache
}

func defaultOptions() options {
	return options{
		version:      types.DefaultVersion,
		closeTimeout: DefaultCloseTimeout,
		idleTimeout:  DefaultIdleTimeout,
		clock:        clock.New(),
		cache:        codec.Default(),
	}
}

// WithVersion 设置协议版本
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// WithCustomPackets 设置自定义数据包覆盖层
func WithCustomPackets(custom codec.CustomPackets) Option {
	return func(o *options) { o.custom = custom }
}

// WithHideErrors 抑制解压与反序列化错误日志
func WithHideErrors(hide bool) Option {
	return func(o *options) { o.hideErrors = hide }
}

// WithStrictCompression 解压长度不一致时视为致命错误
func WithStrictCompression(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithCloseTimeout 设置 End 之后强制销毁 socket 的等待时间
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.closeTimeout = d
		}
	}
}

// WithIdleTimeout 设置 socket 读空闲超时，0 表示不限制
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.idleTimeout = d
		}
	}
}

// WithClock 替换定时器使用的时钟
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		if clk != nil {
			o.clock = clk
		}
	}
}

// WithReporter 设置指标上报器
func WithReporter(r interfaces.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithCache 设置 Codec 缓存
func WithCache(c *codec.Cache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithConfig 从统一配置读取连接参数
//
// 自定义数据包文件由调用方加载后通过 WithCustomPackets 传入。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		if cfg.Protocol.Version != "" {
			o.version = cfg.Protocol.Version
		}
		o.hideErrors = cfg.Protocol.HideErrors
		o.strict = cfg.Compression.StrictLengthCheck
		o.closeTimeout = cfg.Connection.CloseTimeout.Or(o.closeTimeout)
		if d := cfg.Connection.IdleTimeout.Duration(); d >= 0 {
			o.idleTimeout = d
		}
	}
}
