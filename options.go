package mcproto

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/handshake"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置，nil 时使用默认配置
	config *config.Config

	// 预设在覆盖项之前应用
	preset string

	// 覆盖项（nil 表示未设置）
	version      *string
	hideErrors   *bool
	threshold    *int
	onlineMode   *bool
	authName     *string
	keepAlive    *bool
	metrics      *bool
	customFile   *string
	diagAddr     *string
	logOutput    io.Writer
	authProvider interfaces.AuthProvider

	registerer prometheus.Registerer
	plugins    []interfaces.Plugin
	status     func() handshake.Status

	userFxOptions []fx.Option
}

func newOptions(opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// toConfig 合成最终配置并验证
func (o *options) toConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if o.config != nil {
		c := *o.config
		cfg = &c
	}
	if err := config.ApplyPreset(cfg, o.preset); err != nil {
		return nil, err
	}

	if o.version != nil {
		cfg.Protocol.Version = *o.version
	}
	if o.hideErrors != nil {
		cfg.Protocol.HideErrors = *o.hideErrors
	}
	if o.threshold != nil {
		cfg.Compression.Threshold = *o.threshold
	}
	if o.onlineMode != nil {
		cfg.Protocol.OnlineMode = *o.onlineMode
	}
	if o.authName != nil {
		cfg.Protocol.Auth = *o.authName
	}
	if o.keepAlive != nil {
		cfg.KeepAlive.Enabled = *o.keepAlive
	}
	if o.metrics != nil {
		cfg.Metrics.Enabled = *o.metrics
	}
	if o.customFile != nil {
		cfg.Protocol.CustomPacketsFile = *o.customFile
	}
	if o.diagAddr != nil {
		cfg.Metrics.ListenAddr = *o.diagAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mcproto: %w", err)
	}
	if o.logOutput != nil {
		level, _ := log.ParseLevel(cfg.Log.Level)
		log.Setup(o.logOutput, level, log.Format(cfg.Log.Format))
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置作为基础，其余选项在其上覆盖
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("mcproto: config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载基础配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("mcproto: read config: %w", err)
		}
		cfg, err := config.FromJSON(data)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用预设（"client" 或 "server"）
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              协议
// ════════════════════════════════════════════════════════════════════════════

// WithVersion 设置协议版本
func WithVersion(version string) Option {
	return func(o *options) error {
		o.version = &version
		return nil
	}
}

// WithHideErrors 抑制可恢复的编解码错误
func WithHideErrors(hide bool) Option {
	return func(o *options) error {
		o.hideErrors = &hide
		return nil
	}
}

// WithCustomPacketsFile 从 YAML 文件加载自定义数据包覆盖层
func WithCustomPacketsFile(path string) Option {
	return func(o *options) error {
		o.customFile = &path
		return nil
	}
}

// WithCompressionThreshold 设置服务器宣告的压缩阈值，负数表示不压缩
func WithCompressionThreshold(threshold int) Option {
	return func(o *options) error {
		o.threshold = &threshold
		return nil
	}
}

// WithOnlineMode 启用服务器加密与会话校验
func WithOnlineMode(online bool) Option {
	return func(o *options) error {
		o.onlineMode = &online
		return nil
	}
}

// WithAuth 按名称选择认证提供者
func WithAuth(name string) Option {
	return func(o *options) error {
		o.authName = &name
		return nil
	}
}

// WithAuthProvider 直接注入认证提供者，优先于 WithAuth
func WithAuthProvider(p interfaces.AuthProvider) Option {
	return func(o *options) error {
		if p == nil {
			return fmt.Errorf("mcproto: auth provider is nil")
		}
		o.authProvider = p
		return nil
	}
}

// WithStatus 设置服务器状态查询的应答内容
func WithStatus(provider func() handshake.Status) Option {
	return func(o *options) error {
		o.status = provider
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              插件与可观测性
// ════════════════════════════════════════════════════════════════════════════

// WithKeepAlive 是否加载心跳插件
func WithKeepAlive(enable bool) Option {
	return func(o *options) error {
		o.keepAlive = &enable
		return nil
	}
}

// WithPlugins 在内置插件之后加载额外插件
func WithPlugins(plugins ...interfaces.Plugin) Option {
	return func(o *options) error {
		o.plugins = append(o.plugins, plugins...)
		return nil
	}
}

// WithMetrics 是否收集 Prometheus 指标
func WithMetrics(enable bool) Option {
	return func(o *options) error {
		o.metrics = &enable
		return nil
	}
}

// WithDiagnostics 在 addr 上提供本地诊断 HTTP 服务
//
// 服务随 Runtime.Start 启动，导出 /metrics 与 /debug/introspect。
func WithDiagnostics(addr string) Option {
	return func(o *options) error {
		o.diagAddr = &addr
		return nil
	}
}

// WithRegisterer 指定指标注册表，默认为 prometheus.DefaultRegisterer
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithLogOutput 按配置的级别与格式把日志写到 w
func WithLogOutput(w io.Writer) Option {
	return func(o *options) error {
		o.logOutput = w
		return nil
	}
}

// WithFxOption 追加 fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
