package introspect

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/internal/core/metrics"
)

// Module 返回诊断服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// Params 诊断服务依赖参数
type Params struct {
	fx.In

	Config     *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
	Reporter   *metrics.Reporter     `optional:"true"`
	Cache      *codec.Cache          `optional:"true"`
}

// Output 诊断服务输出
type Output struct {
	fx.Out

	Server *Server `optional:"true"`
}

// ConfigFromUnified 从统一配置创建服务配置，未配置地址时返回 nil
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || cfg.Metrics.ListenAddr == "" {
		return nil
	}
	return &Config{
		Addr:    cfg.Metrics.ListenAddr,
		Version: cfg.Protocol.Version,
	}
}

// NewFromParams 从参数创建诊断服务
func NewFromParams(p Params) Output {
	cfg := ConfigFromUnified(p.Config)
	if cfg == nil {
		return Output{}
	}

	// 自定义注册表同时作为采集来源
	if g, ok := p.Registerer.(prometheus.Gatherer); ok {
		cfg.Gatherer = g
	}
	if p.Reporter != nil {
		cfg.Traffic = p.Reporter
	}
	if p.Cache != nil {
		cfg.Cache = p.Cache
	}
	return Output{Server: New(*cfg)}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: server.Start,
		OnStop:  server.Stop,
	})
}
