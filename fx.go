package mcproto

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/auth"
	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/metrics"
	"github.com/dep2p/go-mcproto/internal/core/plugin"
	"github.com/dep2p/go-mcproto/internal/debug/introspect"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("mcproto")

// Runtime 连接共享的依赖
//
// 同一 Runtime 创建的连接共享编解码缓存、指标与认证提供者。
type Runtime struct {
	Config   *config.Config
	Cache    *codec.Cache
	Reporter interfaces.Reporter
	Auth     interfaces.AuthProvider
	Custom   codec.CustomPackets

	// Diagnostics 诊断 HTTP 服务，未配置时为 nil
	Diagnostics *introspect.Server

	opts *options
	app  *fx.App
}

// runtimeParams Runtime 依赖参数
type runtimeParams struct {
	fx.In

	Config   *config.Config
	Cache    *codec.Cache
	Reporter interfaces.Reporter
	Auth     interfaces.AuthProvider
	Custom   codec.CustomPackets

	Diagnostics *introspect.Server `optional:"true"`
}

func newRuntimeFromParams(p runtimeParams) *Runtime {
	return &Runtime{
		Config:      p.Config,
		Cache:       p.Cache,
		Reporter:    p.Reporter,
		Auth:        p.Auth,
		Custom:      p.Custom,
		Diagnostics: p.Diagnostics,
		opts:        &options{},
	}
}

// Module 返回 fx 模块配置
//
// 外部应用需要提供 *config.Config，可选提供 prometheus.Registerer。
// 配置了 Metrics.ListenAddr 时诊断服务随应用生命周期启停。
func Module() fx.Option {
	return fx.Module("mcproto",
		codec.Module(),
		metrics.Module(),
		introspect.Module(),
		fx.Provide(
			provideAuth,
			provideCustomPackets,
			newRuntimeFromParams,
		),
	)
}

// provideAuth 按配置名称创建认证提供者
func provideAuth(cfg *config.Config) (interfaces.AuthProvider, error) {
	return auth.New(auth.ProviderName(cfg.Protocol.Auth))
}

// provideCustomPackets 加载自定义数据包覆盖层，未配置时为 nil
func provideCustomPackets(cfg *config.Config) (codec.CustomPackets, error) {
	path := cfg.Protocol.CustomPacketsFile
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mcproto: read custom packets: %w", err)
	}
	return codec.ParseCustomPackets(data)
}

// NewRuntime 按选项组装 Runtime
func NewRuntime(opts ...Option) (*Runtime, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return buildRuntime(o)
}

func buildRuntime(o *options) (*Runtime, error) {
	cfg, err := o.toConfig()
	if err != nil {
		return nil, err
	}

	var rt *Runtime
	modules := []fx.Option{
		fx.Supply(cfg),
		Module(),
	}
	if o.registerer != nil {
		modules = append(modules, fx.Supply(fx.Annotate(o.registerer, fx.As(new(prometheus.Registerer)))))
	}
	modules = append(modules, o.userFxOptions...)
	modules = append(modules,
		fx.Populate(&rt),
		// 禁用 fx 日志输出
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("mcproto: build runtime: %w", err)
	}

	rt.opts = o
	rt.app = app
	if o.authProvider != nil {
		rt.Auth = o.authProvider
	}
	logger.Debug("运行时已创建", "version", cfg.Protocol.Version, "auth", rt.Auth.Name(), "metrics", cfg.Metrics.Enabled)
	return rt, nil
}

// Start 启动运行时的后台服务
//
// 目前只有诊断 HTTP 服务，未配置时为空操作。
func (rt *Runtime) Start(ctx context.Context) error {
	if rt.app == nil {
		return nil
	}
	if err := rt.app.Start(ctx); err != nil {
		return fmt.Errorf("mcproto: start runtime: %w", err)
	}
	return nil
}

// Stop 停止运行时的后台服务
func (rt *Runtime) Stop(ctx context.Context) error {
	if rt.app == nil {
		return nil
	}
	return rt.app.Stop(ctx)
}

// connOptions 连接选项
func (rt *Runtime) connOptions() []conn.Option {
	return []conn.Option{
		conn.WithConfig(rt.Config),
		conn.WithCustomPackets(rt.Custom),
		conn.WithCache(rt.Cache),
		conn.WithReporter(rt.Reporter),
	}
}

// plugins 按角色返回每个连接加载的插件
//
// 服务器的压缩宣告由登录握手完成，确保 compress 在加密之后发送，
// 因此服务器端的压缩插件不宣告。
func (rt *Runtime) plugins(role types.Role) []interfaces.Plugin {
	cfg := *rt.Config
	if role == types.RoleServer {
		cfg.Compression.Threshold = -1
	}
	return append(plugin.FromConfig(&cfg), rt.opts.plugins...)
}

// newConn 创建连接并加载插件
func (rt *Runtime) newConn(role types.Role) (*conn.Conn, *plugin.Manager, error) {
	c, err := conn.New(role, rt.connOptions()...)
	if err != nil {
		return nil, nil, err
	}
	m := plugin.NewManager(c)
	if err := m.LoadAll(rt.plugins(role)...); err != nil {
		return nil, nil, err
	}
	return c, m, nil
}
