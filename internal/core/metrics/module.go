package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// Params Reporter 依赖参数
type Params struct {
	fx.In

	Config     *config.Config         `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
	Cache      *codec.Cache           `optional:"true"`
}

// Result Reporter 输出
//
// 指标关闭时 Reporter 为 nil *Reporter，其方法为空操作。
type Result struct {
	fx.Out

	Reporter  *Reporter
	Interface interfaces.Reporter
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(NewFromParams),
	)
}

// NewFromParams 从 fx 参数创建 Reporter
func NewFromParams(p Params) (Result, error) {
	cfg := config.DefaultMetricsConfig()
	if p.Config != nil {
		cfg = p.Config.Metrics
	}
	if !cfg.Enabled {
		logger.Debug("指标已关闭")
		return Result{Interface: (*Reporter)(nil)}, nil
	}

	var cache Sizer
	if p.Cache != nil {
		cache = p.Cache
	}
	r, err := NewReporter(p.Registerer, cfg.Namespace, cache)
	if err != nil {
		return Result{}, err
	}
	return Result{Reporter: r, Interface: r}, nil
}

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "metrics"
	Description = "连接级 Prometheus 指标"
)
