package config

import "errors"

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否收集 Prometheus 指标
	// 默认值: true
	Enabled bool `json:"enabled"`

	// Namespace 指标名前缀
	// 默认值: mcproto
	Namespace string `json:"namespace"`

	// ListenAddr 本地诊断 HTTP 服务地址
	//
	// 提供 /metrics、/debug/introspect、/debug/pprof 与 /health。
	// 为空时不启动。
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "mcproto",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return errors.New("config: metrics namespace is empty")
	}
	return nil
}
