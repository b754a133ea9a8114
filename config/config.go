// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载以及 client/server 预设。
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Protocol.Version = "1.12.2"
//	cfg.Compression.Threshold = 256
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Config 是 go-mcproto 的完整配置结构
//
// 配置按照功能模块组织：
//   - Protocol: 协议版本与自定义数据包
//   - Compression: 压缩阈值与错误策略
//   - Connection: 关闭与空闲超时
//   - KeepAlive: 心跳插件
//   - Log: 日志级别与格式
//   - Metrics: Prometheus 指标
type Config struct {
	// Protocol 协议配置
	Protocol ProtocolConfig `json:"protocol"`

	// Compression 压缩配置
	Compression CompressionConfig `json:"compression"`

	// Connection 连接配置
	Connection ConnectionConfig `json:"connection"`

	// KeepAlive 心跳配置
	KeepAlive KeepAliveConfig `json:"keep_alive"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Protocol:    DefaultProtocolConfig(),
		Compression: DefaultCompressionConfig(),
		Connection:  DefaultConnectionConfig(),
		KeepAlive:   DefaultKeepAliveConfig(),
		Log:         DefaultLogConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Protocol.Validate(); err != nil {
		return err
	}
	if err := c.Compression.Validate(); err != nil {
		return err
	}
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.KeepAlive.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "protocol": {"version": "1.16.4"},
//	  "compression": {"threshold": 256},
//	  "connection": {"close_timeout": "30s"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 将配置编码为 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ============================================================================
//                              预设
// ============================================================================

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "client": 客户端默认（不主动压缩，保持心跳应答）
//   - "server": 服务器（宣告压缩阈值 256，离线模式）
//   - "": 不做任何修改
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config: config is nil")
	}

	switch presetName {
	case "client":
		cfg.Compression.Threshold = -1
		cfg.KeepAlive.Enabled = true
	case "server":
		cfg.Compression.Threshold = 256
		cfg.KeepAlive.Enabled = true
		cfg.Protocol.OnlineMode = false
	case "":
	default:
		return fmt.Errorf("config: unknown preset: %s", presetName)
	}
	return nil
}
