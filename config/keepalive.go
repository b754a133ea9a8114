package config

import (
	"errors"
	"time"
)

// KeepAliveConfig 心跳配置
type KeepAliveConfig struct {
	// Enabled 是否挂载心跳插件
	// 默认值: true
	Enabled bool `json:"enabled"`

	// Timeout 客户端多久未收到心跳即断开；服务器多久未收到应答即断开
	// 默认值: 30s
	Timeout Duration `json:"timeout"`

	// Interval 服务器发送心跳的间隔
	// 默认值: 4s
	Interval Duration `json:"interval"`
}

// DefaultKeepAliveConfig 返回默认心跳配置
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		Enabled:  true,
		Timeout:  Duration(30 * time.Second),
		Interval: Duration(4 * time.Second),
	}
}

// Validate 验证心跳配置
func (c KeepAliveConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Timeout <= 0 || c.Interval <= 0 {
		return errors.New("config: keep_alive timeout and interval must be positive")
	}
	if c.Interval >= c.Timeout {
		return errors.New("config: keep_alive interval must be shorter than timeout")
	}
	return nil
}
