package config

import (
	"errors"
	"time"
)

// ConnectionConfig 连接配置
type ConnectionConfig struct {
	// CloseTimeout end() 之后等待对端关闭的时间，超时后强制销毁 socket
	// 默认值: 30s
	CloseTimeout Duration `json:"close_timeout"`

	// IdleTimeout socket 读空闲超时，0 表示不限制
	// 默认值: 30s
	IdleTimeout Duration `json:"idle_timeout"`

	// DialTimeout 建立 TCP 连接的超时
	// 默认值: 10s
	DialTimeout Duration `json:"dial_timeout"`
}

// DefaultConnectionConfig 返回默认连接配置
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		CloseTimeout: Duration(30 * time.Second),
		IdleTimeout:  Duration(30 * time.Second),
		DialTimeout:  Duration(10 * time.Second),
	}
}

// Validate 验证连接配置
func (c ConnectionConfig) Validate() error {
	if c.CloseTimeout <= 0 {
		return errors.New("config: close_timeout must be positive")
	}
	if c.IdleTimeout < 0 {
		return errors.New("config: idle_timeout must not be negative")
	}
	if c.DialTimeout < 0 {
		return errors.New("config: dial_timeout must not be negative")
	}
	return nil
}
