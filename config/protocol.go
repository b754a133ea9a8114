package config

import (
	"fmt"

	"github.com/dep2p/go-mcproto/pkg/types"
)

// ProtocolConfig 协议配置
type ProtocolConfig struct {
	// Version 协议版本
	// 默认值: 1.16.4
	Version string `json:"version"`

	// CustomPacketsFile 自定义数据包覆盖层（YAML）文件路径，为空表示不使用
	CustomPacketsFile string `json:"custom_packets_file,omitempty"`

	// HideErrors 抑制可恢复的解码/解压错误
	// 默认值: false
	HideErrors bool `json:"hide_errors"`

	// OnlineMode 服务器是否进行加密与会话校验
	// 默认值: false
	OnlineMode bool `json:"online_mode"`

	// Auth 认证提供者名称
	// 默认值: offline
	Auth string `json:"auth"`
}

// DefaultProtocolConfig 返回默认协议配置
func DefaultProtocolConfig() ProtocolConfig {
	return ProtocolConfig{
		Version: types.DefaultVersion,
		Auth:    "offline",
	}
}

// Validate 验证协议配置
func (c ProtocolConfig) Validate() error {
	if !types.IsSupportedVersion(c.Version) {
		return fmt.Errorf("config: unsupported protocol version %q", c.Version)
	}
	if c.Auth == "" {
		return fmt.Errorf("config: auth provider is empty")
	}
	return nil
}
