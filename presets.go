package mcproto

import (
	"github.com/dep2p/go-mcproto/config"
)

// 预设名称常量
const (
	// PresetClient 客户端预设名称
	PresetClient = "client"

	// PresetServer 服务器预设名称
	PresetServer = "server"
)

// GetClientConfig 获取客户端配置
//
// 不宣告压缩，保持心跳应答。
func GetClientConfig() *config.Config {
	return presetConfig(PresetClient)
}

// GetServerConfig 获取服务器配置
//
// 宣告压缩阈值 256，离线模式。
func GetServerConfig() *config.Config {
	return presetConfig(PresetServer)
}

func presetConfig(name string) *config.Config {
	cfg := config.NewConfig()
	// 预设名称是常量，不会失败
	_ = config.ApplyPreset(cfg, name)
	return cfg
}
