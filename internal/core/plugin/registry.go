package plugin

import (
	"fmt"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// Kind 内置插件种类
type Kind string

const (
	// KindKeepAlive 心跳
	KindKeepAlive Kind = "keepalive"
	// KindCompression 压缩协商
	KindCompression Kind = "compression"
)

// builtins 内置插件构造函数
var builtins = map[Kind]func(cfg *config.Config) interfaces.Plugin{
	KindKeepAlive: func(cfg *config.Config) interfaces.Plugin {
		return NewKeepAlive(KeepAliveOptions{
			Timeout:  cfg.KeepAlive.Timeout.Duration(),
			Interval: cfg.KeepAlive.Interval.Duration(),
		})
	},
	KindCompression: func(cfg *config.Config) interfaces.Plugin {
		return NewCompression(cfg.Compression.Threshold)
	},
}

// New 按种类构造内置插件，cfg 为 nil 时使用默认配置
func New(kind Kind, cfg *config.Config) (interfaces.Plugin, error) {
	build, ok := builtins[kind]
	if !ok {
		return nil, fmt.Errorf("plugin: unknown kind %q", kind)
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return build(cfg), nil
}

// FromConfig 返回配置启用的内置插件
//
// 压缩插件总是加载：服务器按阈值决定是否宣告，客户端总是跟随宣告。
func FromConfig(cfg *config.Config) []interfaces.Plugin {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	var out []interfaces.Plugin
	if cfg.KeepAlive.Enabled {
		out = append(out, builtins[KindKeepAlive](cfg))
	}
	out = append(out, builtins[KindCompression](cfg))
	return out
}
