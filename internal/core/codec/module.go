package codec

import "go.uber.org/fx"

// Module 返回 fx 模块配置
//
// 提供进程级默认缓存，所有连接共享同一个实例。
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(Default),
	)
}

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "codec"
	Description = "数据包 schema 编译与进程级缓存"
)
