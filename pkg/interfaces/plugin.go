// Package interfaces 定义 go-mcproto 公共接口
//
// 本文件定义插件接口。插件在连接的事件面之上添加与协议状态无关的行为
// （keepalive、压缩协商），它只能通过 PluginHost 能力对象操作连接。
package interfaces

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-mcproto/pkg/types"
)

// Cancel 取消一个订阅或定时任务
type Cancel func()

// PluginHost 插件能力对象
//
// 只暴露插件被允许触碰的操作，插件无法拿到连接本身。
type PluginHost interface {
	// Role 连接角色
	Role() types.Role

	// State 当前协议状态
	State() types.State

	// Clock 连接使用的时钟（测试中可替换为 mock）
	Clock() clock.Clock

	// Write 发送数据包
	Write(name string, params types.Params) error

	// SetOutputCompression 更新输出方向压缩阈值
	SetOutputCompression(threshold int) error

	// SetInputCompression 更新输入方向压缩阈值
	SetInputCompression(threshold int) error

	// SetLatency 记录往返延迟
	SetLatency(d time.Duration)

	// End 以指定原因终止连接
	End(reason string)

	// OnPacket 订阅指定名称的数据包
	OnPacket(name string, fn func(types.Params)) Cancel

	// OnState 订阅状态迁移
	OnState(fn func(types.State)) Cancel

	// OnEnd 订阅连接终止
	OnEnd(fn func(reason string)) Cancel
}

// Plugin 插件
type Plugin interface {
	// Name 插件名称（用于日志）
	Name() string

	// Attach 挂载到一个连接，返回的 Cancel 用于卸载
	Attach(host PluginHost) (Cancel, error)
}
