// Package interfaces 定义 go-mcproto 公共接口
//
// 本文件定义指标上报接口。
package interfaces

import "github.com/dep2p/go-mcproto/pkg/types"

// Reporter 指标上报
//
// 所有方法必须并发安全且不阻塞。
type Reporter interface {
	// LogRecvBytes 记录从 socket 读取的字节数
	LogRecvBytes(n int)

	// LogSentBytes 记录写入 socket 的字节数
	LogSentBytes(n int)

	// LogPacket 记录一个编码或解码成功的数据包
	LogPacket(dir types.Direction, state types.State, name string)

	// LogCodecError 记录一个非致命编解码错误
	LogCodecError(dir types.Direction, state types.State)

	// LogStateTransition 记录状态迁移
	LogStateTransition(from, to types.State)

	// LogEnd 记录连接终止原因
	LogEnd(reason string)
}
