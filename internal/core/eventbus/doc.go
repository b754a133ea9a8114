// Package eventbus 实现连接内的同步事件分发
//
// 每个连接拥有一个 Bus。解码出的数据包通过 Dispatch 在一个同步步骤中
// 依次分发到五个通道：
//
//	packet/<name>       仅负载         func(types.Params)
//	packet-meta/<name>  负载 + 元信息   func(types.Params, types.Metadata)
//	raw/<name>          原始字节 + 元信息 func([]byte, types.Metadata)
//	packet              任意数据包      func(types.Params, types.Metadata)
//	raw                 任意原始字节    func([]byte, types.Metadata)
//
// 所有订阅者在下一个数据包处理之前看到同一个数据包，不会交错。
// 另有生命周期主题 state、error、end、connect。
//
// # 并发安全
//
// 订阅与取消订阅可以在任意 goroutine 中进行，也可以在回调内部进行。
// 分发时先在锁内复制订阅者列表，回调在锁外执行。
package eventbus
