// Package conn 实现连接状态机
//
// Conn 持有一条输入管道和一条输出管道，跟踪协议状态，协商压缩与加密，
// 并把解码后的数据包同步分发到事件总线。
//
// # 状态迁移
//
//	HANDSHAKING --nextState=1--> STATUS
//	HANDSHAKING --nextState=2--> LOGIN
//	LOGIN       --success------> PLAY
//
// 每次迁移只热更新两条管道的序列化阶段（以及输入帧阶段的旧版 ping
// 识别开关）。断开后状态复位为 HANDSHAKING，压缩与加密阶段恢复为直通，
// 同一个 Conn 可以接入新的 socket。
//
// # 自动行为
//
//   - 收到或发出 set_protocol：按 nextState 切换状态
//   - 客户端收到 compress / 服务器发出 compress：两个方向启用压缩
//   - 客户端收到 success / 服务器发出 success：进入 PLAY
//
// # 终止
//
// End(reason) 取消两条管道，半关闭 socket，并启动关闭定时器；对端在超时
// 前没有关闭时强制销毁 socket。socket 错误与读超时走同一路径，原因分别为
// ReasonSocketClosed 与 ReasonSocketTimeout。
//
// # 使用示例
//
//	c, err := conn.New(types.RoleClient, conn.WithVersion("1.16.4"))
//	if err != nil {
//	    return err
//	}
//	c.OnPacket("keep_alive", false, func(p types.Params) {
//	    _ = c.Write("keep_alive", p)
//	})
//	c.SetSocket(sock)
package conn
