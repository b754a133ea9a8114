// Package handshake 实现登录与状态查询握手
//
// 客户端：
//
//	prof, err := handshake.Login(ctx, c, handshake.ClientOptions{
//	    Host: "localhost", Port: 25565, Username: "Steve",
//	})
//
// 服务器在设置 socket 之前创建 ServerLogin，订阅必须先于首个数据包：
//
//	l, err := handshake.NewServerLogin(ctx, c, handshake.ServerOptions{})
//	c.SetSocket(sock)
//	prof, err := l.Wait(ctx)
//
// 登录顺序为 login_start → encryption_begin（在线模式）→ compress（可选）
// → success。状态迁移由 conn 根据 set_protocol 与 success 自动完成，本包
// 只负责应答与密钥交换。
//
// 数据包处理器在连接的读循环中同步执行，加密在处理器返回前安装，
// 因此其后的字节一定经过解密。
package handshake
