// Package mcproto 实现 Minecraft Java 版网络协议栈
//
// 每个连接由两条变换管道组成（输入、输出），分别完成帧、压缩、加密与
// 序列化。连接维护协议状态机（HANDSHAKING → STATUS/LOGIN → PLAY），
// 在握手、压缩宣告与登录成功时自动切换状态与管道参数。
//
// # 快速开始
//
// 客户端：
//
//	c, err := mcproto.Dial(ctx, "localhost:25565", "Steve")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.OnPacket("chat", false, func(p types.Params) {
//	    fmt.Println(p["message"])
//	})
//	c.Write("chat", types.Params{"message": "hello"})
//
// 服务器：
//
//	srv, err := mcproto.Listen(ctx, ":25565", func(ctx context.Context, sc *mcproto.ServerConn) {
//	    sc.Write("kick_disconnect", types.Params{"reason": `{"text":"bye"}`})
//	}, mcproto.WithPreset(mcproto.PresetServer))
//
// # 组件
//
//   - Runtime: 连接共享的编解码缓存、指标与认证提供者
//   - Client / ServerConn: 内嵌连接，附带插件管理器
//   - Server: TCP 监听与逐连接登录握手
//
// 连接之间共享 schema 编译结果；同一 Runtime 创建的连接共享指标。
//
// # 插件
//
// 内置心跳（keepalive）与压缩协商（compression），通过 WithKeepAlive 与
// WithCompressionThreshold 配置，自定义插件通过 WithPlugins 加载。
//
// # 诊断
//
// WithDiagnostics 在本地地址上提供 /metrics、/debug/introspect 与 pprof，
// 服务随 Runtime.Start 启动；包级 Listen 会自动启动并在 Server.Close 时停止。
//
// # fx 集成
//
// Module 向外部 fx 应用提供 *Runtime，外部应用需提供 *config.Config。
package mcproto
