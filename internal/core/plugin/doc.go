// Package plugin 管理挂载到连接上的插件
//
// 插件只能通过 interfaces.PluginHost 能力对象操作连接：发送数据包、调整
// 压缩阈值、记录延迟、终止连接以及订阅事件。Manager 为每个插件创建独立
// 的能力对象，卸载时统一取消该插件留下的订阅。
//
// 内置插件：
//   - keepalive   客户端回显心跳并在超时后断开；服务器进入 PLAY 后定期发送
//     心跳并测量延迟
//   - compression 服务器在收到 login_start 后宣告压缩阈值；客户端按宣告值
//     设置输出方向压缩
//
// 使用示例：
//
//	m := plugin.NewManager(c)
//	id, err := m.Load(plugin.NewKeepAlive(plugin.KeepAliveOptions{}))
//	...
//	_ = m.Unload(id)
package plugin
