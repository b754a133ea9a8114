// Package auth 提供登录握手使用的认证提供者
//
// 认证提供者在编译期注册，按名称选择：
//
//	p, err := auth.New(auth.ProviderOffline)
//	sess, err := p.Login(ctx, "Steve")
//
// 离线提供者不访问任何会话服务，玩家 UUID 由
// "OfflinePlayer:<name>" 的 MD5 派生（版本 3），与 Java 版服务器一致。
package auth
