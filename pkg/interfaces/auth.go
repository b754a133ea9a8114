// Package interfaces 定义 go-mcproto 公共接口
//
// 本文件定义认证提供者接口。认证提供者是外部协作者：它只在登录握手中
// 提供会话凭据，与变换管道没有交互。
package interfaces

import "context"

// Profile 玩家档案
type Profile struct {
	// ID 带连字符的 UUID 字符串
	ID string

	// Name 玩家名
	Name string
}

// Session 客户端会话凭据
type Session struct {
	AccessToken string
	Profile     Profile
}

// AuthProvider 认证提供者
type AuthProvider interface {
	// Name 提供者名称
	Name() string

	// Login 客户端登录，返回会话
	Login(ctx context.Context, username string) (*Session, error)

	// JoinServer 客户端在加密握手期间向会话服务登记 serverHash
	JoinServer(ctx context.Context, session *Session, serverHash string) error

	// HasJoined 服务器确认客户端已登记 serverHash，返回其档案
	HasJoined(ctx context.Context, username, serverHash string) (*Profile, error)
}
