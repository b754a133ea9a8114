package types

import "fmt"

// ============================================================================
//                              State - 协议状态
// ============================================================================

// State 协议状态，决定使用哪一套数据包 schema
type State string

const (
	// StateHandshaking 握手状态（连接初始状态）
	StateHandshaking State = "handshaking"
	// StateStatus 服务器列表查询状态
	StateStatus State = "status"
	// StateLogin 登录状态
	StateLogin State = "login"
	// StatePlay 游戏状态
	StatePlay State = "play"
)

// States 全部协议状态，按推进顺序排列
var States = []State{StateHandshaking, StateStatus, StateLogin, StatePlay}

// String 返回状态名称
func (s State) String() string {
	return string(s)
}

// Valid 判断是否为已知状态
func (s State) Valid() bool {
	switch s {
	case StateHandshaking, StateStatus, StateLogin, StatePlay:
		return true
	}
	return false
}

// ParseState 解析状态名称
func ParseState(name string) (State, error) {
	s := State(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown protocol state %q", name)
	}
	return s, nil
}

// 握手 next state 意图值
const (
	IntentStatus = 1
	IntentLogin  = 2
)

// NextState 将握手包中的 nextState 意图映射为协议状态
//
//	1 -> status
//	2 -> login
func NextState(intent int) (State, bool) {
	switch intent {
	case IntentStatus:
		return StateStatus, true
	case IntentLogin:
		return StateLogin, true
	}
	return "", false
}

// CanTransition 判断状态迁移是否合法
//
// 迁移只能单调前进：STATUS/LOGIN 只能从 HANDSHAKING 进入，PLAY 只能从
// LOGIN 进入。回到 HANDSHAKING 只在断开后的重置中发生，不经过此函数。
func CanTransition(from, to State) bool {
	switch to {
	case StateStatus, StateLogin:
		return from == StateHandshaking
	case StatePlay:
		return from == StateLogin
	}
	return false
}

// ============================================================================
//                              Direction - 数据包方向
// ============================================================================

// Direction 数据包方向，对应 schema 中的 toClient / toServer 分支
type Direction string

const (
	// ToClient 服务器发往客户端
	ToClient Direction = "toClient"
	// ToServer 客户端发往服务器
	ToServer Direction = "toServer"
)

// String 返回方向名称
func (d Direction) String() string {
	return string(d)
}

// Valid 判断是否为已知方向
func (d Direction) Valid() bool {
	return d == ToClient || d == ToServer
}

// Opposite 返回相反方向
func (d Direction) Opposite() Direction {
	if d == ToClient {
		return ToServer
	}
	return ToClient
}

// ============================================================================
//                              Role - 连接角色
// ============================================================================

// Role 连接一端的角色
type Role int

const (
	// RoleClient 客户端
	RoleClient Role = iota
	// RoleServer 服务器
	RoleServer
)

// String 返回角色名称
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// IsServer 是否为服务器角色
func (r Role) IsServer() bool {
	return r == RoleServer
}

// Inbound 返回该角色接收数据包的方向
//
// 服务器接收 toServer，客户端接收 toClient。
func (r Role) Inbound() Direction {
	if r == RoleServer {
		return ToServer
	}
	return ToClient
}

// Outbound 返回该角色发送数据包的方向
func (r Role) Outbound() Direction {
	return r.Inbound().Opposite()
}
