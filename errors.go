package mcproto

import (
	"errors"

	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/handshake"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 连接
	// ────────────────────────────────────────────────────────────────────────

	// ErrConnectionFailed 建立 TCP 连接失败
	ErrConnectionFailed = errors.New("mcproto: connection failed")

	// ErrServerClosed 服务器已关闭
	ErrServerClosed = errors.New("mcproto: server closed")

	// ErrNotConnected 尚未设置 socket
	ErrNotConnected = conn.ErrNotConnected

	// ErrEnded 连接已终止
	ErrEnded = conn.ErrEnded

	// ────────────────────────────────────────────────────────────────────────
	// 握手
	// ────────────────────────────────────────────────────────────────────────

	// ErrKicked 服务器在登录期间断开
	ErrKicked = handshake.ErrKicked

	// ErrVerifyToken 加密握手验证失败
	ErrVerifyToken = handshake.ErrVerifyToken

	// ────────────────────────────────────────────────────────────────────────
	// 编解码
	// ────────────────────────────────────────────────────────────────────────

	// ErrSerialization 数据包编码失败
	ErrSerialization = types.ErrSerialization

	// ErrDeserialization 数据包解码失败
	ErrDeserialization = types.ErrDeserialization
)

// 连接终止原因
const (
	ReasonClientClosed  = "ClientClosed"
	ReasonServerClosed  = "ServerClosed"
	ReasonSocketClosed  = conn.ReasonSocketClosed
	ReasonSocketTimeout = conn.ReasonSocketTimeout
	ReasonProtocolError = conn.ReasonProtocolError
)
