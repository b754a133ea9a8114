package conn

import "errors"

var (
	// ErrNotConnected 尚未设置 socket
	ErrNotConnected = errors.New("conn: no socket")

	// ErrEnded 连接已终止
	ErrEnded = errors.New("conn: connection ended")

	// ErrInvalidTransition 非法的状态迁移
	ErrInvalidTransition = errors.New("conn: invalid state transition")

	// ErrEncryptionInstalled 加密已安装，不能重新设置密钥
	ErrEncryptionInstalled = errors.New("conn: encryption already installed")

	// ErrInvalidIntent 握手包中的 nextState 无法识别
	ErrInvalidIntent = errors.New("conn: invalid handshake intent")
)

// 终止原因
const (
	// ReasonSocketClosed 对端关闭或 socket 出错
	ReasonSocketClosed = "SocketClosed"

	// ReasonSocketTimeout socket 读空闲超时
	ReasonSocketTimeout = "SocketTimeout"

	// ReasonProtocolError 字节流完整性被破坏（超长帧、加密失败）
	ReasonProtocolError = "ProtocolError"
)
