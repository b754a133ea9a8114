package handshake

import "errors"

var (
	// ErrKicked 对端发送 disconnect
	ErrKicked = errors.New("handshake: disconnected by peer")

	// ErrConnectionEnded 握手完成前连接终止
	ErrConnectionEnded = errors.New("handshake: connection ended")

	// ErrVerifyToken 验证令牌不匹配
	ErrVerifyToken = errors.New("handshake: verify token mismatch")

	// ErrPublicKey 服务器公钥无法解析
	ErrPublicKey = errors.New("handshake: invalid server public key")

	// ErrStatusRequest 对端请求状态查询而不是登录
	ErrStatusRequest = errors.New("handshake: status request")

	// ErrUnexpectedPacket 数据包字段缺失或类型不符
	ErrUnexpectedPacket = errors.New("handshake: unexpected packet")
)

// ReasonLoginFailed 登录失败时的终止原因
const ReasonLoginFailed = "LoginFailed"
