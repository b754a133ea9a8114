package codec

import "errors"

var (
	// ErrUnsupportedVersion 版本不在支持列表中
	ErrUnsupportedVersion = errors.New("codec: unsupported protocol version")

	// ErrUnknownType schema 中使用了未知数据类型
	ErrUnknownType = errors.New("codec: unknown datatype")

	// ErrUnknownPacket 数据包名称或 ID 不在 schema 中
	ErrUnknownPacket = errors.New("codec: unknown packet")

	// ErrShortBuffer 数据在字段结束前耗尽
	ErrShortBuffer = errors.New("codec: unexpected end of packet")

	// ErrMissingField 编码时缺少必需字段
	ErrMissingField = errors.New("codec: missing field")

	// ErrInvalidValue 字段值类型或范围不合法
	ErrInvalidValue = errors.New("codec: invalid value")
)
