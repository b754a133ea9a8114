// Package varint 实现协议使用的 32 位变长整数
//
// 协议 varint 是 LEB128 编码的 int32：负数按 uint32 补码编码，最长 5 字节。
// 编码本身与 multiformats/go-varint 的 uvarint 一致，这里只补充 int32 的
// 补码转换和 5 字节上限。
package varint

import (
	"encoding/binary"
	"errors"

	mv "github.com/multiformats/go-varint"
)

// MaxLen 32 位 varint 的最大字节数
const MaxLen = 5

var (
	// ErrIncomplete 缓冲区在 varint 结束前耗尽，需要更多字节
	ErrIncomplete = errors.New("varint: incomplete")

	// ErrTooBig varint 超过 5 字节或超出 32 位
	ErrTooBig = errors.New("varint: too big")

	// ErrNotMinimal varint 不是最短编码
	ErrNotMinimal = errors.New("varint: not minimally encoded")
)

// Size 返回 v 编码后的字节数
func Size(v int32) int {
	return mv.UvarintSize(uint64(uint32(v)))
}

// Append 将 v 编码后追加到 dst
func Append(dst []byte, v int32) []byte {
	return append(dst, mv.ToUvarint(uint64(uint32(v)))...)
}

// Encode 返回 v 的编码
func Encode(v int32) []byte {
	return mv.ToUvarint(uint64(uint32(v)))
}

// Decode 从 buf 头部解码一个 varint，返回值与消耗的字节数
//
// buf 不足以容纳完整 varint 时返回 ErrIncomplete，调用方应等待更多数据。
func Decode(buf []byte) (int32, int, error) {
	v, n, err := mv.FromUvarint(buf)
	switch {
	case errors.Is(err, mv.ErrUnderflow):
		if len(buf) >= MaxLen {
			return 0, 0, ErrTooBig
		}
		return 0, 0, ErrIncomplete
	case errors.Is(err, mv.ErrNotMinimal):
		return 0, 0, ErrNotMinimal
	case err != nil:
		return 0, 0, ErrTooBig
	}
	if n > MaxLen || v > 0xFFFFFFFF {
		return 0, 0, ErrTooBig
	}
	return int32(uint32(v)), n, nil
}

// DecodeLength 解码一个非负长度
func DecodeLength(buf []byte) (int, int, error) {
	v, n, err := Decode(buf)
	if err != nil {
		return 0, 0, err
	}
	if v < 0 {
		return 0, 0, ErrTooBig
	}
	return int(v), n, nil
}

// ============================================================================
//                              varlong
// ============================================================================

// MaxLongLen 64 位 varlong 的最大字节数
const MaxLongLen = binary.MaxVarintLen64

// AppendLong 将 64 位 varlong 追加到 dst，负数按 uint64 补码编码
func AppendLong(dst []byte, v int64) []byte {
	return binary.AppendUvarint(dst, uint64(v))
}

// DecodeLong 从 buf 头部解码一个 varlong
func DecodeLong(buf []byte) (int64, int, error) {
	v, n := binary.Uvarint(buf)
	switch {
	case n == 0:
		return 0, 0, ErrIncomplete
	case n < 0:
		return 0, 0, ErrTooBig
	}
	return int64(v), n, nil
}
