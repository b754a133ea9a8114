package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// SecretSize 共享密钥长度
const SecretSize = 16

// OptSecret 选项：共享密钥 []byte
const OptSecret = "secret"

// 确保实现了接口
var (
	_ interfaces.Transformer = (*Stream)(nil)
	_ interfaces.FlowControl = (*Stream)(nil)
)

// Stream CFB8 加密或解密阶段
type Stream struct {
	stream  cipher.Stream
	decrypt bool
}

// NewCipher 创建输出方向加密阶段
func NewCipher(secret []byte) (*Stream, error) {
	return newStream(secret, false)
}

// NewDecipher 创建输入方向解密阶段
func NewDecipher(secret []byte) (*Stream, error) {
	return newStream(secret, true)
}

func newStream(secret []byte, decrypt bool) (*Stream, error) {
	if len(secret) != SecretSize {
		return nil, types.Fatal("encryption", fmt.Errorf("%w: secret must be %d bytes, got %d", types.ErrCipher, SecretSize, len(secret)))
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, types.Fatal("encryption", fmt.Errorf("%w: %v", types.ErrCipher, err))
	}
	return &Stream{
		stream:  newCFB8(block, secret, decrypt),
		decrypt: decrypt,
	}, nil
}

// Transform 加密或解密字节块
func (s *Stream) Transform(ctx context.Context, chunk any, push interfaces.Push) error {
	b, err := transform.Bytes(chunk)
	if err != nil {
		return types.Fatal("encryption", fmt.Errorf("%w: %v", types.ErrCipher, err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.stream == nil {
		return types.Fatal("encryption", fmt.Errorf("%w: stream closed", types.ErrCipher))
	}
	out := make([]byte, len(b))
	s.stream.XORKeyStream(out, b)
	return push(out)
}

// Close 丢弃密钥流状态
func (s *Stream) Close() error {
	s.stream = nil
	return nil
}

// WritableHighWaterMark 实现 FlowControl
func (s *Stream) WritableHighWaterMark() int { return transform.ByteHighWaterMark }

// ReadableHighWaterMark 实现 FlowControl
func (s *Stream) ReadableHighWaterMark() int { return transform.ByteHighWaterMark }

// CreateInput 构造输入方向的加密阶段
//
// 选项：secret []byte（16 字节）
func CreateInput(opts interfaces.Options) (interfaces.Transformer, error) {
	return NewDecipher(opts.Bytes(OptSecret))
}

// CreateOutput 构造输出方向的加密阶段
func CreateOutput(opts interfaces.Options) (interfaces.Transformer, error) {
	return NewCipher(opts.Bytes(OptSecret))
}
