package encryption

import "crypto/cipher"

// cfb8 8 位反馈模式的 cipher.Stream
//
// 标准库只提供整块反馈的 CFB，CFB8 每处理一个字节就把移位寄存器
// 左移一个字节，并把密文字节填入末尾。
type cfb8 struct {
	block   cipher.Block
	reg     []byte
	out     []byte
	decrypt bool
}

// 确保实现了接口
var _ cipher.Stream = (*cfb8)(nil)

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	bs := block.BlockSize()
	reg := make([]byte, bs)
	copy(reg, iv)
	return &cfb8{
		block:   block,
		reg:     reg,
		out:     make([]byte, bs),
		decrypt: decrypt,
	}
}

// XORKeyStream 实现 cipher.Stream
func (c *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("encryption: output smaller than input")
	}
	for i, b := range src {
		c.block.Encrypt(c.out, c.reg)
		x := b ^ c.out[0]
		copy(c.reg, c.reg[1:])
		if c.decrypt {
			c.reg[len(c.reg)-1] = b
		} else {
			c.reg[len(c.reg)-1] = x
		}
		dst[i] = x
	}
}
