package handshake

import (
	"crypto/sha1"
	"math/big"
)

// ServerHash 计算会话服务使用的服务器摘要
//
// SHA-1(serverID || secret || publicKey) 按二进制补码解释为有符号大整数，
// 以十六进制输出，负数带 "-" 前缀且不补前导零。
func ServerHash(serverID string, secret, publicKey []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(secret)
	h.Write(publicKey)
	sum := h.Sum(nil)

	n := new(big.Int).SetBytes(sum)
	if sum[0]&0x80 != 0 {
		// 减去 2^160 得到补码对应的负值
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(sum)*8)))
	}
	return n.Text(16)
}
