package config

import "fmt"

// CompressionConfig 压缩配置
type CompressionConfig struct {
	// Threshold 服务器宣告的压缩阈值，负数表示不宣告
	// 生效值会被限制在 [24, 1460]
	// 默认值: -1
	Threshold int `json:"threshold"`

	// StrictLengthCheck 解压长度与声明长度不一致时终止连接
	// 默认值: false（仅记录日志）
	StrictLengthCheck bool `json:"strict_length_check"`
}

// DefaultCompressionConfig 返回默认压缩配置
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Threshold: -1,
	}
}

// Enabled 是否宣告压缩
func (c CompressionConfig) Enabled() bool {
	return c.Threshold >= 0
}

// Validate 验证压缩配置
func (c CompressionConfig) Validate() error {
	if c.Threshold >= 2097152 {
		return fmt.Errorf("config: compression threshold %d exceeds packet size limit", c.Threshold)
	}
	return nil
}
