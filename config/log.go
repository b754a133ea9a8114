package config

import (
	"fmt"

	"github.com/dep2p/go-mcproto/pkg/lib/log"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug/info/warn/error
	// 默认值: info
	Level string `json:"level"`

	// Format 输出格式：text/json
	// 默认值: text
	Format string `json:"format"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: string(log.FormatText),
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	if _, ok := log.ParseLevel(c.Level); !ok {
		return fmt.Errorf("config: unknown log level %q", c.Level)
	}
	switch log.Format(c.Format) {
	case log.FormatText, log.FormatJSON, "":
		return nil
	}
	return fmt.Errorf("config: unknown log format %q", c.Format)
}
