package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-mcproto/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// 环境变量名
const (
	envPrefix               = "MCPROTO_"
	envVersion              = "VERSION"
	envAuth                 = "AUTH"
	envOnlineMode           = "ONLINE_MODE"
	envCompressionThreshold = "COMPRESSION_THRESHOLD"
	envDiagAddr             = "DIAG_ADDR"
)

// loadConfig 以预设为底加载 JSON 配置文件
//
// 文件中出现的字段覆盖预设，未出现的保留预设值。
func loadConfig(path, preset string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := config.ApplyPreset(cfg, preset); err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, fmt.Errorf("加载配置文件失败: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// 无法解析的数值与布尔值被忽略。
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + envVersion); v != "" {
		cfg.Protocol.Version = v
	}
	if v := os.Getenv(envPrefix + envAuth); v != "" {
		cfg.Protocol.Auth = v
	}
	if v := os.Getenv(envPrefix + envOnlineMode); v != "" {
		cfg.Protocol.OnlineMode = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envCompressionThreshold); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Compression.Threshold = n
		}
	}
	if v := os.Getenv(envPrefix + envDiagAddr); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
