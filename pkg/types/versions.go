package types

import "strings"

// DefaultVersion 默认协议版本
const DefaultVersion = "1.16.4"

// Versions 支持的协议版本（显式枚举，按时间顺序）
var Versions = []string{
	"1.7",
	"1.8",
	"1.9",
	"1.10",
	"1.11.2",
	"1.12.2",
	"1.13.2",
	"1.14.4",
	"1.15.2",
	"1.16.4",
}

// protocolNumbers 握手包 protocolVersion 字段使用的协议号
var protocolNumbers = map[string]int{
	"1.7":    5,
	"1.8":    47,
	"1.9":    107,
	"1.10":   210,
	"1.11.2": 316,
	"1.12.2": 340,
	"1.13.2": 404,
	"1.14.4": 498,
	"1.15.2": 578,
	"1.16.4": 754,
}

// ProtocolNumber 返回版本对应的协议号
func ProtocolNumber(version string) (int, bool) {
	n, ok := protocolNumbers[version]
	return n, ok
}

// IsSupportedVersion 判断版本是否受支持
func IsSupportedVersion(version string) bool {
	for _, v := range Versions {
		if v == version {
			return true
		}
	}
	return false
}

// MajorVersion 返回主版本号，如 "1.16.4" -> "1.16"
//
// 自定义数据包按主版本号索引。
func MajorVersion(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
