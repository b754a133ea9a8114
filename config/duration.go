package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration 是配置文件中使用的时长
//
// JSON 中可写成时长字符串（"30s"、"4s"、"1m30s"）或整数毫秒。
// 毫秒与协议中心跳、超时参数的惯用单位一致：
//
//	{"keep_alive": {"interval": 4000, "timeout": "30s"}}
//
// 负值被拒绝。
type Duration time.Duration

// UnmarshalJSON 解析时长字符串或整数毫秒
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var v time.Duration
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("config: invalid duration %s: %w", data, err)
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		v = parsed
	} else {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("config: duration must be a string like \"30s\" or integer milliseconds, got %s", data)
		}
		v = time.Duration(ms) * time.Millisecond
	}

	if v < 0 {
		return fmt.Errorf("config: negative duration %s", v)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON 输出时长字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Milliseconds 返回整数毫秒
func (d Duration) Milliseconds() int64 {
	return time.Duration(d).Milliseconds()
}

// Or 为零值时返回 def
func (d Duration) Or(def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
