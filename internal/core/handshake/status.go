package handshake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// Status server_info 的 JSON 负载
type Status struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description Chat          `json:"description"`
	Favicon     string        `json:"favicon,omitempty"`
}

// StatusVersion 服务器版本
type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// StatusPlayers 在线人数
type StatusPlayers struct {
	Max    int             `json:"max"`
	Online int             `json:"online"`
	Sample []StatusProfile `json:"sample,omitempty"`
}

// StatusProfile 在线玩家样本
type StatusProfile struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Chat 聊天组件，只保留文本
//
// 旧服务器直接发送字符串，两种形式都能解码。
type Chat struct {
	Text string `json:"text"`
}

// UnmarshalJSON 接受字符串或 {"text": ...}
func (c *Chat) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &c.Text)
	}
	type plain Chat
	return json.Unmarshal(data, (*plain)(c))
}

// NewStatus 以连接版本填充 version 字段
func NewStatus(version, motd string, online, max int) Status {
	proto, _ := types.ProtocolNumber(version)
	return Status{
		Version:     StatusVersion{Name: version, Protocol: proto},
		Players:     StatusPlayers{Max: max, Online: online},
		Description: Chat{Text: motd},
	}
}

// PingResult 状态查询结果
type PingResult struct {
	Status  Status
	Latency time.Duration
}

// Ping 以客户端身份执行状态查询
//
// 连接必须处于 HANDSHAKING，返回时处于 STATUS，由调用方结束。
func Ping(ctx context.Context, c *conn.Conn, host string, port int) (*PingResult, error) {
	proto, ok := types.ProtocolNumber(c.Version())
	if !ok {
		return nil, fmt.Errorf("handshake: no protocol number for %s", c.Version())
	}

	info := make(chan types.Params, 1)
	pong := make(chan types.Params, 1)
	ended := make(chan string, 1)

	var subs subscriptions
	defer subs.close()
	err := multierr.Combine(
		subs.add(c.OnPacket("server_info", true, func(p types.Params) { info <- p })),
		subs.add(c.OnPacket("ping", true, func(p types.Params) { pong <- p })),
		subs.add(c.OnEnd(func(reason string) { ended <- reason })),
	)
	if err != nil {
		return nil, err
	}

	wait := func(ch <-chan types.Params) (types.Params, error) {
		select {
		case p := <-ch:
			return p, nil
		case reason := <-ended:
			return nil, fmt.Errorf("%w: %s", ErrConnectionEnded, reason)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := c.Write("set_protocol", types.Params{
		"protocolVersion": proto,
		"serverHost":      host,
		"serverPort":      port,
		"nextState":       types.IntentStatus,
	}); err != nil {
		return nil, err
	}
	if err := c.Write("ping_start", types.Params{}); err != nil {
		return nil, err
	}

	p, err := wait(info)
	if err != nil {
		return nil, err
	}
	raw, err := stringParam(p, "response")
	if err != nil {
		return nil, err
	}
	res := &PingResult{}
	if err := json.Unmarshal([]byte(raw), &res.Status); err != nil {
		return nil, fmt.Errorf("handshake: decode status: %w", err)
	}

	sent := c.Clock().Now()
	if err := c.Write("ping", types.Params{"time": sent.UnixMilli()}); err != nil {
		return nil, err
	}
	if _, err := wait(pong); err != nil {
		return nil, err
	}
	res.Latency = c.Clock().Since(sent)
	c.SetLatency(res.Latency)
	return res, nil
}

// ServeStatus 应答状态查询，provider 在每次查询时调用
//
// 必须在连接开始读取之前调用，返回的 Cancel 取消应答。
func ServeStatus(c *conn.Conn, provider func() Status) (interfaces.Cancel, error) {
	var subs subscriptions
	err := multierr.Combine(
		subs.add(c.OnPacket("ping_start", false, func(types.Params) {
			body, err := json.Marshal(provider())
			if err != nil {
				logger.Warn("状态编码失败", "err", err)
				return
			}
			if err := c.Write("server_info", types.Params{"response": string(body)}); err != nil {
				logger.Debug("状态应答失败", "err", err)
			}
		})),
		subs.add(c.OnPacket("ping", false, func(p types.Params) {
			if err := c.Write("ping", types.Params{"time": p["time"]}); err != nil {
				logger.Debug("ping 应答失败", "err", err)
			}
		})),
	)
	if err != nil {
		subs.close()
		return nil, err
	}
	return subs.close, nil
}
