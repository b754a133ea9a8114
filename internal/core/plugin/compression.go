package plugin

import (
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// Compression 压缩协商插件
type Compression struct {
	threshold int
}

// NewCompression 创建压缩插件，threshold 为服务器宣告的阈值，负数表示不宣告
func NewCompression(threshold int) *Compression {
	return &Compression{threshold: threshold}
}

// Name 实现 Plugin
func (p *Compression) Name() string { return string(KindCompression) }

// Attach 实现 Plugin
//
// 服务器在收到 login_start 后发送 compress，连接在发出后自动启用两个方向
// 的压缩；客户端按收到的阈值设置输出方向。
func (p *Compression) Attach(h interfaces.PluginHost) (interfaces.Cancel, error) {
	if !h.Role().IsServer() {
		return h.OnPacket("compress", func(params types.Params) {
			threshold, ok := params["threshold"].(int32)
			if !ok {
				return
			}
			if err := h.SetOutputCompression(int(threshold)); err != nil {
				logger.Warn("设置压缩阈值失败", "err", err)
			}
		}), nil
	}

	if p.threshold < 0 {
		return func() {}, nil
	}
	return h.OnPacket("login_start", func(types.Params) {
		if h.State() != types.StateLogin {
			return
		}
		if err := h.Write("compress", types.Params{"threshold": p.threshold}); err != nil {
			logger.Warn("宣告压缩阈值失败", "err", err)
		}
	}), nil
}
