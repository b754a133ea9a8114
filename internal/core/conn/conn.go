package conn

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/internal/core/pipeline"
	"github.com/dep2p/go-mcproto/internal/core/transform/framing"
	"github.com/dep2p/go-mcproto/internal/core/transform/serialization"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/conn")

// Conn 协议连接
type Conn struct {
	role types.Role
	opts options
	bus  *eventbus.Bus

	mu         sync.Mutex
	state      types.State
	version    string
	custom     codec.CustomPackets
	hideErrors bool
	inThresh   int
	outThresh  int
	secret     []byte
	latency    time.Duration

	input  *pipeline.Pipeline
	output *pipeline.Pipeline

	socket     net.Conn
	ended      bool
	ending     bool
	endReason  string
	closeTimer *clock.Timer

	// writeMu 串行化输出写入，使 Write 能拿到本次写入的编码错误
	writeMu sync.Mutex
	outErrs []error
}

// New 创建连接
func New(role types.Role, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !types.IsSupportedVersion(o.version) {
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupportedVersion, o.version)
	}

	c := &Conn{
		role:       role,
		opts:       o,
		bus:        eventbus.NewBus(),
		version:    o.version,
		custom:     o.custom,
		hideErrors: o.hideErrors,
		ended:      true,
	}
	if err := c.reset(); err != nil {
		return nil, err
	}
	logger.Debug("连接已创建", "role", role, "version", o.version)
	return c, nil
}

// reset 重建两条管道，状态回到 HANDSHAKING
//
// 调用方不能持有 c.mu。
func (c *Conn) reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = types.StateHandshaking
	c.inThresh, c.outThresh = -1, -1
	c.secret = nil

	in, err := pipeline.NewInput(c.stageOptions(pipeline.Input))
	if err != nil {
		return err
	}
	out, err := pipeline.NewOutput(c.stageOptions(pipeline.Output))
	if err != nil {
		_ = in.Close()
		return err
	}
	in.SetSink(c.deliver)
	in.SetErrorHandler(c.inputError)
	out.SetErrorHandler(c.outputError)

	old := []*pipeline.Pipeline{c.input, c.output}
	c.input, c.output = in, out

	var cerr error
	for _, p := range old {
		if p != nil {
			cerr = multierr.Append(cerr, p.Close())
		}
	}
	if cerr != nil {
		logger.Warn("关闭旧管道失败", "err", cerr)
	}
	return nil
}

// stageOptions 返回初始阶段选项，压缩与加密禁用
func (c *Conn) stageOptions(flow pipeline.Flow) map[pipeline.StageName]interfaces.Options {
	fr := interfaces.Options{}
	if flow == pipeline.Input {
		fr[framing.OptRecognizeLegacyPing] = true
	}
	return map[pipeline.StageName]interfaces.Options{
		pipeline.StageFraming: fr,
		pipeline.StageSerialization: {
			serialization.OptState:         types.StateHandshaking,
			serialization.OptIsServer:      c.role.IsServer(),
			serialization.OptVersion:       c.version,
			serialization.OptCustomPackets: c.custom,
			serialization.OptHideErrors:    c.hideErrors,
			serialization.OptCache:         c.opts.cache,
		},
	}
}

// ============================================================================
//                              查询
// ============================================================================

// Role 连接角色
func (c *Conn) Role() types.Role {
	return c.role
}

// State 当前协议状态
func (c *Conn) State() types.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version 协议版本
func (c *Conn) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// HideErrors 是否抑制解码错误日志
func (c *Conn) HideErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hideErrors
}

// CompressionThreshold 输出方向的压缩阈值，-1 表示未启用
func (c *Conn) CompressionThreshold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outThresh
}

// Encrypted 是否已安装加密
func (c *Conn) Encrypted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret != nil
}

// Latency 最近一次测得的往返延迟
func (c *Conn) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// SetLatency 记录往返延迟
func (c *Conn) SetLatency(d time.Duration) {
	c.mu.Lock()
	c.latency = d
	c.mu.Unlock()
}

// Clock 连接使用的时钟
func (c *Conn) Clock() clock.Clock {
	return c.opts.clock
}

// Ended 连接是否已终止（或尚未接入 socket）
func (c *Conn) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// Input 返回输入管道
func (c *Conn) Input() *pipeline.Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Output 返回输出管道
func (c *Conn) Output() *pipeline.Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// Bus 返回事件总线
func (c *Conn) Bus() *eventbus.Bus {
	return c.bus
}

func (c *Conn) reporter() interfaces.Reporter {
	return c.opts.reporter
}

func (c *Conn) pipelines() (in, out *pipeline.Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input, c.output
}
