package conn

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/internal/core/pipeline"
	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// ============================================================================
//                              发送
// ============================================================================

// Write 编码并发送一个数据包
//
// 编码失败返回 *types.CodecError，连接不受影响；socket 写入失败会终止连接。
func (c *Conn) Write(name string, params types.Params) error {
	state, err := c.send(&types.Packet{Name: name, Params: params}, "")
	if err != nil {
		return err
	}
	if logger.Enabled(log.LevelDebug) {
		logger.Debug("写入数据包", "state", state, "name", name)
	}
	if r := c.reporter(); r != nil {
		r.LogPacket(c.role.Outbound(), state, name)
	}
	c.afterWrite(state, name, params)
	return nil
}

// WriteRaw 发送已序列化的数据包字节（含包 ID）
//
// 字节从序列化阶段之后进入输出管道，仍会经过压缩、帧与加密。
func (c *Conn) WriteRaw(raw []byte) error {
	_, err := c.send(raw, pipeline.StageSerialization)
	return err
}

func (c *Conn) send(chunk any, after pipeline.StageName) (types.State, error) {
	c.mu.Lock()
	out, state := c.output, c.state
	connected, ending := c.socket != nil && !c.ended, c.ending
	c.mu.Unlock()

	if !connected {
		return state, ErrNotConnected
	}
	if ending {
		return state, ErrEnded
	}

	c.writeMu.Lock()
	c.outErrs = nil
	var err error
	if after == "" {
		err = out.Write(chunk)
	} else {
		err = out.WriteAfter(after, chunk)
	}
	failed := c.outErrs
	c.outErrs = nil
	c.writeMu.Unlock()

	// 锁已释放，error 订阅者可以继续写入
	var codecErr error
	for _, e := range failed {
		if codecErr == nil {
			codecErr = e
		}
		c.emitError(e)
	}

	switch {
	case err == nil:
		return state, codecErr
	case errors.Is(err, pipeline.ErrAborted):
		return state, ErrEnded
	case types.IsFatal(err):
		c.fail(err)
	}
	return state, err
}

// afterWrite 发出数据包后的自动状态切换
func (c *Conn) afterWrite(state types.State, name string, params types.Params) {
	switch {
	case state == types.StateHandshaking && name == "set_protocol" && !c.role.IsServer():
		c.followIntent(params)
	case state == types.StateLogin && name == "compress" && c.role.IsServer():
		c.followCompression(params)
	case state == types.StateLogin && name == "success" && c.role.IsServer():
		c.follow(c.SetState(types.StatePlay))
	}
}

// afterRead 收到数据包后的自动状态切换
//
// 订阅者已经终止连接时不再切换。
func (c *Conn) afterRead(pkt *types.Packet) {
	c.mu.Lock()
	stopped := c.ending || c.ended
	in := c.input
	c.mu.Unlock()
	if stopped || in.Aborted() {
		return
	}

	state := pkt.Meta.State
	switch {
	case state == types.StateHandshaking && pkt.Name == "set_protocol" && c.role.IsServer():
		c.followIntent(pkt.Params)
	case state == types.StateLogin && pkt.Name == "compress" && !c.role.IsServer():
		c.followCompression(pkt.Params)
	case state == types.StateLogin && pkt.Name == "success" && !c.role.IsServer():
		c.follow(c.SetState(types.StatePlay))
	}
}

func (c *Conn) followIntent(params types.Params) {
	intent, ok := intParam(params, "nextState")
	if !ok {
		c.emitError(fmt.Errorf("%w: missing nextState", ErrInvalidIntent))
		return
	}
	next, ok := types.NextState(intent)
	if !ok {
		c.emitError(fmt.Errorf("%w: %d", ErrInvalidIntent, intent))
		return
	}
	c.follow(c.SetState(next))
}

func (c *Conn) followCompression(params types.Params) {
	threshold, ok := intParam(params, "threshold")
	if !ok {
		c.emitError(errors.New("conn: compress packet without threshold"))
		return
	}
	c.follow(c.SetCompressionThreshold(threshold))
}

func (c *Conn) follow(err error) {
	// 切换过程中连接被终止
	if err == nil || errors.Is(err, pipeline.ErrAborted) {
		return
	}
	c.emitError(err)
}

func intParam(params types.Params, key string) (int, bool) {
	switch v := params[key].(type) {
	case int32:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// ============================================================================
//                              接收
// ============================================================================

// deliver 输入管道的出口，把数据包同步分发到所有通道
func (c *Conn) deliver(chunk any) error {
	pkt, ok := chunk.(*types.Packet)
	if !ok {
		return fmt.Errorf("%w: want *types.Packet, got %T", transform.ErrUnexpectedChunk, chunk)
	}
	if logger.Enabled(log.LevelDebug) {
		logger.Debug("读取数据包", "state", pkt.Meta.State, "name", pkt.Name, "size", pkt.Meta.Size)
	}
	if r := c.reporter(); r != nil {
		r.LogPacket(pkt.Meta.Direction, pkt.Meta.State, pkt.Name)
	}
	c.bus.Dispatch(pkt)
	c.afterRead(pkt)
	return nil
}

// inputError 输入管道的非致命错误
func (c *Conn) inputError(stage pipeline.StageName, err error) {
	c.codecError(err)
	c.emitError(err)
}

// outputError 输出管道的非致命错误，记录下来由 send 在释放写锁后发出
//
// 只会在持有 c.writeMu 的写入 goroutine 中被调用。
func (c *Conn) outputError(stage pipeline.StageName, err error) {
	c.outErrs = append(c.outErrs, err)
	c.codecError(err)
}

func (c *Conn) codecError(err error) {
	var ce *types.CodecError
	if !errors.As(err, &ce) {
		return
	}
	if r := c.reporter(); r != nil {
		r.LogCodecError(ce.Direction, ce.State)
	}
}

// emitError 发出 error 事件，没有订阅者时记录日志
func (c *Conn) emitError(err error) {
	if !c.bus.Has(eventbus.TopicError) {
		logger.Warn("连接错误", "role", c.role, "err", err)
		return
	}
	c.bus.Emit(eventbus.TopicError, err)
}

// ============================================================================
//                              订阅
// ============================================================================

// OnPacket 按名称订阅负载
func (c *Conn) OnPacket(name string, once bool, fn func(types.Params)) (*eventbus.Subscription, error) {
	return c.bus.OnPacket(name, once, fn)
}

// OnPacketMeta 按名称订阅负载与元信息
func (c *Conn) OnPacketMeta(name string, once bool, fn func(types.Params, types.Metadata)) (*eventbus.Subscription, error) {
	return c.bus.OnPacketMeta(name, once, fn)
}

// OnRaw 按名称订阅原始字节
func (c *Conn) OnRaw(name string, once bool, fn func([]byte, types.Metadata)) (*eventbus.Subscription, error) {
	return c.bus.OnRaw(name, once, fn)
}

// OnAny 订阅所有数据包
func (c *Conn) OnAny(fn func(types.Params, types.Metadata)) (*eventbus.Subscription, error) {
	return c.bus.OnAny(fn)
}

// OnAnyRaw 订阅所有数据包的原始字节
func (c *Conn) OnAnyRaw(fn func([]byte, types.Metadata)) (*eventbus.Subscription, error) {
	return c.bus.OnAnyRaw(fn)
}

// OnState 订阅状态迁移
func (c *Conn) OnState(fn func(eventbus.StateChange)) (*eventbus.Subscription, error) {
	return c.bus.OnState(fn)
}

// OnError 订阅错误
func (c *Conn) OnError(fn func(error)) (*eventbus.Subscription, error) {
	return c.bus.OnError(fn)
}

// OnEnd 订阅连接终止
func (c *Conn) OnEnd(fn func(reason string)) (*eventbus.Subscription, error) {
	return c.bus.OnEnd(fn)
}

// OnConnect 订阅 socket 接入
func (c *Conn) OnConnect(fn func()) (*eventbus.Subscription, error) {
	return c.bus.OnConnect(fn)
}
