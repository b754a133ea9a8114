package conn

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/internal/core/pipeline"
	"github.com/dep2p/go-mcproto/internal/core/transform/compression"
	"github.com/dep2p/go-mcproto/internal/core/transform/encryption"
	"github.com/dep2p/go-mcproto/internal/core/transform/framing"
	"github.com/dep2p/go-mcproto/internal/core/transform/serialization"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// ============================================================================
//                              协议状态
// ============================================================================

// SetState 切换协议状态
//
// 两条管道的序列化阶段同时热更新，新的 schema 从下一个完整帧开始生效。
func (c *Conn) SetState(to types.State) error {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return nil
	}
	if !types.CanTransition(from, to) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	opts := interfaces.Options{serialization.OptState: to}
	if err := c.input.Update(pipeline.StageSerialization, opts); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.output.Update(pipeline.StageSerialization, opts); err != nil {
		// 两条管道保持同一状态
		back := interfaces.Options{serialization.OptState: from}
		err = multierr.Append(err, c.input.Update(pipeline.StageSerialization, back))
		c.mu.Unlock()
		return err
	}
	if err := c.input.Update(pipeline.StageFraming, interfaces.Options{
		framing.OptRecognizeLegacyPing: to == types.StateHandshaking,
	}); err != nil {
		logger.Warn("更新旧版 ping 识别失败", "role", c.role, "state", to, "err", err)
	}
	c.state = to
	c.mu.Unlock()

	logger.Debug("状态切换", "role", c.role, "from", from, "to", to)
	if r := c.reporter(); r != nil {
		r.LogStateTransition(from, to)
	}
	c.bus.Emit(eventbus.TopicState, eventbus.StateChange{From: from, To: to})
	return nil
}

// ============================================================================
//                              压缩
// ============================================================================

// SetCompressionThreshold 同时设置两个方向的压缩阈值
//
// 负数禁用压缩，阶段恢复为直通；其余值被夹在 [24, 1460]。
func (c *Conn) SetCompressionThreshold(threshold int) error {
	return multierr.Combine(
		c.SetInputCompression(threshold),
		c.SetOutputCompression(threshold),
	)
}

// SetInputCompression 设置输入方向的压缩阈值
func (c *Conn) SetInputCompression(threshold int) error {
	return c.setCompression(pipeline.Input, threshold)
}

// SetOutputCompression 设置输出方向的压缩阈值
func (c *Conn) SetOutputCompression(threshold int) error {
	return c.setCompression(pipeline.Output, threshold)
}

func (c *Conn) setCompression(flow pipeline.Flow, threshold int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, cur := c.input, &c.inThresh
	if flow == pipeline.Output {
		p, cur = c.output, &c.outThresh
	}

	var opts interfaces.Options
	if threshold >= 0 {
		opts = c.compressionOptions(threshold)
	}
	if err := p.Update(pipeline.StageCompression, opts); err != nil {
		return err
	}
	*cur = compression.EffectiveThreshold(threshold)
	logger.Debug("压缩阈值已更新", "flow", flow, "threshold", *cur)
	return nil
}

// compressionOptions 调用方持有 c.mu
func (c *Conn) compressionOptions(threshold int) interfaces.Options {
	return interfaces.Options{
		compression.OptThreshold:  threshold,
		compression.OptHideErrors: c.hideErrors,
		compression.OptStrict:     c.opts.strict,
	}
}

// ============================================================================
//                              加密
// ============================================================================

// SetEncryption 以共享密钥安装两个方向的加密
//
// 两个方向的实例先构造完成再一起换入，任一构造失败时不安装。每个连接
// 只能安装一次。
func (c *Conn) SetEncryption(secret []byte) error {
	dec, err := encryption.NewDecipher(secret)
	if err != nil {
		return err
	}
	enc, err := encryption.NewCipher(secret)
	if err != nil {
		return err
	}
	key := append([]byte(nil), secret...)
	opts := interfaces.Options{encryption.OptSecret: key}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret != nil {
		_ = dec.Close()
		_ = enc.Close()
		return ErrEncryptionInstalled
	}

	inCons, _ := pipeline.Constructor(pipeline.StageEncryption, pipeline.Input)
	outCons, _ := pipeline.Constructor(pipeline.StageEncryption, pipeline.Output)
	if err := c.input.Set(pipeline.Stage{
		Name:        pipeline.StageEncryption,
		Transformer: dec,
		Construct:   inCons,
		Options:     opts,
	}); err != nil {
		_ = enc.Close()
		return err
	}
	if err := c.output.Set(pipeline.Stage{
		Name:        pipeline.StageEncryption,
		Transformer: enc,
		Construct:   outCons,
		Options:     opts,
	}); err != nil {
		return types.Fatal("encryption", err)
	}
	c.secret = key
	logger.Debug("加密已安装", "role", c.role)
	return nil
}

// ============================================================================
//                              序列化参数
// ============================================================================

// SetVersion 切换协议版本
func (c *Conn) SetVersion(version string) error {
	if !types.IsSupportedVersion(version) {
		return fmt.Errorf("%w: %s", codec.ErrUnsupportedVersion, version)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.updateSerialization(interfaces.Options{serialization.OptVersion: version}); err != nil {
		return err
	}
	c.version = version
	return nil
}

// SetCustomPackets 替换自定义数据包覆盖层
func (c *Conn) SetCustomPackets(custom codec.CustomPackets) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.updateSerialization(interfaces.Options{serialization.OptCustomPackets: custom}); err != nil {
		return err
	}
	c.custom = custom
	return nil
}

// SetHideErrors 设置是否抑制解压与反序列化错误日志
func (c *Conn) SetHideErrors(hide bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.updateSerialization(interfaces.Options{serialization.OptHideErrors: hide}); err != nil {
		return err
	}
	c.hideErrors = hide

	delta := interfaces.Options{compression.OptHideErrors: hide}
	var err error
	if c.inThresh >= 0 {
		err = multierr.Append(err, c.input.Update(pipeline.StageCompression, delta))
	}
	if c.outThresh >= 0 {
		err = multierr.Append(err, c.output.Update(pipeline.StageCompression, delta))
	}
	return err
}

// updateSerialization 调用方持有 c.mu
func (c *Conn) updateSerialization(delta interfaces.Options) error {
	return multierr.Combine(
		c.input.Update(pipeline.StageSerialization, delta),
		c.output.Update(pipeline.StageSerialization, delta),
	)
}
