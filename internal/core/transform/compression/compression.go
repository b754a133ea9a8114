package compression

import "github.com/dep2p/go-mcproto/pkg/interfaces"

// CreateInput 构造输入方向的压缩阶段
//
// 选项：threshold int, hideErrors bool, strict bool
func CreateInput(opts interfaces.Options) (interfaces.Transformer, error) {
	return NewDecompressor(
		opts.Int(OptThreshold, Disabled),
		opts.Bool(OptHideErrors, false),
		opts.Bool(OptStrict, false),
	), nil
}

// CreateOutput 构造输出方向的压缩阶段
//
// 选项：threshold int
func CreateOutput(opts interfaces.Options) (interfaces.Transformer, error) {
	c := NewCompressor(opts.Int(OptThreshold, Disabled))
	c.hideErrors.Store(opts.Bool(OptHideErrors, false))
	return c, nil
}
