package framing

import (
	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// CreateInput 构造输入方向的帧阶段
//
// 选项：recognizeLegacyPing bool
func CreateInput(opts interfaces.Options) (interfaces.Transformer, error) {
	return NewSplitter(opts.Bool(OptRecognizeLegacyPing, false)), nil
}

// CreateOutput 构造输出方向的帧阶段
func CreateOutput(_ interfaces.Options) (interfaces.Transformer, error) {
	return NewFramer(), nil
}
