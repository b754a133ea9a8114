package pipeline

import (
	"fmt"

	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/internal/core/transform/compression"
	"github.com/dep2p/go-mcproto/internal/core/transform/encryption"
	"github.com/dep2p/go-mcproto/internal/core/transform/framing"
	"github.com/dep2p/go-mcproto/internal/core/transform/serialization"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// ============================================================================
//                              阶段名称与方向
// ============================================================================

// StageName 阶段名称
type StageName string

// 内置阶段
const (
	StageFraming       StageName = "framing"
	StageCompression   StageName = "compression"
	StageEncryption    StageName = "encryption"
	StageSerialization StageName = "serialization"
)

// Flow 管道方向
type Flow int

const (
	// Input 输入管道：socket 字节 -> 数据包
	Input Flow = iota
	// Output 输出管道：数据包 -> socket 字节
	Output
)

func (f Flow) String() string {
	if f == Output {
		return "output"
	}
	return "input"
}

// Order 返回该方向的阶段遍历顺序
func (f Flow) Order() []StageName {
	if f == Output {
		return []StageName{StageSerialization, StageCompression, StageFraming, StageEncryption}
	}
	return []StageName{StageEncryption, StageFraming, StageCompression, StageSerialization}
}

// rank 返回阶段在遍历顺序中的位置，未知阶段排在末尾
func (f Flow) rank(name StageName) int {
	for i, n := range f.Order() {
		if n == name {
			return i
		}
	}
	return len(f.Order())
}

// ============================================================================
//                              注册表
// ============================================================================

// kind 一类阶段的构造函数
type kind struct {
	input         interfaces.Constructor
	output        interfaces.Constructor
	hotReloadable bool
}

// registry 编译期确定的阶段注册表
//
// 加密阶段不可热更新：密钥只能安装一次，更换需要构造新实例。
var registry = map[StageName]kind{
	StageFraming:       {framing.CreateInput, framing.CreateOutput, true},
	StageCompression:   {compression.CreateInput, compression.CreateOutput, true},
	StageEncryption:    {encryption.CreateInput, encryption.CreateOutput, false},
	StageSerialization: {serialization.CreateInput, serialization.CreateOutput, true},
}

// Constructor 返回内置阶段在指定方向上的构造函数
func Constructor(name StageName, flow Flow) (interfaces.Constructor, bool) {
	k, ok := registry[name]
	if !ok {
		return nil, false
	}
	if flow == Output {
		return k.output, true
	}
	return k.input, true
}

// HotReloadable 判断内置阶段是否可热更新
func HotReloadable(name StageName) bool {
	return registry[name].hotReloadable
}

// ============================================================================
//                              Stage
// ============================================================================

// Stage 管道中的一个阶段
//
// Stage 由所属 Pipeline 独占；Get/At 返回的是快照副本。
type Stage struct {
	Name StageName
	Flow Flow

	// Transformer 当前实例
	Transformer interfaces.Transformer

	// Construct 从选项构造实例
	Construct interfaces.Constructor

	// Options 上次生效的选项，nil 表示阶段被禁用
	Options interfaces.Options

	// HotReloadable 是否可以在存活实例上直接修改字段
	HotReloadable bool
}

// Disabled 阶段是否以直通占位
func (s *Stage) Disabled() bool {
	return transform.IsPassthrough(s.Transformer)
}

// NewStage 从注册表构造内置阶段
//
// opts 为 nil 时构造直通占位。
func NewStage(name StageName, flow Flow, opts interfaces.Options) (*Stage, error) {
	construct, ok := Constructor(name, flow)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	t, err := build(construct, opts)
	if err != nil {
		return nil, fmt.Errorf("pipeline: construct %s %s: %w", flow, name, err)
	}
	return &Stage{
		Name:          name,
		Flow:          flow,
		Transformer:   t,
		Construct:     construct,
		Options:       opts.Clone(),
		HotReloadable: HotReloadable(name),
	}, nil
}

// build 构造实例，选项为 nil 时返回直通阶段
func build(construct interfaces.Constructor, opts interfaces.Options) (interfaces.Transformer, error) {
	if opts == nil || construct == nil {
		return transform.NewPassthrough(), nil
	}
	return construct(opts.Clone())
}
