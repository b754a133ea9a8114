package codec

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dep2p/go-mcproto/pkg/types"
)

//go:embed data/*.yaml
var baseFS embed.FS

// ============================================================================
//                              Schema 模型
// ============================================================================

// TypeDef 数据类型定义
//
// 原子类型只有 Type；option/array 通过 Of 指定元素类型；container 通过
// Fields 列出字段。
type TypeDef struct {
	Type   string     `yaml:"type"`
	Of     *TypeDef   `yaml:"of,omitempty"`
	Fields []FieldDef `yaml:"fields,omitempty"`
}

// FieldDef 具名字段
type FieldDef struct {
	Name    string `yaml:"name"`
	TypeDef `yaml:",inline"`
}

// PacketDef 数据包定义
type PacketDef struct {
	ID     int32      `yaml:"id"`
	Name   string     `yaml:"name"`
	Fields []FieldDef `yaml:"fields,omitempty"`
}

// StateSchema 单个协议状态下两个方向的数据包列表
type StateSchema map[types.Direction][]PacketDef

// Protocol 单个版本的完整 schema
type Protocol map[types.State]StateSchema

// CustomPackets 按主版本号（如 "1.16"）组织的自定义数据包覆盖层
type CustomPackets map[string]Protocol

// Packets 返回指定状态与方向的数据包列表
func (p Protocol) Packets(state types.State, dir types.Direction) []PacketDef {
	if p == nil {
		return nil
	}
	return p[state][dir]
}

// ParseProtocol 从 YAML 解析 schema
func ParseProtocol(data []byte) (Protocol, error) {
	var p Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("codec: parse schema: %w", err)
	}
	for state := range p {
		if !state.Valid() {
			return nil, fmt.Errorf("codec: parse schema: unknown state %q", state)
		}
	}
	return p, nil
}

// ParseCustomPackets 从 YAML 解析自定义数据包覆盖层
func ParseCustomPackets(data []byte) (CustomPackets, error) {
	var c CustomPackets
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("codec: parse custom packets: %w", err)
	}
	return c, nil
}

// ============================================================================
//                              基础 schema
// ============================================================================

var (
	baseMu     sync.Mutex
	baseLoaded = make(map[string]Protocol)
)

// Base 返回指定版本的内置 schema
//
// 返回值在进程内共享，调用方不得修改。
func Base(version string) (Protocol, error) {
	if !types.IsSupportedVersion(version) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}

	baseMu.Lock()
	defer baseMu.Unlock()

	if p, ok := baseLoaded[version]; ok {
		return p, nil
	}
	data, err := baseFS.ReadFile("data/" + version + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}
	p, err := ParseProtocol(data)
	if err != nil {
		return nil, fmt.Errorf("codec: base schema %s: %w", version, err)
	}
	baseLoaded[version] = p
	return p, nil
}

// ============================================================================
//                              覆盖层合并
// ============================================================================

// Merge 将 overlay 中指定状态与方向的数据包合并到 base 上
//
// 同名数据包整体替换（字段列表不做逐项合并）；名称不同但 ID 相同的数据包
// 同样被替换；其余追加到末尾。base 不会被修改。
func Merge(base, overlay []PacketDef) []PacketDef {
	out := make([]PacketDef, len(base), len(base)+len(overlay))
	copy(out, base)

	for _, pkt := range overlay {
		replaced := false
		for i := range out {
			if out[i].Name == pkt.Name || out[i].ID == pkt.ID {
				out[i] = pkt
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, pkt)
		}
	}
	return out
}

// Overlay 返回适用于 version 的覆盖层
func (c CustomPackets) Overlay(version string) Protocol {
	if c == nil {
		return nil
	}
	return c[types.MajorVersion(version)]
}

// Digest 返回覆盖层在指定状态与方向上的稳定摘要
//
// 摘要只覆盖该 (状态, 方向) 切片：两组自定义数据包只在其他状态上不同时，
// 在这里得到相同摘要并共享缓存条目，编译出的 schema 相同。
// 无覆盖时返回空串，使未定制的连接共享同一个缓存条目。
func (c CustomPackets) Digest(version string, state types.State, dir types.Direction) string {
	pkts := c.Overlay(version).Packets(state, dir)
	if len(pkts) == 0 {
		return ""
	}

	sorted := make([]PacketDef, len(pkts))
	copy(sorted, pkts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	data, err := yaml.Marshal(sorted)
	if err != nil {
		// 结构体可以始终被编码
		panic(fmt.Sprintf("codec: marshal overlay: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
