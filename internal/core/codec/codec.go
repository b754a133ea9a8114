package codec

import (
	"fmt"

	"github.com/dep2p/go-mcproto/internal/util/varint"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/codec")

// packetCodec 单个数据包的编译结果
type packetCodec struct {
	id     int32
	name   string
	fields containerType
}

// Codec 一个 (state, direction, version, digest) 组合的编译后 schema
//
// Codec 编译后不可变，可以被多个连接并发使用。
type Codec struct {
	key    Key
	byID   map[int32]*packetCodec
	byName map[string]*packetCodec
}

// Compile 合并基础 schema 与自定义覆盖层后编译 Codec
func Compile(state types.State, dir types.Direction, version string, custom CustomPackets) (*Codec, error) {
	base, err := Base(version)
	if err != nil {
		return nil, err
	}
	pkts := Merge(base.Packets(state, dir), custom.Overlay(version).Packets(state, dir))

	c := &Codec{
		key: Key{
			State:     state,
			Direction: dir,
			Version:   version,
			Digest:    custom.Digest(version, state, dir),
		},
		byID:   make(map[int32]*packetCodec, len(pkts)),
		byName: make(map[string]*packetCodec, len(pkts)),
	}
	for _, def := range pkts {
		fields, err := compileContainer(def.Fields)
		if err != nil {
			path, cause := splitPath(err)
			return nil, fmt.Errorf("codec: compile %s.%s.%s: %w", state, dir, joinPath(def.Name, path), cause)
		}
		pc := &packetCodec{id: def.ID, name: def.Name, fields: fields}
		c.byID[def.ID] = pc
		c.byName[def.Name] = pc
	}
	return c, nil
}

// Key 返回 Codec 的缓存键
func (c *Codec) Key() Key {
	return c.key
}

// Has 判断数据包名称是否存在
func (c *Codec) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// PacketID 返回数据包 ID
func (c *Codec) PacketID(name string) (int32, bool) {
	pc, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	return pc.id, true
}

// Encode 将 {name, params} 编码为 packetId + 字段
//
// 失败时返回 *types.CodecError，Path 为 "<packet>.<field>..."。
func (c *Codec) Encode(name string, params types.Params) ([]byte, error) {
	pc, ok := c.byName[name]
	if !ok {
		return nil, c.codecError(types.ErrSerialization, name, fmt.Errorf("%w: %s", ErrUnknownPacket, name), nil)
	}

	w := &writer{buf: varint.Append(make([]byte, 0, 32), pc.id)}
	if err := pc.fields.write(w, params); err != nil {
		return nil, c.codecError(types.ErrSerialization, name, err, nil)
	}
	return w.buf, nil
}

// Decode 将 packetId + 字段解码为数据包
//
// 失败时返回 *types.CodecError；字段解析失败时 Partial 携带已解析的部分。
// 数据包末尾多余的字节被忽略。
func (c *Codec) Decode(data []byte) (*types.Packet, error) {
	r := &reader{buf: data}
	id, err := r.varint()
	if err != nil {
		return nil, c.codecError(types.ErrDeserialization, "", withPath("packetId", err), nil)
	}

	pc, ok := c.byID[id]
	if !ok {
		return nil, c.codecError(types.ErrDeserialization, "",
			fmt.Errorf("%w: id 0x%02x", ErrUnknownPacket, id), nil)
	}

	meta := types.Metadata{
		Name:      pc.name,
		State:     c.key.State,
		Direction: c.key.Direction,
		Size:      len(data),
	}
	v, err := pc.fields.read(r)
	params, _ := v.(types.Params)
	if err != nil {
		partial := &types.Packet{Name: pc.name, Params: params, Raw: data, Meta: meta}
		return nil, c.codecError(types.ErrDeserialization, pc.name, err, partial)
	}
	if rest := r.remaining(); rest > 0 && logger.Enabled(log.LevelDebug) {
		logger.Debug("数据包存在多余字节", "packet", pc.name, "state", c.key.State, "extra", rest)
	}
	return &types.Packet{Name: pc.name, Params: params, Raw: data, Meta: meta}, nil
}

func (c *Codec) codecError(kind error, packet string, err error, partial *types.Packet) error {
	path, cause := splitPath(err)
	return &types.CodecError{
		Kind:      kind,
		State:     c.key.State,
		Direction: c.key.Direction,
		Path:      joinPath(packet, path),
		Partial:   partial,
		Err:       cause,
	}
}
