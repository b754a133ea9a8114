package codec

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-mcproto/pkg/types"
)

// ============================================================================
//                              Key
// ============================================================================

// Key Codec 缓存键
type Key struct {
	State     types.State
	Direction types.Direction
	Version   string

	// Digest 自定义数据包覆盖层摘要，无覆盖时为空
	Digest string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Version, k.State, k.Direction, k.Digest)
}

// ============================================================================
//                              Cache
// ============================================================================

// Cache 进程级 Codec 缓存
//
// 只插入不修改：条目一旦写入就不再变化，也不会被淘汰。键空间受支持版本、
// 状态、方向与不同覆盖层数量限制。
type Cache struct {
	entries sync.Map // Key -> *Codec
	group   singleflight.Group
	size    atomic.Int64

	// compiled 实际编译次数，用于测试与指标
	compiled atomic.Int64
}

// NewCache 创建空缓存
func NewCache() *Cache {
	return &Cache{}
}

var defaultCache = NewCache()

// Default 返回进程级默认缓存
func Default() *Cache {
	return defaultCache
}

// Get 返回 (state, direction, version, custom) 对应的 Codec，首次使用时编译
//
// 同一键的并发调用只编译一次。
func (c *Cache) Get(state types.State, dir types.Direction, version string, custom CustomPackets) (*Codec, error) {
	key := Key{
		State:     state,
		Direction: dir,
		Version:   version,
		Digest:    custom.Digest(version, state, dir),
	}
	if v, ok := c.entries.Load(key); ok {
		return v.(*Codec), nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		codec, err := Compile(state, dir, version, custom)
		if err != nil {
			return nil, err
		}
		c.compiled.Add(1)
		if actual, loaded := c.entries.LoadOrStore(key, codec); loaded {
			return actual, nil
		}
		c.size.Add(1)
		logger.Debug("编译 codec", "key", key.String())
		return codec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Codec), nil
}

// Lookup 只查询不编译
func (c *Cache) Lookup(key Key) (*Codec, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Codec), true
}

// Len 返回缓存条目数
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Compiled 返回累计编译次数
func (c *Cache) Compiled() int {
	return int(c.compiled.Load())
}
