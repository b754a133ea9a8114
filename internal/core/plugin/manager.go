package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
)

var logger = log.Logger("core/plugin")

var (
	// ErrNotLoaded 插件未加载
	ErrNotLoaded = errors.New("plugin: not loaded")

	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("plugin: manager closed")
)

// ID 插件实例的唯一标识
type ID uint64

type entry struct {
	plugin interfaces.Plugin
	host   *host
	cancel interfaces.Cancel
}

// Manager 单个连接的插件管理器
type Manager struct {
	c *conn.Conn

	mu      sync.Mutex
	nextID  ID
	entries map[ID]*entry
	order   []ID
	closed  bool
}

// NewManager 创建插件管理器
func NewManager(c *conn.Conn) *Manager {
	return &Manager{
		c:       c,
		entries: make(map[ID]*entry),
	}
}

// Load 挂载插件，返回用于卸载的 ID
//
// 同一个插件可以被加载多次，每次得到不同的 ID。
func (m *Manager) Load(p interfaces.Plugin) (ID, error) {
	if p == nil {
		return 0, errors.New("plugin: nil plugin")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	h := newHost(m.c)
	cancel, err := p.Attach(h)
	if err != nil {
		h.close()
		return 0, fmt.Errorf("plugin: attach %s: %w", p.Name(), err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		detach(&entry{plugin: p, host: h, cancel: cancel})
		return 0, ErrClosed
	}
	m.entries[id] = &entry{plugin: p, host: h, cancel: cancel}
	m.order = append(m.order, id)
	m.mu.Unlock()

	logger.Debug("插件已加载", "plugin", p.Name(), "id", id, "role", m.c.Role())
	return id, nil
}

// LoadAll 依次加载多个插件，任一失败时卸载已加载的部分
func (m *Manager) LoadAll(plugins ...interfaces.Plugin) error {
	var loaded []ID
	for _, p := range plugins {
		id, err := m.Load(p)
		if err != nil {
			for _, l := range loaded {
				_ = m.Unload(l)
			}
			return err
		}
		loaded = append(loaded, id)
	}
	return nil
}

// Unload 卸载插件
func (m *Manager) Unload(id ID) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotLoaded, id)
	}
	delete(m.entries, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	detach(e)
	logger.Debug("插件已卸载", "plugin", e.plugin.Name(), "id", id)
	return nil
}

// Loaded 按加载顺序返回插件名称
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].plugin.Name())
	}
	return out
}

// Close 按加载的逆序卸载所有插件
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	order := m.order
	entries := m.entries
	m.order = nil
	m.entries = make(map[ID]*entry)
	m.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		detach(entries[order[i]])
	}
}

// detach 调用插件的 Cancel 并取消其订阅
func detach(e *entry) {
	if e.cancel != nil {
		e.cancel()
	}
	e.host.close()
}
