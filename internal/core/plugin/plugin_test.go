package plugin

import (
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

const waitTimeout = 2 * time.Second

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("等待事件超时")
	}
	var zero T
	return zero
}

// advanceUntil 按 step 推进 mock 时钟直到事件到达
func advanceUntil[T any](t *testing.T, mock *clock.Mock, step time.Duration, ch <-chan T) T {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		mock.Add(step)
		select {
		case v := <-ch:
			return v
		case <-time.After(5 * time.Millisecond):
		}
	}
	t.Fatal("等待事件超时")
	var zero T
	return zero
}

func newPair(t *testing.T, mock *clock.Mock) (client, server *conn.Conn) {
	t.Helper()
	opts := []conn.Option{conn.WithClock(mock), conn.WithIdleTimeout(0)}

	client, err := conn.New(types.RoleClient, opts...)
	require.NoError(t, err)
	server, err = conn.New(types.RoleServer, opts...)
	require.NoError(t, err)

	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	require.NoError(t, client.SetSocket(a))
	require.NoError(t, server.SetSocket(b))
	return client, server
}

func packets(t *testing.T, c *conn.Conn, name string) <-chan types.Params {
	t.Helper()
	ch := make(chan types.Params, 16)
	_, err := c.OnPacket(name, false, func(p types.Params) { ch <- p })
	require.NoError(t, err)
	return ch
}

func ends(t *testing.T, c *conn.Conn) <-chan string {
	t.Helper()
	ch := make(chan string, 2)
	_, err := c.OnEnd(func(reason string) { ch <- reason })
	require.NoError(t, err)
	return ch
}

func toPlay(t *testing.T, client, server *conn.Conn) {
	t.Helper()
	start := packets(t, server, "login_start")
	playing := make(chan struct{}, 1)
	_, err := client.OnState(func(sc eventbus.StateChange) {
		if sc.To == types.StatePlay {
			playing <- struct{}{}
		}
	})
	require.NoError(t, err)

	require.NoError(t, client.Write("set_protocol", types.Params{
		"protocolVersion": 754, "serverHost": "localhost", "serverPort": 25565, "nextState": types.IntentLogin,
	}))
	require.NoError(t, client.Write("login_start", types.Params{"username": "Alex"}))
	recv(t, start)
	require.NoError(t, server.Write("success", types.Params{"uuid": uuid.New(), "username": "Alex"}))
	recv(t, playing)
}

// ============================================================================
//                              Manager
// ============================================================================

// probe 订阅 chat 并统计卸载次数
type probe struct {
	attached atomic.Int32
	canceled atomic.Int32
}

func (p *probe) Name() string { return "probe" }

func (p *probe) Attach(h interfaces.PluginHost) (interfaces.Cancel, error) {
	p.attached.Add(1)
	h.OnPacket("chat", func(types.Params) {})
	h.OnEnd(func(string) {})
	return func() { p.canceled.Add(1) }, nil
}

func TestManager_LoadUnload(t *testing.T) {
	c, err := conn.New(types.RoleClient)
	require.NoError(t, err)
	m := NewManager(c)

	p := &probe{}
	id1, err := m.Load(p)
	require.NoError(t, err)
	id2, err := m.Load(p)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, []string{"probe", "probe"}, m.Loaded())
	assert.Equal(t, 2, c.Bus().Count(eventbus.PacketTopic("chat")))

	require.NoError(t, m.Unload(id1))
	assert.Equal(t, int32(1), p.canceled.Load())
	assert.Equal(t, 1, c.Bus().Count(eventbus.PacketTopic("chat")))
	assert.ErrorIs(t, m.Unload(id1), ErrNotLoaded)

	m.Close()
	assert.Equal(t, int32(2), p.canceled.Load())
	assert.Zero(t, c.Bus().Count(eventbus.PacketTopic("chat")))
	assert.Zero(t, c.Bus().Count(eventbus.TopicEnd))

	_, err = m.Load(p)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_LoadAll(t *testing.T) {
	c, err := conn.New(types.RoleServer)
	require.NoError(t, err)
	m := NewManager(c)

	require.NoError(t, m.LoadAll(FromConfig(nil)...))
	assert.Equal(t, []string{"keepalive", "compression"}, m.Loaded())
}

// ============================================================================
//                              内置插件
// ============================================================================

func TestCompression_Negotiation(t *testing.T) {
	mock := clock.NewMock()
	client, server := newPair(t, mock)
	require.NoError(t, NewManager(server).LoadAll(NewCompression(64)))
	require.NoError(t, NewManager(client).LoadAll(NewCompression(-1)))

	toPlay(t, client, server)
	assert.Equal(t, 64, server.CompressionThreshold())
	assert.Equal(t, 64, client.CompressionThreshold())

	chat := packets(t, server, "chat")
	long := strings.Repeat("z", 500)
	require.NoError(t, client.Write("chat", types.Params{"message": long}))
	assert.Equal(t, long, recv(t, chat)["message"])
}

func TestCompression_ServerDisabled(t *testing.T) {
	mock := clock.NewMock()
	client, server := newPair(t, mock)
	require.NoError(t, NewManager(server).LoadAll(NewCompression(-1)))

	toPlay(t, client, server)
	assert.Equal(t, -1, server.CompressionThreshold())
	assert.Equal(t, -1, client.CompressionThreshold())
}

func TestKeepAlive_Exchange(t *testing.T) {
	mock := clock.NewMock()
	client, server := newPair(t, mock)
	require.NoError(t, NewManager(server).LoadAll(NewKeepAlive(KeepAliveOptions{})))
	require.NoError(t, NewManager(client).LoadAll(NewKeepAlive(KeepAliveOptions{})))

	toPlay(t, client, server)
	fromServer := packets(t, client, "keep_alive")
	fromClient := packets(t, server, "keep_alive")

	sent := advanceUntil(t, mock, 4*time.Second, fromServer)
	echoed := recv(t, fromClient)
	assert.Equal(t, sent["keepAliveId"], echoed["keepAliveId"])
}

func TestKeepAlive_ServerTimeout(t *testing.T) {
	mock := clock.NewMock()
	client, server := newPair(t, mock)
	require.NoError(t, NewManager(server).LoadAll(NewKeepAlive(KeepAliveOptions{
		Timeout:  10 * time.Second,
		Interval: time.Second,
	})))
	serverEnd := ends(t, server)

	toPlay(t, client, server)
	assert.Equal(t, ReasonKeepAliveTimeout, advanceUntil(t, mock, 2*time.Second, serverEnd))
}

func TestKeepAlive_ClientTimeout(t *testing.T) {
	mock := clock.NewMock()
	client, server := newPair(t, mock)
	require.NoError(t, NewManager(client).LoadAll(NewKeepAlive(KeepAliveOptions{Timeout: 5 * time.Second})))
	clientEnd := ends(t, client)

	toPlay(t, client, server)
	fromClient := packets(t, server, "keep_alive")
	require.NoError(t, server.Write("keep_alive", types.Params{"keepAliveId": int64(9)}))
	assert.Equal(t, int64(9), recv(t, fromClient)["keepAliveId"])

	assert.Equal(t, ReasonKeepAliveTimeout, advanceUntil(t, mock, 6*time.Second, clientEnd))
}

// ============================================================================
//                              注册表
// ============================================================================

func TestRegistry(t *testing.T) {
	p, err := New(KindKeepAlive, nil)
	require.NoError(t, err)
	assert.Equal(t, "keepalive", p.Name())

	_, err = New("legacy", nil)
	assert.Error(t, err)

	cfg := config.NewConfig()
	cfg.KeepAlive.Enabled = false
	plugins := FromConfig(cfg)
	require.Len(t, plugins, 1)
	assert.Equal(t, "compression", plugins[0].Name())
}
