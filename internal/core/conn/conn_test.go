package conn

import (
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/internal/core/pipeline"
	"github.com/dep2p/go-mcproto/internal/core/transform/serialization"
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

func packets(t *testing.T, c *Conn, name string) <-chan types.Params {
	t.Helper()
	ch := make(chan types.Params, 8)
	_, err := c.OnPacket(name, false, func(p types.Params) { ch <- p })
	require.NoError(t, err)
	return ch
}

func states(t *testing.T, c *Conn) <-chan types.State {
	t.Helper()
	ch := make(chan types.State, 8)
	_, err := c.OnState(func(sc eventbus.StateChange) { ch <- sc.To })
	require.NoError(t, err)
	return ch
}

func ends(t *testing.T, c *Conn) <-chan string {
	t.Helper()
	ch := make(chan string, 2)
	_, err := c.OnEnd(func(reason string) { ch <- reason })
	require.NoError(t, err)
	return ch
}

func errs(t *testing.T, c *Conn) <-chan error {
	t.Helper()
	ch := make(chan error, 8)
	_, err := c.OnError(func(err error) { ch <- err })
	require.NoError(t, err)
	return ch
}

// newPair 创建通过 net.Pipe 相连的客户端与服务器
func newPair(t *testing.T, opts ...Option) (client, server *Conn, mock *clock.Mock) {
	t.Helper()
	mock = clock.NewMock()
	opts = append([]Option{WithClock(mock), WithIdleTimeout(0)}, opts...)

	client, err := New(types.RoleClient, opts...)
	require.NoError(t, err)
	server, err = New(types.RoleServer, opts...)
	require.NoError(t, err)

	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	require.NoError(t, client.SetSocket(a))
	require.NoError(t, server.SetSocket(b))
	return client, server, mock
}

// login 完成握手与登录开始，双方进入 LOGIN
func login(t *testing.T, client, server *Conn) {
	t.Helper()
	start := packets(t, server, "login_start")

	require.NoError(t, client.Write("set_protocol", types.Params{
		"protocolVersion": 754,
		"serverHost":      "localhost",
		"serverPort":      25565,
		"nextState":       types.IntentLogin,
	}))
	assert.Equal(t, types.StateLogin, client.State())

	require.NoError(t, client.Write("login_start", types.Params{"username": "Steve"}))
	p := recv(t, start)
	assert.Equal(t, "Steve", p["username"])
	assert.Equal(t, types.StateLogin, server.State())
}

// play 服务器发出 success，双方进入 PLAY
func play(t *testing.T, client, server *Conn) {
	t.Helper()
	clientStates := states(t, client)
	require.NoError(t, server.Write("success", types.Params{
		"uuid":     uuid.New(),
		"username": "Steve",
	}))
	assert.Equal(t, types.StatePlay, server.State())
	assert.Equal(t, types.StatePlay, recv(t, clientStates))
}

// advanceUntil 推进 mock 时钟直到事件到达
func advanceUntil[T any](t *testing.T, mock *clock.Mock, ch <-chan T) T {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		mock.Add(DefaultCloseTimeout + time.Second)
		select {
		case v := <-ch:
			return v
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("等待事件超时")
	var zero T
	return zero
}

// ============================================================================
//                              状态机
// ============================================================================

func TestConn_LoginToPlay(t *testing.T) {
	client, server, _ := newPair(t)

	login(t, client, server)
	play(t, client, server)

	keepAlive := packets(t, client, "keep_alive")
	require.NoError(t, server.Write("keep_alive", types.Params{"keepAliveId": int64(42)}))
	assert.Equal(t, int64(42), recv(t, keepAlive)["keepAliveId"])
}

func TestConn_StatusIntent(t *testing.T) {
	client, server, _ := newPair(t)
	serverStates := states(t, server)

	require.NoError(t, client.Write("set_protocol", types.Params{
		"protocolVersion": 754,
		"serverHost":      "localhost",
		"serverPort":      25565,
		"nextState":       types.IntentStatus,
	}))
	assert.Equal(t, types.StateStatus, client.State())
	assert.Equal(t, types.StateStatus, recv(t, serverStates))

	pings := packets(t, server, "ping")
	require.NoError(t, client.Write("ping", types.Params{"time": int64(7)}))
	assert.Equal(t, int64(7), recv(t, pings)["time"])
}

func TestConn_InvalidTransition(t *testing.T) {
	c, err := New(types.RoleClient)
	require.NoError(t, err)

	err = c.SetState(types.StatePlay)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, types.StateHandshaking, c.State())

	require.NoError(t, c.SetState(types.StateLogin))
	assert.ErrorIs(t, c.SetState(types.StateStatus), ErrInvalidTransition)
	require.NoError(t, c.SetState(types.StatePlay))
}

// 输出管道更新失败时输入管道回到原状态
func TestConn_SetStateRollback(t *testing.T) {
	c, err := New(types.RoleClient)
	require.NoError(t, err)

	c.output.Abort()
	assert.ErrorIs(t, c.SetState(types.StateLogin), pipeline.ErrAborted)
	assert.Equal(t, types.StateHandshaking, c.State())

	st, ok := c.input.Get(pipeline.StageSerialization)
	require.True(t, ok)
	assert.Equal(t, types.StateHandshaking, st.Options[serialization.OptState])
}

func TestConn_InvalidIntent(t *testing.T) {
	client, server, _ := newPair(t)
	serverErrs := errs(t, server)

	require.NoError(t, client.Write("set_protocol", types.Params{
		"protocolVersion": 754,
		"serverHost":      "localhost",
		"serverPort":      25565,
		"nextState":       9,
	}))
	assert.ErrorIs(t, recv(t, serverErrs), ErrInvalidIntent)
	assert.Equal(t, types.StateHandshaking, server.State())
}

func TestConn_UnsupportedVersion(t *testing.T) {
	_, err := New(types.RoleClient, WithVersion("0.1"))
	assert.Error(t, err)

	c, err := New(types.RoleClient)
	require.NoError(t, err)
	assert.Error(t, c.SetVersion("0.1"))
	require.NoError(t, c.SetVersion("1.12.2"))
	assert.Equal(t, "1.12.2", c.Version())
}

// ============================================================================
//                              压缩与加密
// ============================================================================

func TestConn_CompressionNegotiation(t *testing.T) {
	client, server, _ := newPair(t)
	login(t, client, server)
	assert.Equal(t, -1, client.CompressionThreshold())

	require.NoError(t, server.Write("compress", types.Params{"threshold": 64}))
	assert.Equal(t, 64, server.CompressionThreshold())

	play(t, client, server)
	assert.Equal(t, 64, client.CompressionThreshold())

	chat := packets(t, server, "chat")
	long := strings.Repeat("a", 300)
	require.NoError(t, client.Write("chat", types.Params{"message": long}))
	assert.Equal(t, long, recv(t, chat)["message"])

	require.NoError(t, client.Write("chat", types.Params{"message": "hi"}))
	assert.Equal(t, "hi", recv(t, chat)["message"])
}

func TestConn_ThresholdClamp(t *testing.T) {
	c, err := New(types.RoleServer)
	require.NoError(t, err)

	require.NoError(t, c.SetCompressionThreshold(5))
	assert.Equal(t, 24, c.CompressionThreshold())
	require.NoError(t, c.SetCompressionThreshold(5000))
	assert.Equal(t, 1460, c.CompressionThreshold())
	require.NoError(t, c.SetCompressionThreshold(-3))
	assert.Equal(t, -1, c.CompressionThreshold())

	st, ok := c.Output().Get("compression")
	require.True(t, ok)
	assert.True(t, st.Disabled())
}

func TestConn_Encryption(t *testing.T) {
	client, server, _ := newPair(t)
	login(t, client, server)
	play(t, client, server)

	secret := []byte("0123456789abcdef")
	require.NoError(t, client.SetEncryption(secret))
	require.NoError(t, server.SetEncryption(secret))
	assert.True(t, client.Encrypted())

	chat := packets(t, server, "chat")
	require.NoError(t, client.Write("chat", types.Params{"message": "secret"}))
	assert.Equal(t, "secret", recv(t, chat)["message"])

	assert.ErrorIs(t, client.SetEncryption(secret), ErrEncryptionInstalled)
}

func TestConn_EncryptionBadSecret(t *testing.T) {
	c, err := New(types.RoleClient)
	require.NoError(t, err)

	err = c.SetEncryption([]byte("short"))
	assert.ErrorIs(t, err, types.ErrCipher)
	assert.False(t, c.Encrypted())

	st, ok := c.Input().Get("encryption")
	require.True(t, ok)
	assert.True(t, st.Disabled())
}

// ============================================================================
//                              分发与写入
// ============================================================================

func TestConn_FanOutOrder(t *testing.T) {
	client, server, _ := newPair(t)
	login(t, client, server)
	play(t, client, server)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	done := make(chan struct{}, 1)

	_, _ = server.OnPacket("chat", false, func(types.Params) { record("name") })
	_, _ = server.OnPacketMeta("chat", false, func(_ types.Params, m types.Metadata) {
		assert.Equal(t, types.StatePlay, m.State)
		assert.Equal(t, types.ToServer, m.Direction)
		record("meta")
	})
	_, _ = server.OnRaw("chat", false, func([]byte, types.Metadata) { record("raw") })
	_, _ = server.OnAny(func(types.Params, types.Metadata) { record("any") })
	_, _ = server.OnAnyRaw(func([]byte, types.Metadata) {
		record("anyRaw")
		done <- struct{}{}
	})

	require.NoError(t, client.Write("chat", types.Params{"message": "x"}))
	recv(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"name", "meta", "raw", "any", "anyRaw"}, order)
}

func TestConn_WriteRaw(t *testing.T) {
	client, server, _ := newPair(t)
	login(t, client, server)
	play(t, client, server)

	chat := packets(t, server, "chat")
	require.NoError(t, client.WriteRaw([]byte{0x03, 0x02, 'h', 'i'}))
	assert.Equal(t, "hi", recv(t, chat)["message"])
}

func TestConn_WriteCodecError(t *testing.T) {
	client, server, _ := newPair(t)
	clientErrs := errs(t, client)

	err := client.Write("set_protocol", types.Params{"serverHost": "x"})
	var ce *types.CodecError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, types.ErrSerialization)
	assert.ErrorAs(t, recv(t, clientErrs), &ce)

	// 连接保持可用
	login(t, client, server)
}

// error 订阅者在回调中写入，例如编码失败后发送踢出包
func TestConn_WriteFromErrorHandler(t *testing.T) {
	client, server, _ := newPair(t)
	handshake := packets(t, server, "set_protocol")

	var once sync.Once
	inner := make(chan error, 1)
	_, err := client.OnError(func(error) {
		once.Do(func() {
			inner <- client.Write("set_protocol", types.Params{
				"protocolVersion": 754,
				"serverHost":      "localhost",
				"serverPort":      25565,
				"nextState":       types.IntentLogin,
			})
		})
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- client.Write("set_protocol", types.Params{"protocolVersion": "bad"})
	}()

	assert.ErrorIs(t, recv(t, done), types.ErrSerialization)
	require.NoError(t, recv(t, inner))
	assert.Equal(t, "localhost", recv(t, handshake)["serverHost"])
	assert.Equal(t, types.StateLogin, client.State())
}

func TestConn_WriteWithoutSocket(t *testing.T) {
	c, err := New(types.RoleClient)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Write("ping_start", nil), ErrNotConnected)
}

func TestConn_LegacyPing(t *testing.T) {
	server, err := New(types.RoleServer, WithIdleTimeout(0))
	require.NoError(t, err)
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	require.NoError(t, server.SetSocket(b))

	legacy := packets(t, server, "legacy_server_list_ping")
	_, err = a.Write([]byte{0xfe, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, recv(t, legacy)["payload"])
}

// ============================================================================
//                              终止
// ============================================================================

func TestConn_EndWithReason(t *testing.T) {
	client, server, mock := newPair(t)
	clientEnd := ends(t, client)
	serverEnd := ends(t, server)
	login(t, client, server)

	client.End("bye")
	assert.ErrorIs(t, client.Write("chat", types.Params{"message": "x"}), ErrEnded)
	client.End("again")

	// net.Pipe 不支持半关闭，关闭定时器到期后强制销毁
	assert.Equal(t, "bye", advanceUntil(t, mock, clientEnd))
	assert.Equal(t, ReasonSocketClosed, recv(t, serverEnd))

	assert.True(t, client.Ended())
	assert.Equal(t, types.StateHandshaking, client.State())
	assert.Equal(t, types.StateHandshaking, server.State())
	assert.ErrorIs(t, client.Write("ping_start", nil), ErrNotConnected)
}

// 订阅者在 set_protocol 回调中终止连接，不再切换状态也不报错
func TestConn_EndFromPacketHandler(t *testing.T) {
	client, server, mock := newPair(t)
	serverErrs := errs(t, server)
	serverStates := states(t, server)
	serverEnd := ends(t, server)
	_, err := server.OnPacket("set_protocol", true, func(types.Params) {
		server.End("kicked")
	})
	require.NoError(t, err)

	require.NoError(t, client.Write("set_protocol", types.Params{
		"protocolVersion": 754,
		"serverHost":      "localhost",
		"serverPort":      25565,
		"nextState":       types.IntentLogin,
	}))

	assert.Equal(t, "kicked", advanceUntil(t, mock, serverEnd))
	assert.Empty(t, serverErrs)
	assert.Empty(t, serverStates)
}

func TestConn_PeerClose(t *testing.T) {
	c, err := New(types.RoleClient, WithIdleTimeout(0))
	require.NoError(t, err)
	end := ends(t, c)

	a, b := net.Pipe()
	require.NoError(t, c.SetSocket(a))
	require.NoError(t, b.Close())

	assert.Equal(t, ReasonSocketClosed, recv(t, end))
}

func TestConn_IdleTimeout(t *testing.T) {
	c, err := New(types.RoleClient, WithIdleTimeout(50*time.Millisecond))
	require.NoError(t, err)
	end := ends(t, c)

	a, b := net.Pipe()
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, c.SetSocket(a))

	assert.Equal(t, ReasonSocketTimeout, recv(t, end))
}

func TestConn_OversizedFrameIsFatal(t *testing.T) {
	mock := clock.NewMock()
	c, err := New(types.RoleServer, WithClock(mock), WithIdleTimeout(0))
	require.NoError(t, err)
	end := ends(t, c)
	cerrs := errs(t, c)

	a, b := net.Pipe()
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, c.SetSocket(a))

	_, err = b.Write([]byte{0x81, 0x80, 0x80, 0x01})
	require.NoError(t, err)

	assert.ErrorIs(t, recv(t, cerrs), types.ErrOversizedFrame)
	assert.Equal(t, ReasonProtocolError, advanceUntil(t, mock, end))
}

func TestConn_Reuse(t *testing.T) {
	c, err := New(types.RoleClient, WithIdleTimeout(0))
	require.NoError(t, err)
	end := ends(t, c)

	a, b := net.Pipe()
	require.NoError(t, c.SetSocket(a))
	assert.ErrorIs(t, c.SetSocket(a), ErrAlreadyConnected)
	require.NoError(t, c.SetState(types.StateLogin))
	require.NoError(t, c.SetCompressionThreshold(256))
	require.NoError(t, b.Close())
	recv(t, end)

	assert.Equal(t, types.StateHandshaking, c.State())
	assert.Equal(t, -1, c.CompressionThreshold())

	server, err := New(types.RoleServer, WithIdleTimeout(0))
	require.NoError(t, err)
	a2, b2 := net.Pipe()
	t.Cleanup(func() {
		_ = a2.Close()
		_ = b2.Close()
	})
	require.NoError(t, c.SetSocket(a2))
	require.NoError(t, server.SetSocket(b2))
	login(t, c, server)
}

// ============================================================================
//                              指标
// ============================================================================

type recorder struct {
	mu          sync.Mutex
	packets     []string
	codecErrors int
	transitions []string
	ends        []string
	sent, recv  int
}

func (r *recorder) LogRecvBytes(n int) { r.mu.Lock(); r.recv += n; r.mu.Unlock() }
func (r *recorder) LogSentBytes(n int) { r.mu.Lock(); r.sent += n; r.mu.Unlock() }
func (r *recorder) LogPacket(d types.Direction, s types.State, name string) {
	r.mu.Lock()
	r.packets = append(r.packets, string(d)+"."+string(s)+"."+name)
	r.mu.Unlock()
}
func (r *recorder) LogCodecError(types.Direction, types.State) {
	r.mu.Lock()
	r.codecErrors++
	r.mu.Unlock()
}
func (r *recorder) LogStateTransition(from, to types.State) {
	r.mu.Lock()
	r.transitions = append(r.transitions, string(from)+"->"+string(to))
	r.mu.Unlock()
}
func (r *recorder) LogEnd(reason string) { r.mu.Lock(); r.ends = append(r.ends, reason); r.mu.Unlock() }

func TestConn_Reporter(t *testing.T) {
	rec := &recorder{}
	client, server, _ := newPair(t, WithReporter(rec))
	login(t, client, server)
	_ = client.Write("login_start", types.Params{})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.packets, "toServer.handshaking.set_protocol")
	assert.Contains(t, rec.packets, "toServer.login.login_start")
	assert.Contains(t, rec.transitions, "handshaking->login")
	assert.Equal(t, 1, rec.codecErrors)
	assert.Positive(t, rec.sent)
	assert.Positive(t, rec.recv)
}

func TestConn_ErrorWithoutSubscriberIsLogged(t *testing.T) {
	c, err := New(types.RoleClient)
	require.NoError(t, err)
	assert.NotPanics(t, func() { c.emitError(errors.New("x")) })
}
