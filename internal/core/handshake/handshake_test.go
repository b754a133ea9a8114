package handshake

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/internal/core/auth"
	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

const waitTimeout = 5 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// newPair 返回尚未连接的两端与连接函数
func newPair(t *testing.T) (client, server *conn.Conn, connect func()) {
	t.Helper()
	opts := []conn.Option{conn.WithIdleTimeout(0), conn.WithCloseTimeout(10 * time.Millisecond)}
	client, err := conn.New(types.RoleClient, opts...)
	require.NoError(t, err)
	server, err = conn.New(types.RoleServer, opts...)
	require.NoError(t, err)

	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return client, server, func() {
		require.NoError(t, server.SetSocket(b))
		require.NoError(t, client.SetSocket(a))
	}
}

func chatRoundTrip(t *testing.T, client, server *conn.Conn, msg string) {
	t.Helper()
	got := make(chan string, 1)
	_, err := server.OnPacket("chat", true, func(p types.Params) { got <- p["message"].(string) })
	require.NoError(t, err)
	require.NoError(t, client.Write("chat", types.Params{"message": msg}))
	select {
	case m := <-got:
		assert.Equal(t, msg, m)
	case <-time.After(waitTimeout):
		t.Fatal("等待 chat 超时")
	}
}

// sessionService 记录 JoinServer 的摘要并在 HasJoined 中核对
type sessionService struct {
	auth.Offline

	mu     sync.Mutex
	joined map[string]string
}

func newSessionService() *sessionService {
	return &sessionService{joined: map[string]string{}}
}

func (s *sessionService) Name() string { return "test" }

func (s *sessionService) JoinServer(_ context.Context, sess *interfaces.Session, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined[sess.Profile.Name] = hash
	return nil
}

func (s *sessionService) HasJoined(ctx context.Context, username, hash string) (*interfaces.Profile, error) {
	s.mu.Lock()
	want, ok := s.joined[username]
	s.mu.Unlock()
	if !ok || want != hash {
		return nil, assert.AnError
	}
	return s.Offline.HasJoined(ctx, username, hash)
}

// ============================================================================
//                              摘要
// ============================================================================

func TestServerHash(t *testing.T) {
	assert.Equal(t, "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48", ServerHash("Notch", nil, nil))
	assert.Equal(t, "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1", ServerHash("jeb_", nil, nil))
	assert.Equal(t, "88e16a1019277b15d58faf0541e11910eb756f6", ServerHash("simon", nil, nil))
	assert.Equal(t, ServerHash("", []byte("No"), []byte("tch")), ServerHash("Notch", nil, nil))
}

// ============================================================================
//                              登录
// ============================================================================

func TestLogin_Offline(t *testing.T) {
	ctx := testContext(t)
	client, server, connect := newPair(t)

	opts := DefaultServerOptions()
	opts.CompressionThreshold = 256
	l, err := NewServerLogin(ctx, server, opts)
	require.NoError(t, err)
	connect()

	prof, err := Login(ctx, client, ClientOptions{Host: "localhost", Port: 25565, Username: "Steve"})
	require.NoError(t, err)
	serverProf, err := l.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Steve", prof.Name)
	assert.Equal(t, auth.OfflineUUID("Steve").String(), prof.ID)
	assert.Equal(t, *serverProf, *prof)

	assert.Equal(t, types.StatePlay, client.State())
	assert.Equal(t, types.StatePlay, server.State())
	assert.False(t, client.Encrypted())
	assert.Equal(t, 256, client.CompressionThreshold())
	assert.Equal(t, 256, server.CompressionThreshold())

	chatRoundTrip(t, client, server, strings.Repeat("x", 1000))
}

func TestLogin_Online(t *testing.T) {
	ctx := testContext(t)
	client, server, connect := newPair(t)
	sessions := newSessionService()

	key, err := GenerateKey()
	require.NoError(t, err)
	l, err := NewServerLogin(ctx, server, ServerOptions{
		OnlineMode:           true,
		Key:                  key,
		Auth:                 sessions,
		CompressionThreshold: 64,
	})
	require.NoError(t, err)
	connect()

	prof, err := Login(ctx, client, ClientOptions{Host: "localhost", Port: 25565, Username: "Alex", Auth: sessions})
	require.NoError(t, err)
	_, err = l.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Alex", prof.Name)
	assert.True(t, client.Encrypted())
	assert.True(t, server.Encrypted())
	assert.Equal(t, 64, client.CompressionThreshold())

	chatRoundTrip(t, client, server, strings.Repeat("y", 300))
}

func TestLogin_SessionRejected(t *testing.T) {
	ctx := testContext(t)
	client, server, connect := newPair(t)

	l, err := NewServerLogin(ctx, server, ServerOptions{
		OnlineMode:           true,
		Auth:                 newSessionService(),
		CompressionThreshold: -1,
	})
	require.NoError(t, err)
	connect()

	// 客户端使用离线提供者，不会登记摘要
	_, err = Login(ctx, client, ClientOptions{Username: "Alex"})
	assert.ErrorIs(t, err, ErrConnectionEnded)
	_, err = l.Wait(ctx)
	assert.ErrorContains(t, err, "session check")
}

func TestLogin_BadVerifyToken(t *testing.T) {
	ctx := testContext(t)
	client, server, connect := newPair(t)

	l, err := NewServerLogin(ctx, server, ServerOptions{OnlineMode: true, CompressionThreshold: -1})
	require.NoError(t, err)
	connect()

	_, err = client.OnPacket("encryption_begin", true, func(p types.Params) {
		pub, err := parsePublicKey(p["publicKey"].([]byte))
		if err != nil {
			return
		}
		secret, _ := rsa.EncryptPKCS1v15(rand.Reader, pub, make([]byte, secretSize))
		token, _ := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte{9, 9, 9, 9, 9})
		_ = client.Write("encryption_begin", types.Params{"sharedSecret": secret, "verifyToken": token})
	})
	require.NoError(t, err)

	require.NoError(t, client.Write("set_protocol", types.Params{
		"protocolVersion": 754, "serverHost": "", "serverPort": 25565, "nextState": types.IntentLogin,
	}))
	require.NoError(t, client.Write("login_start", types.Params{"username": "Mallory"}))

	_, err = l.Wait(ctx)
	assert.ErrorIs(t, err, ErrVerifyToken)
	assert.False(t, server.Encrypted())
}

func TestLogin_Kicked(t *testing.T) {
	ctx := testContext(t)
	client, server, connect := newPair(t)

	_, err := server.OnPacket("login_start", true, func(types.Params) {
		_ = server.Write("disconnect", types.Params{"reason": `{"text":"whitelist"}`})
	})
	require.NoError(t, err)
	connect()

	_, err = Login(ctx, client, ClientOptions{Username: "Steve"})
	assert.ErrorIs(t, err, ErrKicked)
	assert.ErrorContains(t, err, "whitelist")
}

func TestLogin_ContextCanceled(t *testing.T) {
	client, _, connect := newPair(t)
	connect()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Login(ctx, client, ClientOptions{Username: "Steve"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ============================================================================
//                              状态查询
// ============================================================================

func TestPing(t *testing.T) {
	ctx := testContext(t)
	client, server, connect := newPair(t)

	status := NewStatus(server.Version(), "A Minecraft Server", 3, 20)
	cancel, err := ServeStatus(server, func() Status { return status })
	require.NoError(t, err)
	defer cancel()
	l, err := NewServerLogin(ctx, server, DefaultServerOptions())
	require.NoError(t, err)
	connect()

	res, err := Ping(ctx, client, "localhost", 25565)
	require.NoError(t, err)
	assert.Equal(t, status, res.Status)
	assert.Equal(t, 754, res.Status.Version.Protocol)
	assert.Equal(t, types.StateStatus, client.State())

	_, err = l.Wait(ctx)
	assert.ErrorIs(t, err, ErrStatusRequest)
}

func TestChat_Unmarshal(t *testing.T) {
	var s Status
	require.NoError(t, json.Unmarshal([]byte(`{"description":"plain motd","players":{"max":1,"online":0}}`), &s))
	assert.Equal(t, "plain motd", s.Description.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"description":{"text":"object motd"}}`), &s))
	assert.Equal(t, "object motd", s.Description.Text)
}
