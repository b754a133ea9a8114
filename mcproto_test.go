package mcproto

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-mcproto/config"
	"github.com/dep2p/go-mcproto/internal/core/auth"
	"github.com/dep2p/go-mcproto/internal/core/handshake"
	"github.com/dep2p/go-mcproto/internal/core/metrics"
	"github.com/dep2p/go-mcproto/pkg/types"
)

const waitTimeout = 5 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// listen 启动服务器，登录完成的连接送入返回的通道
func listen(t *testing.T, opts ...Option) (*Server, <-chan *ServerConn) {
	t.Helper()
	accepted := make(chan *ServerConn, 4)
	opts = append([]Option{WithRegisterer(prometheus.NewRegistry())}, opts...)
	srv, err := Listen(testContext(t), "127.0.0.1:0", func(_ context.Context, sc *ServerConn) {
		accepted <- sc
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, accepted
}

func recvConn(t *testing.T, ch <-chan *ServerConn) *ServerConn {
	t.Helper()
	select {
	case sc := <-ch:
		return sc
	case <-time.After(waitTimeout):
		t.Fatal("等待连接超时")
	}
	return nil
}

// ============================================================================
//                              选项
// ============================================================================

func TestOptions_ToConfig(t *testing.T) {
	o, err := newOptions([]Option{
		WithPreset(PresetServer),
		WithVersion("1.12.2"),
		WithCompressionThreshold(512),
		WithHideErrors(true),
		WithKeepAlive(false),
		WithMetrics(false),
	})
	require.NoError(t, err)

	cfg, err := o.toConfig()
	require.NoError(t, err)
	assert.Equal(t, "1.12.2", cfg.Protocol.Version)
	assert.Equal(t, 512, cfg.Compression.Threshold)
	assert.True(t, cfg.Protocol.HideErrors)
	assert.False(t, cfg.KeepAlive.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestOptions_Invalid(t *testing.T) {
	_, err := NewRuntime(WithVersion("0.1"))
	assert.Error(t, err)

	_, err = NewRuntime(WithPreset("mobile"))
	assert.Error(t, err)

	_, err = NewRuntime(WithAuth("mojang"), WithMetrics(false))
	assert.Error(t, err)

	_, err = NewRuntime(WithCustomPacketsFile("/nonexistent/packets.yaml"), WithMetrics(false))
	assert.Error(t, err)

	_, err = NewRuntime(WithConfig(nil))
	assert.Error(t, err)
}

func TestConfigPresets(t *testing.T) {
	assert.Equal(t, -1, GetClientConfig().Compression.Threshold)
	assert.Equal(t, 256, GetServerConfig().Compression.Threshold)
}

// ============================================================================
//                              Runtime
// ============================================================================

func TestRuntime_SharedDependencies(t *testing.T) {
	rt, err := NewRuntime(WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, string(auth.ProviderOffline), rt.Auth.Name())
	assert.NotNil(t, rt.Cache)
	assert.IsType(t, &metrics.Reporter{}, rt.Reporter)

	client, err := rt.NewClient()
	require.NoError(t, err)
	assert.Equal(t, types.RoleClient, client.Role())
	assert.Equal(t, []string{"keepalive", "compression"}, client.Plugins().Loaded())

	sc, err := rt.NewServerConn()
	require.NoError(t, err)
	assert.Equal(t, types.RoleServer, sc.Role())
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false

	var rt *Runtime
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&rt),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, rt)
	assert.Same(t, cfg, rt.Config)
	assert.Nil(t, rt.Custom)
}

func TestRuntime_Diagnostics(t *testing.T) {
	rt, err := NewRuntime(WithRegisterer(prometheus.NewRegistry()), WithDiagnostics("127.0.0.1:0"))
	require.NoError(t, err)
	require.NotNil(t, rt.Diagnostics)

	require.NoError(t, rt.Start(testContext(t)))
	defer func() { require.NoError(t, rt.Stop(context.Background())) }()

	resp, err := http.Get("http://" + rt.Diagnostics.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mcproto_socket_byte_rate")
}

func TestRuntime_NoDiagnostics(t *testing.T) {
	rt, err := NewRuntime(WithMetrics(false))
	require.NoError(t, err)
	assert.Nil(t, rt.Diagnostics)
	require.NoError(t, rt.Start(testContext(t)))
	require.NoError(t, rt.Stop(context.Background()))
}

// ============================================================================
//                              端到端
// ============================================================================

func TestDial_Offline(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, accepted := listen(t, WithPreset(PresetServer), WithRegisterer(reg))

	ctx := testContext(t)
	c, err := Dial(ctx, srv.Addr().String(), "Steve", WithMetrics(false))
	require.NoError(t, err)
	defer c.Close()

	sc := recvConn(t, accepted)
	assert.Equal(t, "Steve", c.Profile().Name)
	assert.Equal(t, *c.Profile(), *sc.Profile())
	assert.Equal(t, types.StatePlay, c.State())
	assert.Equal(t, 256, c.CompressionThreshold())
	assert.False(t, c.Encrypted())

	chat := make(chan string, 1)
	_, err = sc.OnPacket("chat", false, func(p types.Params) { chat <- p["message"].(string) })
	require.NoError(t, err)

	msg := strings.Repeat("m", 700)
	require.NoError(t, c.Write("chat", types.Params{"message": msg}))
	select {
	case got := <-chat:
		assert.Equal(t, msg, got)
	case <-time.After(waitTimeout):
		t.Fatal("等待 chat 超时")
	}
	assert.Equal(t, 1, srv.Conns())

	// 服务器端指标写入注入的注册表
	assert.Positive(t, testutil.CollectAndCount(reg))
}

func TestDial_OnlineMode(t *testing.T) {
	srv, accepted := listen(t, WithOnlineMode(true), WithCompressionThreshold(64))

	c, err := Dial(testContext(t), srv.Addr().String(), "Alex", WithMetrics(false))
	require.NoError(t, err)
	defer c.Close()

	sc := recvConn(t, accepted)
	assert.True(t, c.Encrypted())
	assert.True(t, sc.Encrypted())
	assert.Equal(t, 64, sc.CompressionThreshold())
}

func TestClient_CloseEndsServerConn(t *testing.T) {
	srv, accepted := listen(t)

	c, err := Dial(testContext(t), srv.Addr().String(), "Steve", WithMetrics(false))
	require.NoError(t, err)
	sc := recvConn(t, accepted)

	ended := make(chan string, 1)
	_, err = sc.OnEnd(func(reason string) { ended <- reason })
	require.NoError(t, err)

	c.Close()
	select {
	case reason := <-ended:
		assert.Equal(t, ReasonSocketClosed, reason)
	case <-time.After(waitTimeout):
		t.Fatal("等待连接结束超时")
	}
	assert.Eventually(t, func() bool { return srv.Conns() == 0 }, waitTimeout, 10*time.Millisecond)
}

func TestPing(t *testing.T) {
	status := handshake.NewStatus(types.DefaultVersion, "test server", 0, 5)
	srv, _ := listen(t, WithStatus(func() handshake.Status { return status }))

	c, err := NewClient(WithMetrics(false))
	require.NoError(t, err)
	defer c.Close()

	ctx := testContext(t)
	require.NoError(t, c.Connect(ctx, srv.Addr().String()))
	res, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test server", res.Status.Description.Text)
	assert.Equal(t, 5, res.Status.Players.Max)
}

func TestServer_Close(t *testing.T) {
	srv, err := Listen(testContext(t), "127.0.0.1:0", func(context.Context, *ServerConn) {}, WithMetrics(false))
	require.NoError(t, err)

	c, err := Dial(testContext(t), srv.Addr().String(), "Steve", WithMetrics(false))
	require.NoError(t, err)
	defer c.Close()

	ended := make(chan string, 1)
	_, err = c.OnEnd(func(reason string) { ended <- reason })
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Close(), ErrServerClosed)
	select {
	case reason := <-ended:
		assert.Equal(t, ReasonSocketClosed, reason)
	case <-time.After(waitTimeout):
		t.Fatal("等待客户端结束超时")
	}
}

func TestSplitAddr(t *testing.T) {
	host, port, err := splitAddr("example.org")
	require.NoError(t, err)
	assert.Equal(t, "example.org", host)
	assert.Equal(t, DefaultPort, port)

	host, port, err = splitAddr("127.0.0.1:25566")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 25566, port)

	_, _, err = splitAddr("host:0")
	assert.Error(t, err)
}
