package mcproto

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/handshake"
	"github.com/dep2p/go-mcproto/internal/core/plugin"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// DefaultPort 默认服务器端口
const DefaultPort = 25565

// Client 客户端连接
//
// 内嵌 *conn.Conn，数据包读写与订阅直接使用连接的方法。
type Client struct {
	*conn.Conn

	rt      *Runtime
	plugins *plugin.Manager

	mu      sync.Mutex
	host    string
	port    int
	profile *interfaces.Profile
	ownsRT  bool
}

// NewClient 创建未连接的客户端
//
// 客户端独占一个 Runtime，Close 时一并停止。
func NewClient(opts ...Option) (*Client, error) {
	rt, err := NewRuntime(opts...)
	if err != nil {
		return nil, err
	}
	if err := rt.Start(context.Background()); err != nil {
		return nil, err
	}
	c, err := rt.NewClient()
	if err != nil {
		_ = rt.Stop(context.Background())
		return nil, err
	}
	c.ownsRT = true
	return c, nil
}

// NewClient 创建共享本 Runtime 的客户端
func (rt *Runtime) NewClient() (*Client, error) {
	c, m, err := rt.newConn(types.RoleClient)
	if err != nil {
		return nil, err
	}
	return &Client{Conn: c, rt: rt, plugins: m}, nil
}

// Dial 连接服务器并以 username 登录
func Dial(ctx context.Context, addr, username string, opts ...Option) (*Client, error) {
	c, err := NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx, addr); err != nil {
		c.Close()
		return nil, err
	}
	if _, err := c.Login(ctx, username); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Connect 建立 TCP 连接，addr 省略端口时使用 25565
func (c *Client) Connect(ctx context.Context, addr string) error {
	host, port, err := splitAddr(addr)
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: c.rt.Config.Connection.DialTimeout.Or(10 * time.Second)}
	sock, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if err := c.SetSocket(sock); err != nil {
		_ = sock.Close()
		return err
	}

	c.mu.Lock()
	c.host, c.port = host, port
	c.mu.Unlock()
	logger.Debug("已连接", "addr", sock.RemoteAddr())
	return nil
}

// Login 执行登录握手，返回时连接处于 PLAY 状态
func (c *Client) Login(ctx context.Context, username string) (*interfaces.Profile, error) {
	c.mu.Lock()
	host, port := c.host, c.port
	c.mu.Unlock()

	prof, err := handshake.Login(ctx, c.Conn, handshake.ClientOptions{
		Host:     host,
		Port:     port,
		Username: username,
		Auth:     c.rt.Auth,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.profile = prof
	c.mu.Unlock()
	return prof, nil
}

// Ping 执行状态查询
func (c *Client) Ping(ctx context.Context) (*handshake.PingResult, error) {
	c.mu.Lock()
	host, port := c.host, c.port
	c.mu.Unlock()
	return handshake.Ping(ctx, c.Conn, host, port)
}

// Profile 登录后的玩家档案，未登录时为 nil
func (c *Client) Profile() *interfaces.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Plugins 返回插件管理器
func (c *Client) Plugins() *plugin.Manager {
	return c.plugins
}

// Close 卸载插件并结束连接
func (c *Client) Close() {
	c.plugins.Close()
	c.End(ReasonClientClosed)
	if c.ownsRT {
		if err := c.rt.Stop(context.Background()); err != nil {
			logger.Debug("停止运行时失败", "err", err)
		}
	}
}

// splitAddr 解析 host[:port]
func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// 没有端口
		return addr, DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("mcproto: invalid port in %q", addr)
	}
	return host, port, nil
}
