package mcproto

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/handshake"
	"github.com/dep2p/go-mcproto/internal/core/plugin"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// DefaultMOTD 未设置 WithStatus 时的服务器描述
const DefaultMOTD = "A Minecraft Server"

// ServerConn 服务器端连接
type ServerConn struct {
	*conn.Conn

	plugins *plugin.Manager
	profile *interfaces.Profile
}

// NewServerConn 创建服务器角色的连接，登录流程由调用方驱动
func NewServerConn(opts ...Option) (*ServerConn, error) {
	rt, err := NewRuntime(opts...)
	if err != nil {
		return nil, err
	}
	return rt.NewServerConn()
}

// NewServerConn 创建共享本 Runtime 的服务器连接
func (rt *Runtime) NewServerConn() (*ServerConn, error) {
	c, m, err := rt.newConn(types.RoleServer)
	if err != nil {
		return nil, err
	}
	return &ServerConn{Conn: c, plugins: m}, nil
}

// Profile 已登录玩家的档案
func (sc *ServerConn) Profile() *interfaces.Profile {
	return sc.profile
}

// Plugins 返回插件管理器
func (sc *ServerConn) Plugins() *plugin.Manager {
	return sc.plugins
}

// Handler 处理登录完成的连接
//
// ctx 在服务器关闭时取消。Handler 返回后服务器等待连接结束。
type Handler func(ctx context.Context, sc *ServerConn)

// Server TCP 服务器
type Server struct {
	rt      *Runtime
	ln      net.Listener
	handler Handler
	key     *rsa.PrivateKey
	ownsRT  bool

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.Mutex
	conns  map[*ServerConn]struct{}
	closed bool
}

// Listen 在 addr 上监听并为每个连接执行登录握手
func Listen(ctx context.Context, addr string, handler Handler, opts ...Option) (*Server, error) {
	rt, err := NewRuntime(opts...)
	if err != nil {
		return nil, err
	}
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}
	s, err := rt.Listen(ctx, addr, handler)
	if err != nil {
		_ = rt.Stop(context.Background())
		return nil, err
	}
	s.ownsRT = true
	return s, nil
}

// Listen 使用本 Runtime 监听
func (rt *Runtime) Listen(ctx context.Context, addr string, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("mcproto: handler is nil")
	}

	var key *rsa.PrivateKey
	if rt.Config.Protocol.OnlineMode {
		k, err := handshake.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("mcproto: generate server key: %w", err)
		}
		key = k
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mcproto: listen: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		rt:      rt,
		ln:      ln,
		handler: handler,
		key:     key,
		ctx:     sctx,
		cancel:  cancel,
		conns:   make(map[*ServerConn]struct{}),
	}
	s.group.Go(s.acceptLoop)
	logger.Info("服务器已监听", "addr", ln.Addr(), "version", rt.Config.Protocol.Version, "online", key != nil)
	return s, nil
}

// Addr 返回监听地址
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Conns 返回当前连接数
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close 停止监听，结束所有连接并等待处理协程退出
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	conns := make([]*ServerConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	s.cancel()
	err := s.ln.Close()
	for _, sc := range conns {
		sc.End(ReasonServerClosed)
	}
	if werr := s.group.Wait(); werr != nil && err == nil {
		err = werr
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if s.ownsRT {
		err = multierr.Append(err, s.rt.Stop(context.Background()))
	}
	return err
}

func (s *Server) acceptLoop() error {
	for {
		sock, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			logger.Warn("接受连接失败", "err", err)
			return err
		}
		s.group.Go(func() error {
			s.serve(sock)
			return nil
		})
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// status 返回状态查询应答
func (s *Server) status() handshake.Status {
	if p := s.rt.opts.status; p != nil {
		return p()
	}
	return handshake.NewStatus(s.rt.Config.Protocol.Version, DefaultMOTD, s.Conns(), 20)
}

// serve 处理单个连接直到结束
func (s *Server) serve(sock net.Conn) {
	sc, err := s.rt.NewServerConn()
	if err != nil {
		logger.Warn("创建连接失败", "err", err)
		_ = sock.Close()
		return
	}
	defer sc.plugins.Close()

	ended := make(chan struct{})
	var once sync.Once
	endSub, err := sc.OnEnd(func(string) { once.Do(func() { close(ended) }) })
	if err != nil {
		_ = sock.Close()
		return
	}
	defer endSub.Close()

	cancelStatus, err := handshake.ServeStatus(sc.Conn, s.status)
	if err != nil {
		_ = sock.Close()
		return
	}
	defer cancelStatus()

	login, err := handshake.NewServerLogin(s.ctx, sc.Conn, handshake.ServerOptions{
		OnlineMode:           s.key != nil,
		Key:                  s.key,
		Auth:                 s.rt.Auth,
		CompressionThreshold: s.rt.Config.Compression.Threshold,
	})
	if err != nil {
		_ = sock.Close()
		return
	}

	if !s.track(sc) {
		login.Close()
		_ = sock.Close()
		return
	}
	defer s.untrack(sc)

	if err := sc.SetSocket(sock); err != nil {
		login.Close()
		_ = sock.Close()
		return
	}

	prof, err := login.Wait(s.ctx)
	switch {
	case err == nil:
		sc.profile = prof
		s.handler(s.ctx, sc)
	case errors.Is(err, handshake.ErrStatusRequest):
	default:
		logger.Debug("登录未完成", "remote", sock.RemoteAddr(), "err", err)
	}

	select {
	case <-ended:
	case <-s.ctx.Done():
		sc.End(ReasonServerClosed)
		<-ended
	}
}

func (s *Server) track(sc *ServerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[sc] = struct{}{}
	return true
}

func (s *Server) untrack(sc *ServerConn) {
	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
}
