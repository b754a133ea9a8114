package handshake

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-mcproto/internal/core/auth"
	"github.com/dep2p/go-mcproto/internal/core/conn"
	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/handshake")

// ClientOptions 客户端登录参数
type ClientOptions struct {
	// Host 与 Port 写入握手包，服务器据此识别虚拟主机
	Host string
	Port int

	Username string

	// Auth 为 nil 时使用离线提供者
	Auth interfaces.AuthProvider

	// Rand 共享密钥的随机源，nil 表示 crypto/rand
	Rand io.Reader
}

// result 握手结果，只写一次
type result struct {
	once    sync.Once
	done    chan struct{}
	profile *interfaces.Profile
	err     error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

func (r *result) finish(p *interfaces.Profile, err error) {
	r.once.Do(func() {
		r.profile, r.err = p, err
		close(r.done)
	})
}

func (r *result) wait(ctx context.Context) (*interfaces.Profile, error) {
	select {
	case <-r.done:
		return r.profile, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Login 以客户端身份完成登录，返回时连接处于 PLAY 状态
//
// 连接必须已设置 socket 且处于 HANDSHAKING。失败时连接以 LoginFailed 终止，
// ctx 取消时连接保持原样。
func Login(ctx context.Context, c *conn.Conn, opts ClientOptions) (*interfaces.Profile, error) {
	if opts.Auth == nil {
		opts.Auth = auth.NewOffline()
	}
	proto, ok := types.ProtocolNumber(c.Version())
	if !ok {
		return nil, fmt.Errorf("handshake: no protocol number for %s", c.Version())
	}

	sess, err := opts.Auth.Login(ctx, opts.Username)
	if err != nil {
		return nil, fmt.Errorf("handshake: %s login: %w", opts.Auth.Name(), err)
	}

	res := newResult()
	var (
		mu      sync.Mutex
		profile *interfaces.Profile
	)
	fail := func(err error) {
		res.finish(nil, err)
		c.End(ReasonLoginFailed)
	}

	var subs subscriptions
	defer subs.close()

	err = multierr.Combine(
		subs.add(c.OnPacket("encryption_begin", true, func(p types.Params) {
			if err := answerEncryption(ctx, c, opts, sess, p); err != nil {
				fail(err)
			}
		})),
		subs.add(c.OnPacket("success", true, func(p types.Params) {
			id, err := uuidParam(p, "uuid")
			if err != nil {
				fail(err)
				return
			}
			name, _ := p["username"].(string)
			mu.Lock()
			profile = &interfaces.Profile{ID: id, Name: name}
			mu.Unlock()
		})),
		subs.add(c.OnState(func(sc eventbus.StateChange) {
			if sc.To != types.StatePlay {
				return
			}
			mu.Lock()
			p := profile
			mu.Unlock()
			res.finish(p, nil)
		})),
		subs.add(c.OnPacket("disconnect", true, func(p types.Params) {
			reason, _ := p["reason"].(string)
			res.finish(nil, fmt.Errorf("%w: %s", ErrKicked, reason))
		})),
		subs.add(c.OnEnd(func(reason string) {
			res.finish(nil, fmt.Errorf("%w: %s", ErrConnectionEnded, reason))
		})),
	)
	if err != nil {
		return nil, err
	}

	if err := c.Write("set_protocol", types.Params{
		"protocolVersion": proto,
		"serverHost":      opts.Host,
		"serverPort":      opts.Port,
		"nextState":       types.IntentLogin,
	}); err != nil {
		return nil, err
	}
	if err := c.Write("login_start", types.Params{"username": opts.Username}); err != nil {
		return nil, err
	}

	prof, err := res.wait(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("登录完成", "username", prof.Name, "uuid", log.TruncateID(prof.ID, 8), "encrypted", c.Encrypted())
	return prof, nil
}

// answerEncryption 应答加密请求并安装加密
func answerEncryption(ctx context.Context, c *conn.Conn, opts ClientOptions, sess *interfaces.Session, p types.Params) error {
	serverID, err := stringParam(p, "serverId")
	if err != nil {
		return err
	}
	der, err := bytesParam(p, "publicKey")
	if err != nil {
		return err
	}
	token, err := bytesParam(p, "verifyToken")
	if err != nil {
		return err
	}
	pub, err := parsePublicKey(der)
	if err != nil {
		return err
	}

	secret, err := randomBytes(opts.Rand, secretSize)
	if err != nil {
		return err
	}
	if err := opts.Auth.JoinServer(ctx, sess, ServerHash(serverID, secret, der)); err != nil {
		return fmt.Errorf("handshake: join server: %w", err)
	}

	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	if err != nil {
		return fmt.Errorf("handshake: encrypt secret: %w", err)
	}
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, pub, token)
	if err != nil {
		return fmt.Errorf("handshake: encrypt token: %w", err)
	}

	if err := c.Write("encryption_begin", types.Params{
		"sharedSecret": encSecret,
		"verifyToken":  encToken,
	}); err != nil {
		return err
	}
	return c.SetEncryption(secret)
}
