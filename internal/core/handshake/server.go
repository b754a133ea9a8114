package handshake

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
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

// ServerOptions 服务器登录参数
type ServerOptions struct {
	// OnlineMode 启用加密与会话校验
	OnlineMode bool

	// Key 服务器 RSA 密钥，在线模式下为 nil 时自动生成
	Key *rsa.PrivateKey

	// ServerID 写入 encryption_begin，现代服务器为空串
	ServerID string

	// Auth 校验会话，nil 时使用离线提供者
	Auth interfaces.AuthProvider

	// CompressionThreshold 在 success 之前宣告的压缩阈值，负数表示不宣告
	CompressionThreshold int

	// Rand 验证令牌的随机源，nil 表示 crypto/rand
	Rand io.Reader
}

// DefaultServerOptions 离线、不压缩
func DefaultServerOptions() ServerOptions {
	return ServerOptions{CompressionThreshold: -1}
}

// ServerLogin 服务器端的一次登录
//
// 必须在连接开始读取之前创建，之后用 Wait 等待结果。
type ServerLogin struct {
	ctx  context.Context
	c    *conn.Conn
	opts ServerOptions
	der  []byte

	subs subscriptions
	res  *result

	mu       sync.Mutex
	username string
	token    []byte
}

// NewServerLogin 订阅登录数据包
func NewServerLogin(ctx context.Context, c *conn.Conn, opts ServerOptions) (*ServerLogin, error) {
	if opts.Auth == nil {
		opts.Auth = auth.NewOffline()
	}
	l := &ServerLogin{ctx: ctx, c: c, opts: opts, res: newResult()}

	if opts.OnlineMode {
		if l.opts.Key == nil {
			key, err := GenerateKey()
			if err != nil {
				return nil, fmt.Errorf("handshake: generate key: %w", err)
			}
			l.opts.Key = key
		}
		der, err := publicKeyDER(l.opts.Key)
		if err != nil {
			return nil, err
		}
		l.der = der
	}

	err := multierr.Combine(
		l.subs.add(c.OnPacket("login_start", true, l.onLoginStart)),
		l.subs.add(c.OnPacket("encryption_begin", true, l.onEncryption)),
		l.subs.add(c.OnState(func(sc eventbus.StateChange) {
			if sc.To == types.StateStatus {
				l.res.finish(nil, ErrStatusRequest)
			}
		})),
		l.subs.add(c.OnEnd(func(reason string) {
			l.res.finish(nil, fmt.Errorf("%w: %s", ErrConnectionEnded, reason))
		})),
	)
	if err != nil {
		l.subs.close()
		return nil, err
	}
	return l, nil
}

// Wait 等待登录完成，成功时连接处于 PLAY 状态
func (l *ServerLogin) Wait(ctx context.Context) (*interfaces.Profile, error) {
	defer l.subs.close()
	return l.res.wait(ctx)
}

// Close 放弃登录并取消订阅
func (l *ServerLogin) Close() {
	l.subs.close()
}

func (l *ServerLogin) fail(err error) {
	l.res.finish(nil, err)
	l.c.End(ReasonLoginFailed)
}

func (l *ServerLogin) onLoginStart(p types.Params) {
	username, err := stringParam(p, "username")
	if err != nil {
		l.fail(err)
		return
	}
	l.mu.Lock()
	l.username = username
	l.mu.Unlock()

	if !l.opts.OnlineMode {
		prof, err := l.opts.Auth.HasJoined(l.ctx, username, "")
		if err != nil {
			l.fail(err)
			return
		}
		l.complete(prof)
		return
	}

	token, err := randomBytes(l.opts.Rand, tokenSize)
	if err != nil {
		l.fail(err)
		return
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()

	if err := l.c.Write("encryption_begin", types.Params{
		"serverId":    l.opts.ServerID,
		"publicKey":   l.der,
		"verifyToken": token,
	}); err != nil {
		l.fail(err)
	}
}

func (l *ServerLogin) onEncryption(p types.Params) {
	l.mu.Lock()
	username, token := l.username, l.token
	l.mu.Unlock()
	if token == nil {
		l.fail(fmt.Errorf("%w: encryption_begin before request", ErrUnexpectedPacket))
		return
	}

	encSecret, err := bytesParam(p, "sharedSecret")
	if err != nil {
		l.fail(err)
		return
	}
	encToken, err := bytesParam(p, "verifyToken")
	if err != nil {
		l.fail(err)
		return
	}

	gotToken, err := rsa.DecryptPKCS1v15(rand.Reader, l.opts.Key, encToken)
	if err != nil || subtle.ConstantTimeCompare(gotToken, token) != 1 {
		l.fail(ErrVerifyToken)
		return
	}
	secret, err := rsa.DecryptPKCS1v15(rand.Reader, l.opts.Key, encSecret)
	if err != nil {
		l.fail(fmt.Errorf("handshake: decrypt secret: %w", err))
		return
	}
	if err := l.c.SetEncryption(secret); err != nil {
		l.fail(err)
		return
	}

	prof, err := l.opts.Auth.HasJoined(l.ctx, username, ServerHash(l.opts.ServerID, secret, l.der))
	if err != nil {
		l.fail(fmt.Errorf("handshake: session check: %w", err))
		return
	}
	l.complete(prof)
}

// complete 宣告压缩并发送 success，conn 随后迁移到 PLAY
func (l *ServerLogin) complete(prof *interfaces.Profile) {
	if t := l.opts.CompressionThreshold; t >= 0 && supportsCompression(l.c.Version()) {
		if err := l.c.Write("compress", types.Params{"threshold": t}); err != nil {
			l.fail(err)
			return
		}
	}
	if err := l.c.Write("success", types.Params{"uuid": prof.ID, "username": prof.Name}); err != nil {
		l.fail(err)
		return
	}
	logger.Info("玩家已登录", "username", prof.Name, "uuid", log.TruncateID(prof.ID, 8), "online", l.opts.OnlineMode)
	l.res.finish(prof, nil)
}

// supportsCompression 1.8 起登录阶段才有 compress 数据包
func supportsCompression(version string) bool {
	return version != "1.7"
}
