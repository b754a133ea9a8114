package auth

import (
	"context"
	"crypto/md5"
	"errors"

	"github.com/google/uuid"

	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// ErrEmptyUsername 用户名为空
var ErrEmptyUsername = errors.New("auth: empty username")

var _ interfaces.AuthProvider = (*Offline)(nil)

// Offline 离线认证提供者
type Offline struct{}

// NewOffline 创建离线提供者
func NewOffline() *Offline {
	return &Offline{}
}

// Name 返回提供者名称
func (*Offline) Name() string { return string(ProviderOffline) }

// Login 生成离线会话，访问令牌为空
func (*Offline) Login(_ context.Context, username string) (*interfaces.Session, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	return &interfaces.Session{
		Profile: interfaces.Profile{ID: OfflineUUID(username).String(), Name: username},
	}, nil
}

// JoinServer 离线模式无需登记
func (*Offline) JoinServer(context.Context, *interfaces.Session, string) error {
	return nil
}

// HasJoined 总是接受，返回离线档案
func (*Offline) HasJoined(_ context.Context, username, _ string) (*interfaces.Profile, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	return &interfaces.Profile{ID: OfflineUUID(username).String(), Name: username}, nil
}

// OfflineUUID 计算玩家的离线 UUID
//
// 与 uuid.NewMD5 不同，这里不带命名空间前缀。
func OfflineUUID(username string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.UUID(sum)
}
