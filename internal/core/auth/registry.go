package auth

import (
	"fmt"
	"sort"

	"github.com/dep2p/go-mcproto/pkg/interfaces"
)

// ProviderName 认证提供者名称
type ProviderName string

// ProviderOffline 离线提供者
const ProviderOffline ProviderName = "offline"

var providers = map[ProviderName]func() interfaces.AuthProvider{
	ProviderOffline: func() interfaces.AuthProvider { return NewOffline() },
}

// New 按名称创建认证提供者
func New(name ProviderName) (interfaces.AuthProvider, error) {
	build, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("auth: provider %q is not defined", name)
	}
	return build(), nil
}

// Providers 返回已注册的提供者名称（已排序）
func Providers() []ProviderName {
	names := make([]ProviderName, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
