package serialization

import (
	"fmt"

	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// 选项字段名
const (
	OptState         = "state"
	OptIsServer      = "isServer"
	OptVersion       = "version"
	OptCustomPackets = "customPackets"
	OptHideErrors    = "hideErrors"

	// OptCache 指定 Codec 缓存，缺省使用 codec.Default()
	OptCache = "cache"
)

// settings 解析后的阶段参数
type settings struct {
	state      types.State
	isServer   bool
	version    string
	custom     codec.CustomPackets
	hideErrors bool
	cache      *codec.Cache
}

func parseOptions(opts interfaces.Options) (settings, error) {
	s := settings{
		state:      types.StateHandshaking,
		version:    types.DefaultVersion,
		isServer:   opts.Bool(OptIsServer, false),
		hideErrors: opts.Bool(OptHideErrors, false),
		cache:      codec.Default(),
	}
	for _, field := range []string{OptState, OptVersion, OptCustomPackets, OptCache} {
		if v, ok := opts[field]; ok {
			if err := s.set(field, v); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}

// set 修改单个字段
func (s *settings) set(field string, value any) error {
	switch field {
	case OptState:
		switch v := value.(type) {
		case types.State:
			if !v.Valid() {
				return fmt.Errorf("serialization: invalid state %q", v)
			}
			s.state = v
		case string:
			st, err := types.ParseState(v)
			if err != nil {
				return fmt.Errorf("serialization: %w", err)
			}
			s.state = st
		default:
			return fmt.Errorf("serialization: %s must be state, got %T", field, value)
		}
	case OptIsServer:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("serialization: %s must be bool, got %T", field, value)
		}
		s.isServer = v
	case OptVersion:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("serialization: %s must be string, got %T", field, value)
		}
		s.version = v
	case OptCustomPackets:
		switch v := value.(type) {
		case codec.CustomPackets:
			s.custom = v
		case nil:
			s.custom = nil
		default:
			return fmt.Errorf("serialization: %s must be codec.CustomPackets, got %T", field, value)
		}
	case OptHideErrors:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("serialization: %s must be bool, got %T", field, value)
		}
		s.hideErrors = v
	case OptCache:
		v, ok := value.(*codec.Cache)
		if !ok {
			return fmt.Errorf("serialization: %s must be *codec.Cache, got %T", field, value)
		}
		if v != nil {
			s.cache = v
		}
	default:
		return fmt.Errorf("serialization: unknown option %q", field)
	}
	return nil
}

func (s *settings) role() types.Role {
	if s.isServer {
		return types.RoleServer
	}
	return types.RoleClient
}

// lookup 按当前参数查询 Codec
func (s *settings) lookup(dir types.Direction) (*codec.Codec, error) {
	return s.cache.Get(s.state, dir, s.version, s.custom)
}
