package handshake

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/pkg/types"
)

func stringParam(p types.Params, key string) (string, error) {
	s, ok := p[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrUnexpectedPacket, key, p[key])
	}
	return s, nil
}

func bytesParam(p types.Params, key string) ([]byte, error) {
	b, ok := p[key].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrUnexpectedPacket, key, p[key])
	}
	return b, nil
}

// uuidParam 新版本 uuid 字段解码为 uuid.UUID，旧版本为字符串
func uuidParam(p types.Params, key string) (string, error) {
	switch v := p[key].(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		return v, nil
	}
	return "", fmt.Errorf("%w: %s is %T", ErrUnexpectedPacket, key, p[key])
}

// subscriptions 握手期间持有的订阅
type subscriptions []*eventbus.Subscription

func (s *subscriptions) add(sub *eventbus.Subscription, err error) error {
	if err != nil {
		return err
	}
	*s = append(*s, sub)
	return nil
}

func (s subscriptions) close() {
	for _, sub := range s {
		_ = sub.Close()
	}
}
