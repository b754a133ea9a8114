package serialization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/internal/core/codec"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// collect 收集 push 的输出
func collect(out *[]any) interfaces.Push {
	return func(chunk any) error {
		*out = append(*out, chunk)
		return nil
	}
}

func TestSerializer_ServerToClientPlay(t *testing.T) {
	ctx := context.Background()
	ser, err := NewSerializer(interfaces.Options{
		OptState:    types.StatePlay,
		OptIsServer: true,
		OptVersion:  "1.16.4",
	})
	require.NoError(t, err)
	de, err := NewDeserializer(interfaces.Options{
		OptState:   types.StatePlay,
		OptVersion: "1.16.4",
	})
	require.NoError(t, err)

	// 服务器输出与客户端输入使用同一个缓存条目
	assert.Same(t, ser.Codec(), de.Codec())

	var bytesOut []any
	err = ser.Transform(ctx, &types.Packet{Name: "keep_alive", Params: types.Params{"keepAliveId": 42}}, collect(&bytesOut))
	require.NoError(t, err)
	require.Len(t, bytesOut, 1)

	var pkts []any
	require.NoError(t, de.Transform(ctx, bytesOut[0], collect(&pkts)))
	require.Len(t, pkts, 1)
	pkt := pkts[0].(*types.Packet)
	assert.Equal(t, "keep_alive", pkt.Name)
	assert.Equal(t, types.Params{"keepAliveId": int64(42)}, pkt.Params)
}

func TestSerializer_HotReloadState(t *testing.T) {
	ser, err := NewSerializer(interfaces.Options{})
	require.NoError(t, err)
	assert.Equal(t, types.StateHandshaking, ser.State())
	assert.True(t, ser.Codec().Has("set_protocol"))

	require.NoError(t, ser.Apply(OptState, types.StateLogin))
	assert.Equal(t, types.StateLogin, ser.State())
	assert.True(t, ser.Codec().Has("login_start"))

	require.NoError(t, ser.Apply(OptState, "play"))
	assert.True(t, ser.Codec().Has("chat"))
}

func TestSerializer_ApplyRollbackOnBadVersion(t *testing.T) {
	ser, err := NewSerializer(interfaces.Options{OptVersion: "1.12.2"})
	require.NoError(t, err)
	before := ser.Codec()

	err = ser.Apply(OptVersion, "0.1")
	assert.ErrorIs(t, err, codec.ErrUnsupportedVersion)
	assert.Same(t, before, ser.Codec())
	assert.Equal(t, "1.12.2", ser.version)

	assert.Error(t, ser.Apply("bogus", 1))
	assert.Error(t, ser.Apply(OptState, 3))
}

func TestNewSerializer_UnsupportedVersion(t *testing.T) {
	_, err := NewSerializer(interfaces.Options{OptVersion: "2.0"})
	assert.ErrorIs(t, err, codec.ErrUnsupportedVersion)
}

func TestSerializer_EncodeErrorIsNonFatal(t *testing.T) {
	ser, err := NewSerializer(interfaces.Options{OptState: types.StatePlay})
	require.NoError(t, err)

	var out []any
	err = ser.Transform(context.Background(), types.Packet{Name: "chat", Params: types.Params{"message": 1}}, collect(&out))
	var ce *types.CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "play.toServer.chat.message", ce.Field())
	assert.False(t, types.IsFatal(err))
	assert.Empty(t, out)
}

func TestDeserializer_ErrorThenContinue(t *testing.T) {
	ctx := context.Background()
	de, err := NewDeserializer(interfaces.Options{OptState: types.StatePlay, OptIsServer: true})
	require.NoError(t, err)

	var out []any
	err = de.Transform(ctx, []byte{0x10, 0x00}, collect(&out))
	var ce *types.CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "play.toServer.keep_alive.keepAliveId", ce.Field())
	assert.Empty(t, out)

	// 下一个帧不受影响
	err = de.Transform(ctx, []byte{0x10, 0, 0, 0, 0, 0, 0, 0, 9}, collect(&out))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(9), out[0].(*types.Packet).Params["keepAliveId"])
}

func TestDeserializer_HideErrorsDrops(t *testing.T) {
	de, err := NewDeserializer(interfaces.Options{OptState: types.StatePlay, OptHideErrors: true})
	require.NoError(t, err)

	var out []any
	require.NoError(t, de.Transform(context.Background(), []byte{0x7f}, collect(&out)))
	assert.Empty(t, out)
}

func TestDeserializer_CustomPacketsAndCache(t *testing.T) {
	custom, err := codec.ParseCustomPackets([]byte(`
"1.16":
  play:
    toClient:
      - {id: 0x70, name: custom_payload, fields: [{name: data, type: restBuffer}]}
`))
	require.NoError(t, err)

	cache := codec.NewCache()
	de, err := NewDeserializer(interfaces.Options{
		OptState:         types.StatePlay,
		OptCustomPackets: custom,
		OptCache:         cache,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	var out []any
	require.NoError(t, de.Transform(context.Background(), []byte{0x70, 0xca, 0xfe}, collect(&out)))
	require.Len(t, out, 1)
	assert.Equal(t, []byte{0xca, 0xfe}, out[0].(*types.Packet).Params["data"])

	require.NoError(t, de.Apply(OptCustomPackets, nil))
	assert.False(t, de.Codec().Has("custom_payload"))
	assert.Equal(t, 2, cache.Len())
}

func TestTransform_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	de, err := CreateInput(interfaces.Options{})
	require.NoError(t, err)
	var out []any
	assert.ErrorIs(t, de.Transform(ctx, []byte{0x00}, collect(&out)), context.Canceled)
}
