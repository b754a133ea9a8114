package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/pkg/types"
)

const overlayYAML = `
"1.16":
  play:
    toClient:
      - {id: 0x1f, name: keep_alive, fields: [{name: keepAliveId, type: varlong}]}
      - {id: 0x70, name: custom_payload, fields: [{name: data, type: restBuffer}]}
`

func TestParseCustomPackets(t *testing.T) {
	custom, err := ParseCustomPackets([]byte(overlayYAML))
	require.NoError(t, err)

	pkts := custom.Overlay("1.16.4").Packets(types.StatePlay, types.ToClient)
	require.Len(t, pkts, 2)
	assert.Equal(t, int32(0x70), pkts[1].ID)
	assert.Nil(t, custom.Overlay("1.12.2"))
}

func TestParseProtocol_UnknownState(t *testing.T) {
	_, err := ParseProtocol([]byte("configuration:\n  toClient: []\n"))
	assert.Error(t, err)
}

func TestMerge_ReplaceByNameAndAppend(t *testing.T) {
	base := []PacketDef{
		{ID: 0x00, Name: "a"},
		{ID: 0x01, Name: "b"},
	}
	overlay := []PacketDef{
		{ID: 0x01, Name: "b", Fields: []FieldDef{{Name: "x", TypeDef: TypeDef{Type: "bool"}}}},
		{ID: 0x02, Name: "c"},
	}
	out := Merge(base, overlay)

	require.Len(t, out, 3)
	assert.Len(t, out[1].Fields, 1)
	assert.Equal(t, "c", out[2].Name)
	assert.Empty(t, base[1].Fields, "base must not be modified")
}

func TestDigest(t *testing.T) {
	custom, err := ParseCustomPackets([]byte(overlayYAML))
	require.NoError(t, err)

	d := custom.Digest("1.16.4", types.StatePlay, types.ToClient)
	assert.Len(t, d, 64)
	assert.Equal(t, d, custom.Digest("1.16.5", types.StatePlay, types.ToClient))
	assert.Empty(t, custom.Digest("1.16.4", types.StatePlay, types.ToServer))
	assert.Empty(t, CustomPackets(nil).Digest("1.16.4", types.StatePlay, types.ToClient))

	// 覆盖层的顺序不影响摘要
	pkts := custom["1.16"][types.StatePlay][types.ToClient]
	pkts[0], pkts[1] = pkts[1], pkts[0]
	assert.Equal(t, d, custom.Digest("1.16.4", types.StatePlay, types.ToClient))

	// 只在其他切片上不同的覆盖层得到相同摘要
	custom["1.16"][types.StateLogin] = map[types.Direction][]PacketDef{
		types.ToClient: {{ID: 0x05, Name: "extra"}},
	}
	assert.Equal(t, d, custom.Digest("1.16.4", types.StatePlay, types.ToClient))
	assert.NotEmpty(t, custom.Digest("1.16.4", types.StateLogin, types.ToClient))
}

func TestCompile_OverlayReplacesBase(t *testing.T) {
	custom, err := ParseCustomPackets([]byte(overlayYAML))
	require.NoError(t, err)

	c, err := Compile(types.StatePlay, types.ToClient, "1.16.4", custom)
	require.NoError(t, err)
	assert.True(t, c.Has("custom_payload"))
	assert.True(t, c.Has("kick_disconnect"))

	raw, err := c.Encode("keep_alive", types.Params{"keepAliveId": 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x01}, raw)
}
