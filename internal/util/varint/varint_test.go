package varint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{math.MinInt32, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Encode(tt.v), "encode %d", tt.v)
		assert.Equal(t, len(tt.want), Size(tt.v))

		v, n, err := Decode(tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.v, v)
		assert.Equal(t, len(tt.want), n)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := Decode(nil)
	assert.ErrorIs(t, err, ErrIncomplete)

	_, _, err = Decode([]byte{0x80, 0x80})
	assert.ErrorIs(t, err, ErrIncomplete)

	_, _, err = Decode([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	assert.ErrorIs(t, err, ErrTooBig)

	_, _, err = Decode([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})
	assert.ErrorIs(t, err, ErrTooBig)

	_, _, err = DecodeLength([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})
	assert.ErrorIs(t, err, ErrTooBig)
}

func TestDecode_TrailingBytes(t *testing.T) {
	v, n, err := Decode([]byte{0xac, 0x02, 0xaa, 0xbb})
	require.NoError(t, err)
	assert.Equal(t, int32(300), v)
	assert.Equal(t, 2, n)
}

func TestVarlong(t *testing.T) {
	for _, v := range []int64{0, 1, 300, math.MaxInt64, -1, math.MinInt64} {
		b := AppendLong(nil, v)
		got, n, err := DecodeLong(b)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(b), n)
	}
	assert.Len(t, AppendLong(nil, -1), 10)

	_, _, err := DecodeLong([]byte{0x80})
	assert.ErrorIs(t, err, ErrIncomplete)
}
