package encryption

import (
	"bytes"
	"context"
	"crypto/aes"
	"encoding/hex"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/pkg/types"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func through(t *testing.T, s *Stream, in []byte) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, s.Transform(context.Background(), in, func(chunk any) error {
		out = append(out, chunk.([]byte)...)
		return nil
	}))
	return out
}

// NIST SP 800-38A F.3.7 CFB8-AES128
func TestCFB8_KnownAnswer(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172aae2d")
	want := mustHex(t, "3b79424c9c0dd436bace9e0ed4586a4f32b9")

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	got := make([]byte, len(plain))
	newCFB8(block, iv, false).XORKeyStream(got, plain)
	assert.Equal(t, want, got)

	back := make([]byte, len(want))
	newCFB8(block, iv, true).XORKeyStream(back, want)
	assert.Equal(t, plain, back)
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for trial := 0; trial < 20; trial++ {
		key := make([]byte, SecretSize)
		for i := range key {
			key[i] = byte(r.IntN(256))
		}
		data := make([]byte, r.IntN(2000))
		for i := range data {
			data[i] = byte(r.IntN(256))
		}

		enc, err := NewCipher(key)
		require.NoError(t, err)
		dec, err := NewDecipher(key)
		require.NoError(t, err)

		assert.Equal(t, data, through(t, dec, through(t, enc, data)))
	}
}

// 密钥流跨块连续，任意切分与整体加密结果一致
func TestStream_ChunkIndependence(t *testing.T) {
	key := []byte("0123456789abcdef")
	data := bytes.Repeat([]byte("minecraft"), 50)

	whole, err := NewCipher(key)
	require.NoError(t, err)
	want := through(t, whole, data)

	split, err := NewCipher(key)
	require.NoError(t, err)
	var got []byte
	for rest := data; len(rest) > 0; {
		n := min(len(rest), 7)
		got = append(got, through(t, split, rest[:n])...)
		rest = rest[n:]
	}
	assert.Equal(t, want, got)
}

func TestNewCipher_BadSecret(t *testing.T) {
	for _, secret := range [][]byte{nil, make([]byte, 15), make([]byte, 32)} {
		_, err := NewCipher(secret)
		assert.ErrorIs(t, err, types.ErrCipher)
		assert.True(t, types.IsFatal(err))
	}
}

func TestStream_Closed(t *testing.T) {
	s, err := NewDecipher([]byte("0123456789abcdef"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Transform(context.Background(), []byte{1}, func(any) error { return nil })
	assert.ErrorIs(t, err, types.ErrCipher)
}

func TestCreate(t *testing.T) {
	_, err := CreateInput(map[string]any{OptSecret: []byte("0123456789abcdef")})
	require.NoError(t, err)

	_, err = CreateOutput(nil)
	assert.ErrorIs(t, err, types.ErrCipher)
}
