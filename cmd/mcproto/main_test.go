package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-mcproto/config"
)

func TestLoadConfig_PresetThenFile(t *testing.T) {
	cfg, err := loadConfig("", "server")
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Compression.Threshold)

	path := filepath.Join(t.TempDir(), "mcproto.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"protocol":{"version":"1.12.2"},"compression":{"threshold":512}}`), 0o600))

	cfg, err = loadConfig(path, "server")
	require.NoError(t, err)
	assert.Equal(t, "1.12.2", cfg.Protocol.Version)
	assert.Equal(t, 512, cfg.Compression.Threshold)
	assert.True(t, cfg.KeepAlive.Enabled)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig("", "bogus")
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"), "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = loadConfig(path, "")
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MCPROTO_VERSION", "1.8")
	t.Setenv("MCPROTO_ONLINE_MODE", "yes")
	t.Setenv("MCPROTO_COMPRESSION_THRESHOLD", "64")
	t.Setenv("MCPROTO_DIAG_ADDR", "127.0.0.1:6060")

	cfg := config.NewConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, "1.8", cfg.Protocol.Version)
	assert.True(t, cfg.Protocol.OnlineMode)
	assert.Equal(t, 64, cfg.Compression.Threshold)
	assert.Equal(t, "127.0.0.1:6060", cfg.Metrics.ListenAddr)

	t.Setenv("MCPROTO_COMPRESSION_THRESHOLD", "lots")
	applyEnvOverrides(cfg)
	assert.Equal(t, 64, cfg.Compression.Threshold)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "1", "YES", " on "} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"", "false", "0", "off", "maybe"} {
		assert.False(t, parseBool(s), s)
	}
}

func TestRun_Commands(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(nil, &out), errUsage)
	assert.Contains(t, out.String(), "mcproto <命令>")

	out.Reset()
	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), "go-mcproto")

	out.Reset()
	assert.Error(t, run([]string{"fly"}, &out))

	out.Reset()
	assert.ErrorIs(t, run([]string{"ping"}, &out), errUsage)
}
