package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cangwd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeTemp(t, "log_level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Default().SocketPath, cfg.SocketPath)
	assert.Equal(t, Default().TimeFormat, cfg.TimeFormat)
}

func TestLoadSeedJobs(t *testing.T) {
	path := writeTemp(t, `
socket_path: /tmp/test.sock
seed:
  - src_if: can0
    dst_if: can1
    can_id: 256
    can_mask: 4095
    echo: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Seed, 1)
	assert.Equal(t, "can0", cfg.Seed[0].SrcIF)
	assert.Equal(t, "can1", cfg.Seed[0].DstIF)
	assert.True(t, cfg.Seed[0].Echo)
	assert.Equal(t, "/tmp/test.sock", cfg.SocketPath)
}

func TestLoadRejectsBadTimeFormat(t *testing.T) {
	path := writeTemp(t, "time_format: \"%Q\"\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
