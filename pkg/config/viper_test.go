package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := Load(t.TempDir(), "config")
	require.NoError(t, err)
	assert.Empty(t, v.GetString("server.port"))
}

func TestLoadFileAndDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	yaml := "server:\n  port: \"5000\"\nwebsocket:\n  pong_wait: 15s\n  write_wait: soon\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	v, err := Load(dir, "config")
	require.NoError(t, err)
	assert.Equal(t, "5000", v.GetString("server.port"))
	assert.Equal(t, 15*time.Second, Duration(v, "websocket.pong_wait", time.Minute))
	assert.Equal(t, time.Minute, Duration(v, "websocket.write_wait", time.Minute))
	assert.Equal(t, time.Minute, Duration(v, "websocket.missing", time.Minute))
}

func TestLoadBrokenFile(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [\n"), 0o644))

	_, err := Load(dir, "config")
	assert.Error(t, err)
}
