package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig()
	assert.Equal(t, "/var/lib/machines", conf.ImageRoot)
	assert.NotEmpty(t, conf.MetaDiscoveryURL)
	assert.Positive(t, conf.PullTimeoutSeconds)
	assert.Positive(t, conf.PoolSize)
}

func TestLoadConfig(t *testing.T) {
	conf, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ImageRoot, conf.ImageRoot)

	conf, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ImageRoot, conf.ImageRoot)

	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"image_root":"/tmp/machines","pool_size":0}`), 0o644))
	conf, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/machines", conf.ImageRoot)
	assert.Positive(t, conf.PoolSize, "zero pool size falls back to NumCPU")

	require.NoError(t, os.WriteFile(path, []byte("{bad"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestPaths(t *testing.T) {
	conf := DefaultConfig()
	conf.ImageRoot = "/var/lib/machines"

	assert.Equal(t, "/var/lib/machines/.pull-abc123", conf.PullPath("abc123"))
	assert.Equal(t, "/var/lib/machines/mybox", conf.LocalPath("mybox"))
	assert.Equal(t, "/var/lib/machines/.acipull/index.json", conf.IndexFile())
	assert.Equal(t, "/var/lib/machines/.acipull/index.lock", conf.IndexLock())
}

func TestEnsureImageRoot(t *testing.T) {
	conf := DefaultConfig()
	conf.ImageRoot = filepath.Join(t.TempDir(), "machines")
	require.NoError(t, conf.EnsureImageRoot())

	info, err := os.Stat(filepath.Join(conf.ImageRoot, ".acipull"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
