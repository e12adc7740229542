package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cachefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, "store_root: /data/cache\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/cache", cfg.StoreRoot)
	require.Equal(t, "127.0.0.1:43594", cfg.ListenAddr) // default preserved
	require.EqualValues(t, 1<<30, cfg.CacheCapacity)
}

func TestLoadFileOverridesDefault(t *testing.T) {
	path := writeConfig(t, "listen_addr: 0.0.0.0:9999\ncache_capacity_bytes: 512\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
	require.EqualValues(t, 512, cfg.CacheCapacity)
}

func TestLoadBootstrapManifest(t *testing.T) {
	path := writeConfig(t, `
store_root: /data/cache
bootstrap:
  bucket: game-assets
  prefix: cache/v1/
  region: us-east-1
  files:
    - main_file_cache.dat2
    - main_file_cache.idx255
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Bootstrap)
	require.Equal(t, "game-assets", cfg.Bootstrap.Bucket)
	require.Len(t, cfg.Bootstrap.Files, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "store_root: /data/cache\n")
	t.Setenv("CACHEFS_LISTEN_ADDR", "10.0.0.1:1234")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:1234", cfg.ListenAddr)
}
