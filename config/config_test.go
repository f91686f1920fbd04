package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
logger:
  level: debug
  format: json
pool:
  pool_size: 128
  page_size: 8192
telemetry:
  enabled: true
  service_name: framedb-test
  prometheus_port: 9191
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "json", cfg.Logger.Format)
	require.Equal(t, 128, cfg.Pool.PoolSize)
	require.Equal(t, 8192, cfg.Pool.PageSize)
	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, 9191, cfg.Telemetry.PrometheusPort)

	// Fields absent from the file keep their defaults.
	require.Equal(t, "stdout", cfg.Logger.OutputFile)
}

func TestLoadRejectsBadPoolSettings(t *testing.T) {
	path := writeConfigFile(t, "pool:\n  pool_size: 0\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool_size")

	path = writeConfigFile(t, "pool:\n  page_size: -1\n")
	_, err = Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "page_size")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, 64, cfg.Pool.PoolSize)
	require.Equal(t, 4096, cfg.Pool.PageSize)
	require.False(t, cfg.Telemetry.Enabled)
}
