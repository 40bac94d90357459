package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "Tissuecore", cfg.Server.ServiceName)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.Equal(t, 10*time.Second, cfg.Storelight.Timeout)
	assert.EqualValues(t, 5, cfg.Storelight.MaxFailures)
	assert.Equal(t, []string{"unstore_failure"}, cfg.Notify.Enabled)
	assert.Empty(t, cfg.Log.Path)
}

func TestLoadEnvironmentAndDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("STORELIGHT_URL=http://storelight.test/graphql\nWEB_PORT=9000\n"), 0o600))
	t.Setenv("TISSUECORE_STORAGE_DRIVER", "memory")
	t.Setenv("STORELIGHT_TIMEOUT", "2s")
	t.Setenv("WEB_PORT", "9100")
	t.Cleanup(func() { _ = os.Unsetenv("STORELIGHT_URL") })

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Storelight.Timeout)
	assert.Equal(t, "http://storelight.test/graphql", cfg.Storelight.URL)
	assert.Equal(t, 9100, cfg.Server.Port, "the environment wins over the .env file")
}
