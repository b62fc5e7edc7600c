package confirmation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgate/agentgate/core"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, float64(10), cfg.TTLMinutes)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, Namespace, cfg.Namespace)
	assert.Equal(t, 10*time.Minute, cfg.TTL())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_FractionalTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTLMinutes = 0.5

	assert.Equal(t, 30*time.Second, cfg.TTL())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTLMinutes = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.TTLMinutes = -1
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.Namespace = ""
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfiguration)
}

func TestLoadConfig_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("ttl_minutes: 2.5\nredis_url: redis://cache:6380\nredis_db: 3\nnamespace: staging\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.TTLMinutes)
	assert.Equal(t, "redis://cache:6380", cfg.RedisURL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "staging", cfg.Namespace)
	assert.Equal(t, 150*time.Second, cfg.TTL())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ttl_minutes: 5\n"), 0o644))

	t.Setenv("AGENTGATE_TTL_MINUTES", "1.5")
	t.Setenv("REDIS_URL", "redis://envhost:6379")
	t.Setenv("AGENTGATE_REDIS_DB", "7")
	t.Setenv("AGENTGATE_NAMESPACE", "envns")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.TTLMinutes)
	assert.Equal(t, "redis://envhost:6379", cfg.RedisURL)
	assert.Equal(t, 7, cfg.RedisDB)
	assert.Equal(t, "envns", cfg.Namespace)
}

func TestLoadConfig_NoFile(t *testing.T) {
	for _, key := range []string{"AGENTGATE_TTL_MINUTES", "REDIS_URL", "AGENTGATE_REDIS_DB", "AGENTGATE_NAMESPACE"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_BadValues(t *testing.T) {
	t.Setenv("AGENTGATE_TTL_MINUTES", "not-a-number")
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	t.Setenv("AGENTGATE_TTL_MINUTES", "-2")
	_, err = LoadConfig("")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	t.Setenv("AGENTGATE_TTL_MINUTES", "")
	t.Setenv("AGENTGATE_REDIS_DB", "xyz")
	_, err = LoadConfig("")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}
