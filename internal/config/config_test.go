package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "MODEL_PATH", "MODEL_RELOAD_INTERVAL", "ELIMINATION_HEURISTIC",
		"HISTORY_RETENTION_DAYS", "HISTORY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"API_KEY", "LOG_LEVEL", "MIGRATIONS_PATH",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, "", ModelPath())
	assert.Equal(t, 30*time.Second, ModelReloadInterval())
	assert.Equal(t, "min-neighbors", EliminationHeuristic())
	assert.Equal(t, 90, HistoryRetentionDays())
	assert.Equal(t, 500, HistoryLimit())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, "migrations", MigrationsPath())
}

func TestOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MODEL_RELOAD_INTERVAL", "0s")
	t.Setenv("HISTORY_RETENTION_DAYS", "0")
	t.Setenv("HISTORY_LIMIT", "-3")
	t.Setenv("ELIMINATION_HEURISTIC", "min-fill")

	assert.Equal(t, ":9090", ServerAddr())
	assert.Equal(t, time.Duration(0), ModelReloadInterval())
	assert.Equal(t, 0, HistoryRetentionDays())
	assert.Equal(t, 500, HistoryLimit())
	assert.Equal(t, "min-fill", EliminationHeuristic())

	t.Setenv("MODEL_RELOAD_INTERVAL", "soon")
	assert.Equal(t, 30*time.Second, ModelReloadInterval())
}

func TestLoad_ReadsEnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("MODEL_PATH=nets/borehole.yaml\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("API_KEY=s3cret\n"), 0o600))

	t.Setenv("WELLSPRING_ENV", envFile)
	// godotenv does not override variables that are already set
	t.Setenv("MODEL_PATH", "")
	require.NoError(t, os.Unsetenv("MODEL_PATH"))
	t.Setenv("API_KEY", "")
	require.NoError(t, os.Unsetenv("API_KEY"))

	require.NoError(t, Load())
	assert.Equal(t, "nets/borehole.yaml", ModelPath())
	assert.Equal(t, "s3cret", APIKey())
}
