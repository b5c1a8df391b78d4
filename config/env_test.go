package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFiles_Precedence(t *testing.T) {
	require.NoError(t, Load())
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"app_port": 9000, "db_driver": "postgres", "testimonial_limit": 3}`), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte("# local\nAPP_PORT=\"7000\"\nMUTATION_POLICY=rollback\nnot a pair\n"), 0o600))

	require.NoError(t, loadFromFiles(jsonPath, envPath))
	t.Cleanup(func() { _ = loadFromFiles("", "") })

	assert.Equal(t, "7000", AppPort())
	assert.Equal(t, "postgres", DatabaseDriver())
	assert.Equal(t, 3, TestimonialLimit())
	assert.Equal(t, "rollback", MutationPolicy())
}

func TestLoadFromFiles_MissingFilesUseDefaults(t *testing.T) {
	require.NoError(t, Load())
	dir := t.TempDir()
	require.NoError(t, loadFromFiles(filepath.Join(dir, "none.json"), filepath.Join(dir, "none.env")))

	assert.Equal(t, defaultAppPort, AppPort())
	assert.Equal(t, defaultRefreshWorkers, RefreshWorkers())
	assert.Equal(t, defaultRateLimit, RateLimit())
}

func TestLoadFromFiles_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	assert.ErrorContains(t, loadFromFiles(path, ""), "config: decode")
}

func TestAccessors_FallBackOnBadValues(t *testing.T) {
	Set("DB_DRIVER", "oracle")
	Set("MUTATION_POLICY", "sometimes")
	Set("REFRESH_WORKERS", "-2")
	Set("REALTIME_DRIVER", "kafka")
	Set("RATE_LIMIT", "0")
	t.Cleanup(func() {
		mu.Lock()
		overrides = map[string]string{}
		mu.Unlock()
	})

	assert.Equal(t, "sqlite", DatabaseDriver())
	assert.Equal(t, defaultSQLiteDSN, DatabaseDSN())
	assert.Equal(t, "keep", MutationPolicy())
	assert.Equal(t, defaultRefreshWorkers, RefreshWorkers())
	assert.Equal(t, "memory", RealtimeDriver())
	assert.Zero(t, RateLimit())
}

func TestDatabaseDSN_PerDriver(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		overrides = map[string]string{}
		mu.Unlock()
	})

	Set("DB_DRIVER", "mysql")
	assert.Equal(t, defaultMySQLDSN, DatabaseDSN())

	Set("DATABASE_DSN", "custom")
	assert.Equal(t, "custom", DatabaseDSN())
}

func TestIsProduction(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		overrides = map[string]string{}
		mu.Unlock()
	})
	Set("APP_ENV", "Production")
	assert.True(t, IsProduction())
	Set("APP_ENV", "staging")
	assert.False(t, IsProduction())
}
