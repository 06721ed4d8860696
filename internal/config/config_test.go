package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "provider-verify.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 168, cfg.Cache.TTLHours)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, 15, cfg.Registry.TimeoutSecs)
	assert.Contains(t, cfg.Registry.USBaseURL, "npiregistry")
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.InDelta(t, 0.5, cfg.Monitoring.LowScoreRateThreshold, 0.001)
	assert.Equal(t, "local", cfg.User)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/providers
log:
  level: debug
  format: console
server:
  port: 9090
cache:
  ttl_hours: 48
auth:
  jwt_secret: shhh
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/providers", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 48, cfg.Cache.TTLHours)
	assert.Equal(t, "shhh", cfg.Auth.JWTSecret)
	// Defaults still apply for unset values
	assert.Equal(t, 15, cfg.Registry.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PROVIDER_STORE_DRIVER", "postgres")
	t.Setenv("PROVIDER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("PROVIDER_SERVER_PORT", "3000")
	t.Setenv("PROVIDER_REGISTRY_IN_API_KEY", "abdm-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "abdm-key", cfg.Registry.INAPIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation tests rely on.
func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "provider-verify.db"},
		Server: ServerConfig{Port: 8080},
		User:   "local",
	}
}

func TestValidateCLI(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("cli"))

	cfg.User = ""
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "user is required")
}

func TestValidateServe_RequiresSecret(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")

	cfg.Auth.JWTSecret = "shhh"
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Auth.JWTSecret = "shhh"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateThresholdBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.LowScoreRateThreshold = 1.5

	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "low_score_rate_threshold")

	cfg.Monitoring.LowScoreRateThreshold = 0.5
	cfg.Cache.TTLHours = -1
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.ttl_hours")
}
