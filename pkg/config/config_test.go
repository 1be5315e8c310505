package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaylightLtd/minidex/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "custom")

	assert.Equal(t, "custom", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("TEST_VAR_NOT_SET", "default"))
}

// TestGetEnvBool tests boolean parsing
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{name: "true", envValue: "true", defaultValue: false, want: true},
		{name: "TRUE", envValue: "TRUE", defaultValue: false, want: true},
		{name: "one", envValue: "1", defaultValue: false, want: true},
		{name: "false", envValue: "false", defaultValue: true, want: false},
		{name: "garbage", envValue: "yes-ish", defaultValue: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.want, getEnvBool("TEST_BOOL", tt.defaultValue))
		})
	}

	assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))
}

// TestGetEnvInt tests integer parsing with fallback
func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("TEST_INT", 7))

	t.Setenv("TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT_BAD", 7))

	assert.Equal(t, 7, getEnvInt("TEST_INT_NOT_SET", 7))
}

// TestGetEnvDuration tests duration parsing with fallback
func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Minute))

	t.Setenv("TEST_DUR_BAD", "ninety")
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DUR_BAD", time.Minute))
}

// TestLoadConfigDefaults verifies defaults when only the required URL is set
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MINIDEX_POSTGRES_URL", "postgres://localhost/minidex")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HealthAddr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 32, cfg.Auth.TokenLength)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CacheTTL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

// TestLoadConfigOverrides verifies environment overrides are applied
func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MINIDEX_POSTGRES_URL", "postgres://db.internal/minidex")
	t.Setenv("MINIDEX_PORT", "9999")
	t.Setenv("MINIDEX_TOKEN_TTL", "1h")
	t.Setenv("MINIDEX_CACHE_TTL", "30s")
	t.Setenv("MINIDEX_CACHE_ENABLED", "false")
	t.Setenv("MINIDEX_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.Auth.CacheTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

// TestValidate verifies configuration constraints
func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				URL: "postgres://localhost/minidex",
			},
			Cache: CacheConfig{Enabled: true, RedisURL: "redis://localhost:6379"},
			Auth: AuthConfig{
				TokenLength: 32,
				TokenTTL:    24 * time.Hour,
				CacheTTL:    5 * time.Minute,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: ""},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "missing postgres", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "postgres URL"},
		{name: "missing redis", mutate: func(c *Config) { c.Cache.RedisURL = "" }, wantErr: "redis URL"},
		{name: "redis optional when disabled", mutate: func(c *Config) { c.Cache.Enabled = false; c.Cache.RedisURL = "" }, wantErr: ""},
		{name: "token too short", mutate: func(c *Config) { c.Auth.TokenLength = 8 }, wantErr: "token length"},
		{name: "zero token ttl", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }, wantErr: "token TTL"},
		{name: "zero cache ttl", mutate: func(c *Config) { c.Auth.CacheTTL = 0 }, wantErr: "cache TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
