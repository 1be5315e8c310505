package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DaylightLtd/minidex/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Auth configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// Addr returns the listen address for the API server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// HealthAddr returns the listen address for the health/metrics server.
func (c ServerConfig) HealthAddr() string {
	return c.Host + ":" + c.HealthPort
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig holds Redis settings
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	Password string
}

// AuthConfig holds credential and token settings
type AuthConfig struct {
	BcryptCost  int
	TokenLength int
	TokenTTL    time.Duration
	CacheTTL    time.Duration

	// Optional YAML file declaring additional roles (name: bit)
	RolesFile string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MINIDEX_HOST", "0.0.0.0"),
		Port:            getEnv("MINIDEX_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MINIDEX_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MINIDEX_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MINIDEX_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MINIDEX_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MINIDEX_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("MINIDEX_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("MINIDEX_POSTGRES_MAX_CONNS", 20),
		MaxIdleConns:    getEnvInt("MINIDEX_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("MINIDEX_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

// loadCacheConfig loads Redis configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  getEnvBool("MINIDEX_CACHE_ENABLED", true),
		RedisURL: getEnv("MINIDEX_REDIS_URL", "redis://localhost:6379/0"),
		Password: getEnv("MINIDEX_REDIS_PASSWORD", ""),
	}
}

// loadAuthConfig loads credential and token configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		BcryptCost:  getEnvInt("MINIDEX_BCRYPT_COST", 0),
		TokenLength: getEnvInt("MINIDEX_TOKEN_LENGTH", 32),
		TokenTTL:    getEnvDuration("MINIDEX_TOKEN_TTL", 24*time.Hour),
		CacheTTL:    getEnvDuration("MINIDEX_CACHE_TTL", 5*time.Minute),
		RolesFile:   getEnv("MINIDEX_ROLES_FILE", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("MINIDEX_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("MINIDEX_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when cache is enabled")
	}

	if c.Auth.TokenLength < 16 {
		return fmt.Errorf("token length must be at least 16 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
