// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	MINIDEX_HOST="0.0.0.0"
//	MINIDEX_PORT="8080"
//	MINIDEX_HEALTH_PORT="9090"
//	MINIDEX_READ_TIMEOUT="15s"
//	MINIDEX_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	MINIDEX_POSTGRES_URL="postgres://localhost/minidex"
//	MINIDEX_POSTGRES_MAX_CONNS="20"
//	MINIDEX_POSTGRES_IDLE_CONNS="5"
//
// Cache settings:
//
//	MINIDEX_CACHE_ENABLED="true"
//	MINIDEX_REDIS_URL="redis://localhost:6379/0"
//	MINIDEX_CACHE_TTL="5m"
//
// Auth settings:
//
//	MINIDEX_BCRYPT_COST="10"
//	MINIDEX_TOKEN_LENGTH="32"
//	MINIDEX_TOKEN_TTL="24h"
//	MINIDEX_ROLES_FILE="/etc/minidex/roles.yaml"
//
// Observability settings:
//
//	MINIDEX_LOG_LEVEL="info"  # debug, info, warn, error
//	MINIDEX_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s\n", cfg.Server.Addr())
//	fmt.Printf("Token TTL: %s\n", cfg.Auth.TokenTTL)
package config
