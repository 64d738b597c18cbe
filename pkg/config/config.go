// Package config loads server configuration from the environment and
// deployment-specific governance policy profiles from YAML.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Addr            string
	LogLevel        string
	DatabaseURL     string // empty selects the in-memory agent store
	AuditDBPath     string
	RedisAddr       string // empty selects the in-process decision cache
	RedisPassword   string
	PolicyProfile   string // path to a YAML policy profile, optional
	AdminJWTSecret  string
	OTLPEndpoint    string
	TelemetryOn     bool
	ServiceName     string
	ServiceVersion  string
}

// Load reads configuration from environment variables with dev-mode
// defaults.
func Load() *Config {
	return &Config{
		Addr:           envOr("WARDEN_ADDR", ":8080"),
		LogLevel:       envOr("WARDEN_LOG_LEVEL", "INFO"),
		DatabaseURL:    os.Getenv("WARDEN_DATABASE_URL"),
		AuditDBPath:    envOr("WARDEN_AUDIT_DB", "warden-audit.db"),
		RedisAddr:      os.Getenv("WARDEN_REDIS_ADDR"),
		RedisPassword:  os.Getenv("WARDEN_REDIS_PASSWORD"),
		PolicyProfile:  os.Getenv("WARDEN_POLICY_PROFILE"),
		AdminJWTSecret: os.Getenv("WARDEN_ADMIN_JWT_SECRET"),
		OTLPEndpoint:   envOr("WARDEN_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryOn:    os.Getenv("WARDEN_TELEMETRY") == "true",
		ServiceName:    envOr("WARDEN_SERVICE_NAME", "warden"),
		ServiceVersion: envOr("WARDEN_SERVICE_VERSION", "0.0.0-dev"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
