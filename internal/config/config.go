package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	ProjectName string
	Port        int
	LogLevel    string
	CORSOrigins []string

	// Persistence
	DatabasePath string

	// Imports
	MaxUploadSizeBytes   int64
	ImportRateLimit      float64 // requests per second
	ImportRateBurst      int
	MaxConcurrentImports int

	// Cache
	RecommendationCacheTTL time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string

	// Plaid
	PlaidClientID      string
	PlaidSecret        string
	PlaidEnv           string
	PlaidEncryptionKey string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		ProjectName: getEnv("PROJECT_NAME", "Account Manager API"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		DatabasePath: getEnv("DATABASE_PATH", "./account_manager.db"),

		MaxUploadSizeBytes:   int64(getEnvInt("MAX_UPLOAD_SIZE_BYTES", 10<<20)),
		ImportRateLimit:      getEnvFloat("IMPORT_RATE_LIMIT", 2),
		ImportRateBurst:      getEnvInt("IMPORT_RATE_BURST", 5),
		MaxConcurrentImports: getEnvInt("MAX_CONCURRENT_IMPORTS", 1),

		RecommendationCacheTTL: getEnvDuration("RECOMMENDATION_CACHE_TTL", 5*time.Minute),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		PlaidClientID:      getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:        getEnv("PLAID_SECRET", ""),
		PlaidEnv:           getEnv("PLAID_ENV", "sandbox"),
		PlaidEncryptionKey: getEnv("PLAID_ENCRYPTION_KEY", ""),
	}
}

// PlaidEnabled reports whether provider credentials are configured.
func (c *Config) PlaidEnabled() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
