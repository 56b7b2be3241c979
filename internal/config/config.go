package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration values. Everything is sourced from
// environment variables; secrets never have code defaults.
type Config struct {
	HTTPPort          int
	MetricsPort       int
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	SigningSecret     string
	TokenTTL          time.Duration
	SuperAdminDomains []string
	CacheTTL          time.Duration
	CacheSize         int
	TrialDays         int
	DefaultPlan       string
	EncryptionKey     []byte
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          getInt("HTTP_PORT", 8080),
		MetricsPort:       getInt("METRICS_PORT", 8081),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		SigningSecret:     os.Getenv("SIGNING_SECRET"),
		TokenTTL:          getDuration("TOKEN_TTL", 7*24*time.Hour),
		SuperAdminDomains: getList("SUPER_ADMIN_DOMAINS", []string{"localhost"}),
		CacheTTL:          getDuration("DOMAIN_CACHE_TTL", 5*time.Minute),
		CacheSize:         getInt("DOMAIN_CACHE_SIZE", 100),
		TrialDays:         getInt("TRIAL_DAYS", 30),
		DefaultPlan:       os.Getenv("DEFAULT_PLAN"),
		EncryptionKey:     []byte(os.Getenv("ENCRYPTION_KEY")),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SigningSecret == "" {
		return Config{}, fmt.Errorf("SIGNING_SECRET is required")
	}
	switch len(cfg.EncryptionKey) {
	case 16, 24, 32:
	default:
		return Config{}, fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes")
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 100
	}
	if cfg.TrialDays < 1 {
		cfg.TrialDays = 30
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(p))
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
