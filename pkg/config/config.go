// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port        string
	LogLevel    string
	DBPath      string
	ProfilePath string // governance profile YAML; empty means the embedded default
	RedisAddr   string // optional cross-replica lock; empty disables
	JWTSecret   string // HMAC secret for API tokens; empty fails closed
	CORSOrigins string
	RateRPS     int
	RateBurst   int

	OTELEnabled  bool
	OTELEndpoint string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Port:         getenv("PORT", "8080"),
		LogLevel:     getenv("LOG_LEVEL", "INFO"),
		DBPath:       getenv("DB_PATH", "data/governor.db"),
		ProfilePath:  os.Getenv("PROFILE_PATH"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		CORSOrigins:  os.Getenv("CORS_ORIGINS"),
		RateRPS:      getenvInt("RATE_LIMIT_RPS", 50),
		RateBurst:    getenvInt("RATE_LIMIT_BURST", 100),
		OTELEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTELEndpoint: getenv("OTEL_ENDPOINT", "localhost:4317"),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
