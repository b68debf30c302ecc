package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	DEFAULT_GROK_BASE_URL     = "https://api.x.ai/v1"
	DEFAULT_GROK_TEXT_MODEL   = "grok-4.1-fast"
	DEFAULT_GROK_VISION_MODEL = "grok-4-vision"
)

type Config struct {
	GrokAPIKey        string
	GrokBaseURL       string
	TextModel         string
	VisionModel       string
	Temperature       float64
	MaxRetries        int
	InitialBackoff    time.Duration
	RequestTimeout    time.Duration
	StreamTimeout     time.Duration
	RequestsPerSecond float64
	CacheBackend      string
	CacheCapacity     int
	CacheTTL          time.Duration
	ValkeyAddress     string
	ValkeyPassword    string
	ValkeyTLS         bool
	BatchSize         int
	LogLevel          string
}

// Load reads the process environment. Call LoadEnv first to pull in a .env file.
func Load() Config {
	return Config{
		GrokAPIKey:        os.Getenv("GROK_API_KEY"),
		GrokBaseURL:       getEnv("GROK_BASE_URL", DEFAULT_GROK_BASE_URL),
		TextModel:         getEnv("GROK_TEXT_MODEL", DEFAULT_GROK_TEXT_MODEL),
		VisionModel:       getEnv("GROK_VISION_MODEL", DEFAULT_GROK_VISION_MODEL),
		Temperature:       getEnvFloat("GROK_TEMPERATURE", 0.3),
		MaxRetries:        getEnvInt("GROK_MAX_RETRIES", 3),
		InitialBackoff:    getEnvDuration("GROK_INITIAL_BACKOFF", time.Second),
		RequestTimeout:    getEnvDuration("GROK_REQUEST_TIMEOUT", 30*time.Second),
		StreamTimeout:     getEnvDuration("GROK_STREAM_TIMEOUT", 60*time.Second),
		RequestsPerSecond: getEnvFloat("GROK_REQUESTS_PER_SECOND", 0),
		CacheBackend:      getEnv("CACHE_BACKEND", "memory"),
		CacheCapacity:     getEnvInt("CACHE_CAPACITY", 0),
		CacheTTL:          getEnvDuration("CACHE_TTL", 0),
		ValkeyAddress:     os.Getenv("VALKEY_ADDRESS"),
		ValkeyPassword:    os.Getenv("VALKEY_PASSWORD"),
		ValkeyTLS:         os.Getenv("VALKEY_TLS") == "true",
		BatchSize:         getEnvInt("BATCH_SIZE", 10),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("[Config] Invalid integer, using default",
			slog.String("key", key),
			slog.String("value", value))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("[Config] Invalid float, using default",
			slog.String("key", key),
			slog.String("value", value))
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("[Config] Invalid duration, using default",
			slog.String("key", key),
			slog.String("value", value))
		return defaultValue
	}
	return d
}
