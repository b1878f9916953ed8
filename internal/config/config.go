// Package config provides configuration management for the railmon application.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and remains immutable
// during runtime for thread-safety.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded defaults.env (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// embeddedEnv contains defaults.env embedded at build time.
//
// It only carries non-secret template values; credentials must come from
// the environment or an external .env.
//
//go:embed defaults.env
var embeddedEnv string

// Config holds all application configuration.
type Config struct {
	// Backend API
	APIURL      string        // Base URL of the complaint API
	HTTPTimeout time.Duration // Per-request timeout
	HTTPMaxConn int           // Idle connection pool size

	// Authentication credentials (required)
	Email    string
	Password string

	// Monitor
	FetchInterval    time.Duration // How often the monitor pulls a snapshot
	MaxFetchFailures int           // Consecutive failures before a critical alert
	WorkerPoolSize   int           // Concurrent Telegram notifications
	StorageFile      string        // CSV file of notified complaints

	// Query engine parameters
	AlertKeywords           []string
	AlertSentimentThreshold float64
	AlertLimit              int
	TopClassifications      int
	TrendMonths             int

	// Telegram configuration (optional)
	TelegramBotToken   string
	TelegramChatID     string
	TelegramRatePerSec float64

	// Google Cloud Translation (optional)
	TranslateAPIKey string
	TranslateTarget string

	// Health check server
	HealthCheckPort string

	// Logging
	LogLevel string

	// Debug mode - simulates Telegram sends and complaint updates
	DebugMode bool
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse the embedded defaults and set them as fallback environment variables
//  2. Try to load an external .env file (does not override real env vars)
//  3. Read environment variables, applying hard-coded defaults
//  4. Validate
func LoadConfig() (*Config, error) {
	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	_ = godotenv.Load()

	cfg := &Config{
		APIURL:      strings.TrimRight(getEnvOrDefault("RAIL_API_URL", "http://localhost:8080"), "/"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxConn: getEnvInt("HTTP_MAX_CONNS", 100),

		Email:    os.Getenv("RAIL_EMAIL"),
		Password: os.Getenv("RAIL_PASSWORD"),

		FetchInterval:    getEnvDuration("FETCH_INTERVAL", 15*time.Minute),
		MaxFetchFailures: getEnvInt("MAX_FETCH_FAILURES", 3),
		WorkerPoolSize:   getEnvInt("WORKER_POOL_SIZE", 5),
		StorageFile:      getEnvOrDefault("STORAGE_FILE", "alerts.csv"),

		AlertKeywords:           getEnvList("ALERT_KEYWORDS", []string{"Emergency", "Security", "Medical", "Safety", "Harassment"}),
		AlertSentimentThreshold: getEnvFloat("ALERT_SENTIMENT_THRESHOLD", 0.95),
		AlertLimit:              getEnvInt("ALERT_LIMIT", 3),
		TopClassifications:      getEnvInt("TOP_CLASSIFICATIONS", 6),
		TrendMonths:             getEnvInt("TREND_MONTHS", 6),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramRatePerSec: getEnvFloat("TELEGRAM_RATE_PER_SEC", 10),

		TranslateAPIKey: os.Getenv("GOOGLE_TRANSLATE_API_KEY"),
		TranslateTarget: getEnvOrDefault("TRANSLATE_TARGET", "en"),

		HealthCheckPort: getEnvOrDefault("HEALTH_CHECK_PORT", "9090"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		DebugMode:       getEnvOrDefault("DEBUG_MODE", "false") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and values are sensible.
func (c *Config) Validate() error {
	if c.Email == "" {
		return fmt.Errorf("RAIL_EMAIL environment variable is required")
	}
	if c.Password == "" {
		return fmt.Errorf("RAIL_PASSWORD environment variable is required")
	}

	if c.APIURL == "" {
		return fmt.Errorf("RAIL_API_URL cannot be empty")
	}
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("RAIL_API_URL must be an absolute URL, got %q", c.APIURL)
	}

	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.MaxFetchFailures < 1 {
		return fmt.Errorf("MAX_FETCH_FAILURES must be at least 1, got %d", c.MaxFetchFailures)
	}
	if c.AlertSentimentThreshold < 0 || c.AlertSentimentThreshold > 1 {
		return fmt.Errorf("ALERT_SENTIMENT_THRESHOLD must be within [0,1], got %v", c.AlertSentimentThreshold)
	}
	if c.TelegramRatePerSec <= 0 {
		return fmt.Errorf("TELEGRAM_RATE_PER_SEC must be positive, got %v", c.TelegramRatePerSec)
	}

	return nil
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as a float or a default if not set/invalid
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
