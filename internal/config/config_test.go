package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	origEmbeddedEnv := embeddedEnv
	embeddedEnv = ""
	t.Cleanup(func() { embeddedEnv = origEmbeddedEnv })

	t.Setenv("RAIL_EMAIL", "")
	t.Setenv("RAIL_PASSWORD", "")

	_, err := LoadConfig()
	require.Error(t, err, "missing RAIL_EMAIL must fail")

	t.Setenv("RAIL_EMAIL", "admin@rail.example")
	t.Setenv("RAIL_PASSWORD", "secret")
	t.Setenv("ALERT_KEYWORDS", " Medical , ,Theft ")
	t.Setenv("RAIL_API_URL", "https://api.rail.example/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "admin@rail.example", cfg.Email)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "https://api.rail.example", cfg.APIURL, "trailing slash is trimmed")
	assert.Equal(t, []string{"Medical", "Theft"}, cfg.AlertKeywords)

	// Defaults
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 0.95, cfg.AlertSentimentThreshold)
	assert.Equal(t, 3, cfg.AlertLimit)
	assert.Equal(t, 6, cfg.TopClassifications)
	assert.Equal(t, 6, cfg.TrendMonths)
	assert.False(t, cfg.TelegramEnabled())
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{name: "env var set", key: "RAILMON_TEST_VAR", defaultValue: "default", envValue: "custom", expected: "custom"},
		{name: "env var not set", key: "RAILMON_NONEXISTENT_VAR", defaultValue: "default", envValue: "", expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.expected, getEnvOrDefault(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		expected     int
	}{
		{name: "valid int", key: "RAILMON_TEST_INT", defaultValue: 10, envValue: "25", expected: 25},
		{name: "invalid int uses default", key: "RAILMON_TEST_INT_INVALID", defaultValue: 10, envValue: "notanumber", expected: 10},
		{name: "empty uses default", key: "RAILMON_TEST_INT_EMPTY", defaultValue: 10, envValue: "", expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.expected, getEnvInt(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvFloatAndDuration(t *testing.T) {
	t.Setenv("RAILMON_TEST_FLOAT", "0.5")
	t.Setenv("RAILMON_TEST_FLOAT_BAD", "half")
	t.Setenv("RAILMON_TEST_DURATION", "90s")

	assert.Equal(t, 0.5, getEnvFloat("RAILMON_TEST_FLOAT", 0.9))
	assert.Equal(t, 0.9, getEnvFloat("RAILMON_TEST_FLOAT_BAD", 0.9))
	assert.Equal(t, 90*time.Second, getEnvDuration("RAILMON_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("RAILMON_TEST_DURATION_UNSET", time.Minute))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Email:                   "user@rail.example",
			Password:                "pass",
			APIURL:                  "http://localhost:8080",
			WorkerPoolSize:          1,
			MaxFetchFailures:        1,
			AlertSentimentThreshold: 0.95,
			TelegramRatePerSec:      10,
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		expectErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing email", mutate: func(c *Config) { c.Email = "" }, expectErr: true},
		{name: "missing password", mutate: func(c *Config) { c.Password = "" }, expectErr: true},
		{name: "relative api url", mutate: func(c *Config) { c.APIURL = "localhost" }, expectErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.WorkerPoolSize = 0 }, expectErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.AlertSentimentThreshold = 1.5 }, expectErr: true},
		{name: "zero telegram rate", mutate: func(c *Config) { c.TelegramRatePerSec = 0 }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
