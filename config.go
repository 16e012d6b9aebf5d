package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DBPath      string
	Port        string
	LogLevel    string
	LogPretty   bool
	Currency    string
	CatalogPath string

	Provider ProviderConfig
	Refresh  RefreshConfig
	Mercure  MercureConfig
}

// ProviderConfig is handed to the quote provider constructor; the provider never reads the environment itself.
type ProviderConfig struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	MarketTimezone    string
}

// RefreshConfig controls the scheduled price refresh job
type RefreshConfig struct {
	BatchSize int
	Delay     time.Duration
	Cron      string
	Enabled   bool
}

// MercureConfig points at an external Mercure hub. Empty URL disables remote publishing.
type MercureConfig struct {
	URL       string
	JWTSecret string
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:      getEnv("DB_PATH", "stock_portfolio.db"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvAsBool("LOG_PRETTY", false),
		Currency:    strings.ToUpper(getEnv("CURRENCY", "USD")),
		CatalogPath: getEnv("CATALOG_PATH", "stocks.csv"),
		Provider: ProviderConfig{
			APIKey:            getEnv("ALPHAVANTAGE_API_KEY", ""),
			BaseURL:           getEnv("ALPHAVANTAGE_BASE_URL", defaultAlphaVantageURL),
			Timeout:           getEnvAsDuration("ALPHAVANTAGE_TIMEOUT", 30*time.Second),
			RequestsPerMinute: getEnvAsInt("ALPHAVANTAGE_REQUESTS_PER_MINUTE", 5),
			MarketTimezone:    getEnv("MARKET_TIMEZONE", "America/New_York"),
		},
		Refresh: RefreshConfig{
			BatchSize: getEnvAsInt("REFRESH_BATCH_SIZE", 10),
			Delay:     getEnvAsDuration("REFRESH_DELAY", time.Second),
			Cron:      getEnv("REFRESH_CRON", "*/5 9-16 * * 1-5"),
			Enabled:   getEnvAsBool("REFRESH_ENABLED", true),
		},
		Mercure: MercureConfig{
			URL:       getEnv("MERCURE_URL", ""),
			JWTSecret: getEnv("MERCURE_JWT_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component
func (c *Config) Validate() error {
	if c.Refresh.BatchSize <= 0 {
		return fmt.Errorf("REFRESH_BATCH_SIZE must be positive, got %d", c.Refresh.BatchSize)
	}
	if c.Refresh.Delay < 0 {
		return fmt.Errorf("REFRESH_DELAY must not be negative, got %s", c.Refresh.Delay)
	}
	if c.Provider.RequestsPerMinute <= 0 {
		return fmt.Errorf("ALPHAVANTAGE_REQUESTS_PER_MINUTE must be positive, got %d", c.Provider.RequestsPerMinute)
	}
	if _, err := time.LoadLocation(c.Provider.MarketTimezone); err != nil {
		return fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.Provider.MarketTimezone, err)
	}
	if c.Mercure.URL != "" && c.Mercure.JWTSecret == "" {
		return fmt.Errorf("MERCURE_JWT_SECRET is required when MERCURE_URL is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or a bare number of seconds ("2").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
