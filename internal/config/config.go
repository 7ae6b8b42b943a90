// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir                   string // Base directory for both databases (always absolute)
	LogLevel                  string
	Port                      int
	DevMode                   bool
	APIToken                  string // Bearer token for the API; empty disables auth (dev mode)
	CollectionIntervalMinutes int    // Minutes between market data collection cycles
	SeasonalFactorsPath       string // Optional YAML file overriding the built-in seasonal table
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory, always resolved to an absolute path
	dataDir := getEnv("MARKETPULSE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	port, err := getEnvInt("PORT", 8090)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	interval, err := getEnvInt("COLLECTION_INTERVAL_MINUTES", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid COLLECTION_INTERVAL_MINUTES: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("COLLECTION_INTERVAL_MINUTES must be positive, got %d", interval)
	}

	return &Config{
		DataDir:                   absDataDir,
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		Port:                      port,
		DevMode:                   getEnvBool("DEV_MODE", false),
		APIToken:                  getEnv("API_TOKEN", ""),
		CollectionIntervalMinutes: interval,
		SeasonalFactorsPath:       getEnv("SEASONAL_FACTORS_PATH", ""),
	}, nil
}

// MarketplaceDBPath returns the path of the relational transactional store
func (c *Config) MarketplaceDBPath() string {
	return filepath.Join(c.DataDir, "marketplace.db")
}

// AnalyticsDBPath returns the path of the analytics document store
func (c *Config) AnalyticsDBPath() string {
	return filepath.Join(c.DataDir, "analytics.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
