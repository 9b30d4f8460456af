// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Pool constants. TotalShares and DefaultSharePrice seed the
	// platform_settings rows on first startup; DailyCap is the
	// platform-wide per-user purchase ceiling.
	TotalShares       int64
	DailyCap          int64
	DefaultSharePrice decimal.Decimal

	// BootstrapAdminID, when set, is granted the admin capability on
	// startup. Without it a fresh deployment has no admin at all, since
	// only admins can grant the flag.
	BootstrapAdminID string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("POOL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaultPrice, err := decimal.NewFromString(getEnv("POOL_DEFAULT_PRICE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid POOL_DEFAULT_PRICE: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("POOL_PORT", 8001),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		TotalShares:       int64(getEnvAsInt("POOL_TOTAL_SHARES", 10000)),
		DailyCap:          int64(getEnvAsInt("POOL_DAILY_CAP", 100)),
		DefaultSharePrice: defaultPrice,
		BootstrapAdminID:  getEnv("POOL_ADMIN_ID", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.TotalShares <= 0 {
		return fmt.Errorf("POOL_TOTAL_SHARES must be positive, got %d", c.TotalShares)
	}
	if c.DailyCap <= 0 {
		return fmt.Errorf("POOL_DAILY_CAP must be positive, got %d", c.DailyCap)
	}
	if !c.DefaultSharePrice.IsPositive() {
		return fmt.Errorf("POOL_DEFAULT_PRICE must be positive, got %s", c.DefaultSharePrice)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
