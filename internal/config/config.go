// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir            string   // Directory holding the cache snapshot file (always absolute)
	Port               int
	AlphaVantageKey    string   // Optional API key for the secondary provider ("demo" when unset)
	AllowedOrigins     []string // CORS allow-list; empty = permissive
	LogLevel           string
	LogPretty          bool // Human-readable console output instead of JSON
	DefaultHistoryDays int  // Trailing window when no date range is given
}

// Load reads configuration from environment variables.
// A .env file in the working directory is honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("STOCKGATE_DATA_DIR", "")
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

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 3000),
		AlphaVantageKey:    getEnv("ALPHAVANTAGE_API_KEY", "demo"),
		AllowedOrigins:     splitOrigins(getEnv("ALLOWED_ORIGINS", "")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
		DefaultHistoryDays: getEnvAsInt("DEFAULT_HISTORY_DAYS", 365),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DefaultHistoryDays <= 0 {
		return fmt.Errorf("invalid default history window: %d days", c.DefaultHistoryDays)
	}
	return nil
}

// SnapshotPath returns the location of the flat cache snapshot file.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "cache_snapshot.json")
}

// splitOrigins parses a comma-separated origin allow-list.
// An empty value means no restriction (handled by the server as "*").
func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
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
