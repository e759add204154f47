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
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Universe is the list of tickers the scheduled pipeline analyzes.
	Universe []string

	// Capital and allocation constraints
	TotalCapitalEUR float64
	MaxPositionPct  float64 // max single position as % of total capital
	MaxSectorPct    float64 // max sector concentration as % of total capital

	// Risk thresholds
	VolatilityHighPct       float64 // ATR% above which volatility is "high"
	VolatilityVeryHighPct   float64 // ATR% above which volatility is "very high"
	IlliquidityThresholdEUR float64 // daily traded value below which a security is illiquid

	// Provider credentials
	AlphaVantageAPIKey string

	// Backup settings (S3-compatible storage, e.g. Cloudflare R2)
	Backup BackupConfig
}

// BackupConfig holds cloud backup configuration
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	RetainCount     int // number of backup archives to keep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PELORUS_DATA_DIR", "")
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
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8010),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		Universe: splitCSV(getEnv("UNIVERSE", "")),

		TotalCapitalEUR: getEnvAsFloat("TOTAL_CAPITAL_EUR", 10000),
		MaxPositionPct:  getEnvAsFloat("MAX_POSITION_PCT", 10),
		MaxSectorPct:    getEnvAsFloat("MAX_SECTOR_PCT", 20),

		VolatilityHighPct:       getEnvAsFloat("VOLATILITY_HIGH_PCT", 3.0),
		VolatilityVeryHighPct:   getEnvAsFloat("VOLATILITY_VERY_HIGH_PCT", 5.0),
		IlliquidityThresholdEUR: getEnvAsFloat("ILLIQUIDITY_THRESHOLD_EUR", 50000),

		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),

		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			RetainCount:     getEnvAsInt("BACKUP_RETAIN_COUNT", 7),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TotalCapitalEUR < 0 {
		return fmt.Errorf("TOTAL_CAPITAL_EUR must not be negative, got %.2f", c.TotalCapitalEUR)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 100 {
		return fmt.Errorf("MAX_POSITION_PCT must be in (0,100], got %.2f", c.MaxPositionPct)
	}
	if c.MaxSectorPct <= 0 || c.MaxSectorPct > 100 {
		return fmt.Errorf("MAX_SECTOR_PCT must be in (0,100], got %.2f", c.MaxSectorPct)
	}
	if c.VolatilityVeryHighPct < c.VolatilityHighPct {
		return fmt.Errorf("VOLATILITY_VERY_HIGH_PCT (%.2f) must be >= VOLATILITY_HIGH_PCT (%.2f)",
			c.VolatilityVeryHighPct, c.VolatilityHighPct)
	}
	if c.Backup.Enabled && (c.Backup.Endpoint == "" || c.Backup.Bucket == "") {
		return fmt.Errorf("backup enabled but BACKUP_S3_ENDPOINT or BACKUP_S3_BUCKET missing")
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
