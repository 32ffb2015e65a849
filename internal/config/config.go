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
	DataDir     string // Base directory for all databases (always absolute)
	LogLevel    string
	Port        int
	DevMode     bool
	FeedBaseURL string // Market/fundamental/news feed HTTP endpoint
	FeedWSURL   string // Streaming settlement quote endpoint (optional)
	FeedAPIKey  string
	Schedules   SchedulesConfig
	Backup      BackupConfig
}

// SchedulesConfig holds cron expressions for the background jobs.
// Expressions use the 6-field (seconds-first) cron format.
type SchedulesConfig struct {
	GenerateSignals  string // signal generation cadence
	AccumulatorSweep string // once daily after market close
	ExpireSignals    string // lifecycle expiry sweep
	Backup           string // S3 database backup
}

// BackupConfig holds S3 backup settings. Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional custom endpoint (e.g., S3-compatible storage)
	AccessKeyID     string
	SecretAccessKey string
	RetainCount     int // Number of remote backups to keep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("GRAINFLOW_DATA_DIR", "")
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
		DataDir:     absDataDir,
		Port:        getEnvAsInt("GRAINFLOW_PORT", 8010),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		FeedBaseURL: getEnv("FEED_BASE_URL", "http://localhost:9100"),
		FeedWSURL:   getEnv("FEED_WS_URL", ""),
		FeedAPIKey:  getEnv("FEED_API_KEY", ""),
		Schedules: SchedulesConfig{
			GenerateSignals:  getEnv("SCHEDULE_GENERATE_SIGNALS", "0 0 * * * *"),
			AccumulatorSweep: getEnv("SCHEDULE_ACCUMULATOR_SWEEP", "0 30 20 * * MON-FRI"),
			ExpireSignals:    getEnv("SCHEDULE_EXPIRE_SIGNALS", "0 */15 * * * *"),
			Backup:           getEnv("SCHEDULE_BACKUP", "0 0 2 * * *"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Region:          getEnv("BACKUP_S3_REGION", "us-east-1"),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			RetainCount:     getEnvAsInt("BACKUP_RETAIN_COUNT", 14),
		},
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
	if c.Backup.Bucket != "" && c.Backup.AccessKeyID == "" {
		return fmt.Errorf("backup bucket configured without credentials")
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
