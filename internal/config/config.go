// Package config loads simulator settings from defaults, a YAML file and the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/integration"
	"github.com/abelzeko/reservoir-sim/internal/repository"
	"github.com/abelzeko/reservoir-sim/internal/usecases"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all app configuration
type Config struct {
	Reservoir usecases.ReservoirConfig `yaml:"reservoir"`

	// Simulation
	TickInterval time.Duration `yaml:"tick_interval"`
	Seed         int64         `yaml:"seed"` // 0 seeds from the clock

	// Storage
	DBPath       string `yaml:"db_path"`
	HistoryLimit int    `yaml:"history_limit"`
	PurgeLog     bool   `yaml:"purge_log"`

	// Display
	DashboardPath string `yaml:"dashboard_path"`
	LogLevel      string `yaml:"log_level"`

	// Telegram
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

// Default returns the reference configuration
func Default() *Config {
	return &Config{
		Reservoir:    usecases.DefaultReservoirConfig(),
		TickInterval: integration.DefaultTickInterval,
		HistoryLimit: repository.DefaultHistoryLimit,
		LogLevel:     "info",
	}
}

// Load reads the configuration like Read and validates it
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from defaults, then the YAML file at path (if any),
// then a .env file in the working directory, then environment variables.
// The result is not validated so callers can apply overrides first.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// A missing .env file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Error loading .env file: %v", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	r := &c.Reservoir
	r.Capacity = getEnvAsFloat("RESERVOIR_CAPACITY", r.Capacity)
	r.InitialLevel = getEnvAsFloat("RESERVOIR_INITIAL_LEVEL", r.InitialLevel)
	r.LowThreshold = getEnvAsFloat("RESERVOIR_LOW_THRESHOLD", r.LowThreshold)
	r.HighThreshold = getEnvAsFloat("RESERVOIR_HIGH_THRESHOLD", r.HighThreshold)
	r.MinRate = getEnvAsFloat("RESERVOIR_MIN_RATE", r.MinRate)
	r.MaxRate = getEnvAsFloat("RESERVOIR_MAX_RATE", r.MaxRate)
	r.StepMinutes = getEnvAsFloat("RESERVOIR_STEP_MINUTES", r.StepMinutes)
	r.ResetTotals = getEnvAsBool("RESERVOIR_RESET_TOTALS", r.ResetTotals)

	c.TickInterval = getEnvAsDuration("RESERVOIR_TICK_INTERVAL", c.TickInterval)
	c.Seed = getEnvAsInt64("RESERVOIR_SEED", c.Seed)
	c.DBPath = getEnv("RESERVOIR_DB_PATH", c.DBPath)
	c.HistoryLimit = int(getEnvAsInt64("RESERVOIR_HISTORY_LIMIT", int64(c.HistoryLimit)))
	c.PurgeLog = getEnvAsBool("RESERVOIR_PURGE_LOG", c.PurgeLog)
	c.DashboardPath = getEnv("RESERVOIR_DASHBOARD", c.DashboardPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramToken)
	c.TelegramChatID = getEnvAsInt64("TELEGRAM_CHAT_ID", c.TelegramChatID)
}

// Validate checks the settings that are not covered by the reservoir model itself
func (c *Config) Validate() error {
	if c.TickInterval < time.Second {
		return fmt.Errorf("tick interval must be at least 1s, got %s", c.TickInterval)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return c.Reservoir.Validate()
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}
