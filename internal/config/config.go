// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/a-ostretsova/killbill-analytics-plugin/internal/logger"
)

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort    string
	Database      DBConfig
	RedisAddr     string
	RedisPassword string

	// RefreshDelaySeconds is how long a refresh waits after its triggering
	// event, so a burst of related events collapses into one run.
	RefreshDelaySeconds int
	// AccountsBlacklist lists account ids whose events are never refreshed.
	AccountsBlacklist []string
	// IgnoredGroups lists refresh group names (case-insensitive) that never
	// schedule a job.
	IgnoredGroups []string

	PollInterval   time.Duration
	PollBatchSize  int
	MaxWorkers     int
	LockAttempts   int
	LockTTL        time.Duration
	LockRetryDelay time.Duration

	Logger logger.Config
}

// LoadConfig reads configuration from environment variables and an optional
// .env file, sets defaults, and validates required fields.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USERNAME", "analytics")
	viper.SetDefault("DB_NAME", "analytics")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")

	viper.SetDefault("REFRESH_DELAY_SECONDS", 10)
	viper.SetDefault("ACCOUNTS_BLACKLIST", "")
	viper.SetDefault("IGNORED_GROUPS", "")

	viper.SetDefault("POLL_INTERVAL", "1s")
	viper.SetDefault("POLL_BATCH_SIZE", 100)
	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("LOCK_ATTEMPTS", 100)
	viper.SetDefault("LOCK_TTL", "5m")
	viper.SetDefault("LOCK_RETRY_DELAY", "100ms")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing .env is fine, the environment is the source of truth.
		if !os.IsNotExist(err) {
			slog.Warn("failed to read config file", "error", err)
		}
	}

	if viper.GetString("DB_PASSWORD") == "" {
		return nil, fmt.Errorf("DB_PASSWORD must be set")
	}
	if viper.GetInt("REFRESH_DELAY_SECONDS") < 0 {
		return nil, fmt.Errorf("REFRESH_DELAY_SECONDS must not be negative")
	}
	if viper.GetInt("LOCK_ATTEMPTS") <= 0 {
		return nil, fmt.Errorf("LOCK_ATTEMPTS must be positive")
	}

	return &Config{
		ServerPort:    viper.GetString("SERVER_PORT"),
		RedisAddr:     viper.GetString("REDIS_ADDR"),
		RedisPassword: viper.GetString("REDIS_PASSWORD"),
		Database: DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USERNAME"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSL_MODE"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		RefreshDelaySeconds: viper.GetInt("REFRESH_DELAY_SECONDS"),
		AccountsBlacklist:   SplitList(viper.GetString("ACCOUNTS_BLACKLIST")),
		IgnoredGroups:       SplitList(viper.GetString("IGNORED_GROUPS")),
		PollInterval:        viper.GetDuration("POLL_INTERVAL"),
		PollBatchSize:       viper.GetInt("POLL_BATCH_SIZE"),
		MaxWorkers:          viper.GetInt("MAX_WORKERS"),
		LockAttempts:        viper.GetInt("LOCK_ATTEMPTS"),
		LockTTL:             viper.GetDuration("LOCK_TTL"),
		LockRetryDelay:      viper.GetDuration("LOCK_RETRY_DELAY"),
		Logger: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
	}, nil
}

// SplitList parses a comma-separated configuration value, trimming whitespace
// and dropping empty elements.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
