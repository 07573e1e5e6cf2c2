// Package config loads service configuration from LESSONFORGE_-prefixed
// environment variables, with sane development defaults for everything but
// credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/sweep"
	"github.com/lessonforge/lessonforge/pkg/tokens"
)

// Config holds all service configuration.
type Config struct {
	Mongo  MongoConfig
	Redis  RedisConfig
	Blob   blob.Config
	Sweep  SweepConfig
	Tokens TokenConfig
	Log    LogConfig
}

// MongoConfig holds document store settings.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RedisConfig holds token store settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SweepConfig holds retention sweep settings.
type SweepConfig struct {
	Retention   time.Duration
	Concurrency int
	Schedule    string
}

// TokenConfig holds token lifetimes.
type TokenConfig struct {
	RegistrationTTL  time.Duration
	PasswordResetTTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  logrus.Level
	Format string // "json" or "text"
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Mongo: MongoConfig{
			URI:            getEnv("LESSONFORGE_MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("LESSONFORGE_MONGO_DATABASE", "lessonforge"),
			ConnectTimeout: getEnvDuration("LESSONFORGE_MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("LESSONFORGE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("LESSONFORGE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("LESSONFORGE_REDIS_DB", 0),
		},
		Blob: blob.Config{
			Bucket:       getEnv("LESSONFORGE_S3_BUCKET", "lessonforge"),
			Region:       getEnv("LESSONFORGE_S3_REGION", "us-east-1"),
			Endpoint:     getEnv("LESSONFORGE_S3_ENDPOINT", ""),
			AccessKey:    getEnv("LESSONFORGE_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("LESSONFORGE_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("LESSONFORGE_S3_PATH_STYLE", false),
		},
		Sweep: SweepConfig{
			Retention:   getEnvDuration("LESSONFORGE_SWEEP_RETENTION", sweep.DefaultRetention),
			Concurrency: getEnvInt("LESSONFORGE_SWEEP_CONCURRENCY", sweep.DefaultConcurrency),
			Schedule:    getEnv("LESSONFORGE_SWEEP_SCHEDULE", "0 3 * * *"),
		},
		Tokens: TokenConfig{
			RegistrationTTL:  getEnvDuration("LESSONFORGE_TOKEN_REGISTRATION_TTL", tokens.DefaultRegistrationTTL),
			PasswordResetTTL: getEnvDuration("LESSONFORGE_TOKEN_RESET_TTL", tokens.DefaultPasswordResetTTL),
		},
		Log: LogConfig{
			Level:  parseLogLevel(getEnv("LESSONFORGE_LOG_LEVEL", "info")),
			Format: getEnv("LESSONFORGE_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo URI is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database name is required")
	}
	if c.Blob.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if (c.Blob.AccessKey == "") != (c.Blob.SecretKey == "") {
		return fmt.Errorf("S3 access key and secret key must be set together")
	}
	if c.Sweep.Retention <= 0 {
		return fmt.Errorf("sweep retention must be positive")
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep concurrency must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds a logger from the logging section.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Log.Level)
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func parseLogLevel(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
