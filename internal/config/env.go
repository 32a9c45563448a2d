package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// RenderConfig defines PDF/PNG rendering inputs.
type RenderConfig struct {
	FontDir          string
	ThumbnailDPI     int
	ThumbnailQuality int
}

// AssetConfig controls remote image fetching and recompression.
type AssetConfig struct {
	TargetWidth int
	Quality     int
}

// WorkerConfig defines export worker behavior and limits.
type WorkerConfig struct {
	Concurrency        int
	VariantConcurrency int
	JobTimeout         time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
	FailureCooldown    time.Duration
	MaxFailureCooldown time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// StorageConfig defines where finished archives are kept.
type StorageConfig struct {
	ResultDir    string
	ResultMaxAge time.Duration
	S3Enabled    bool
	S3Bucket     string
	S3Prefix     string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Render  RenderConfig
	Assets  AssetConfig
	Worker  WorkerConfig
	Queue   QueueConfig
	Storage StorageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/sheetpress.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_sheetpress",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Render defaults
	cfg.Render = RenderConfig{
		FontDir:          getEnv("FONT_DIR", "fonts"),
		ThumbnailDPI:     parseInt(getEnv("THUMBNAIL_DPI", "96"), 96),
		ThumbnailQuality: parseInt(getEnv("THUMBNAIL_QUALITY", "85"), 85),
	}

	// Asset defaults
	cfg.Assets = AssetConfig{
		TargetWidth: parseInt(getEnv("ASSET_TARGET_WIDTH", "1200"), 1200),
		Quality:     parseInt(getEnv("ASSET_QUALITY", "82"), 82),
	}

	// Worker defaults
	cfg.Worker = WorkerConfig{
		Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
		VariantConcurrency: parseInt(getEnv("VARIANT_CONCURRENCY", "3"), 3),
		JobTimeout:         parseDuration(getEnv("JOB_TIMEOUT", "3m"), 3*time.Minute),
		MaxAttempts:        parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
		RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
		RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
		FailureCooldown:    parseDuration(getEnv("FAILURE_COOLDOWN", "30s"), 30*time.Second),
		MaxFailureCooldown: parseDuration(getEnv("MAX_FAILURE_COOLDOWN", "5m"), 5*time.Minute),
	}

	// Queue defaults
	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:export:collections"),
		Group:        getEnv("QUEUE_GROUP", "workers:export"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	// Storage defaults
	cfg.Storage = StorageConfig{
		ResultDir:    getEnv("RESULT_DIR", "results"),
		ResultMaxAge: parseDuration(getEnv("RESULT_MAX_AGE", "24h"), 24*time.Hour),
		S3Enabled:    parseBool(getEnv("S3_UPLOAD", "0")),
		S3Bucket:     getEnv("AWS_S3_BUCKET", ""),
		S3Prefix:     getEnv("S3_PREFIX", "collections"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
