// Package config loads daemon configuration from the environment,
// following the same getEnvOrDefault-plus-Validate shape used by
// vmail's internal/config: a typed Config struct, an .env loader for
// local development, and a validation pass that runs once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all daemon-wide settings, read once at startup.
type Config struct {
	// Environment is "development" or "production". In development the
	// daemon attempts to load a .env file before reading the process
	// environment.
	Environment string

	// DataDir is the root directory for the local SQLite database file
	// and, when no S3 configuration is present, the filesystem blob store.
	DataDir string

	// PollInterval is how often IncrementalSync runs for each enabled
	// account.
	PollInterval time.Duration

	// ChunkSize bounds how many UIDs the Fetcher requests from the
	// MailClient in a single batch.
	ChunkSize int

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string

	// EncryptionKeyBase64 is the 32-byte (base64-encoded) key used to
	// encrypt account passwords when the OS keyring is unavailable.
	EncryptionKeyBase64 string

	// S3Endpoint, when set together with S3AccessKeyID and
	// S3SecretAccessKey, switches the blob store to S3-compatible storage
	// instead of the filesystem (see UsesS3).
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3UseSSL          bool
	S3Region          string
}

// Load reads configuration from the environment, loading a .env file
// first when running outside production.
func Load() (*Config, error) {
	env := getEnvOrDefault("SYNCD_ENV", "development")
	if env != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
		}
	}

	pollInterval, err := time.ParseDuration(getEnvOrDefault("SYNCD_POLL_INTERVAL", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNCD_POLL_INTERVAL: %w", err)
	}

	chunkSize, err := strconv.Atoi(getEnvOrDefault("SYNCD_CHUNK_SIZE", "200"))
	if err != nil || chunkSize <= 0 {
		return nil, fmt.Errorf("invalid SYNCD_CHUNK_SIZE")
	}

	cfg := &Config{
		Environment:         env,
		DataDir:             getEnvOrDefault("SYNCD_DATA_DIR", "./data"),
		PollInterval:        pollInterval,
		ChunkSize:           chunkSize,
		LogLevel:            getEnvOrDefault("SYNCD_LOG_LEVEL", "info"),
		EncryptionKeyBase64: os.Getenv("SYNCD_ENCRYPTION_KEY"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:       os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:   os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:            getEnvOrDefault("S3_BUCKET", "gmsync"),
		S3UseSSL:            getEnvOrDefault("S3_USE_SSL", "true") == "true",
		S3Region:            getEnvOrDefault("AWS_REGION", "us-east-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("SYNCD_DATA_DIR must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("SYNCD_POLL_INTERVAL must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("SYNCD_CHUNK_SIZE must be positive")
	}
	return nil
}

// UsesS3 reports whether S3-backed blob storage is configured.
func (c *Config) UsesS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
