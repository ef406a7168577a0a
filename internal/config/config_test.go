package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SYNCD_ENV", "SYNCD_POLL_INTERVAL", "SYNCD_CHUNK_SIZE", "SYNCD_DATA_DIR",
		"SYNCD_LOG_LEVEL", "SYNCD_ENCRYPTION_KEY", "S3_ENDPOINT", "S3_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY", "S3_BUCKET", "S3_USE_SSL", "AWS_REGION",
	} {
		_ = os.Unsetenv(key)
	}
	_ = os.Setenv("SYNCD_ENV", "production")
	defer os.Unsetenv("SYNCD_ENV")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.DataDir != "./data" {
		t.Errorf("expected default DataDir './data', got %q", cfg.DataDir)
	}
	if cfg.ChunkSize != 200 {
		t.Errorf("expected default ChunkSize 200, got %d", cfg.ChunkSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel 'info', got %q", cfg.LogLevel)
	}
	if cfg.UsesS3() {
		t.Errorf("expected UsesS3() false with no S3 env set")
	}
}

func TestLoadInvalidPollInterval(t *testing.T) {
	_ = os.Setenv("SYNCD_ENV", "production")
	_ = os.Setenv("SYNCD_POLL_INTERVAL", "not-a-duration")
	defer func() {
		os.Unsetenv("SYNCD_ENV")
		os.Unsetenv("SYNCD_POLL_INTERVAL")
	}()

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid SYNCD_POLL_INTERVAL, got nil")
	}
}

func TestLoadInvalidChunkSize(t *testing.T) {
	_ = os.Setenv("SYNCD_ENV", "production")
	_ = os.Setenv("SYNCD_CHUNK_SIZE", "0")
	defer func() {
		os.Unsetenv("SYNCD_ENV")
		os.Unsetenv("SYNCD_CHUNK_SIZE")
	}()

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive SYNCD_CHUNK_SIZE, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		shouldErr bool
	}{
		{
			name:      "valid",
			cfg:       Config{DataDir: "./data", PollInterval: 1, ChunkSize: 200},
			shouldErr: false,
		},
		{
			name:      "missing data dir",
			cfg:       Config{PollInterval: 1, ChunkSize: 200},
			shouldErr: true,
		},
		{
			name:      "non-positive poll interval",
			cfg:       Config{DataDir: "./data", PollInterval: 0, ChunkSize: 200},
			shouldErr: true,
		},
		{
			name:      "non-positive chunk size",
			cfg:       Config{DataDir: "./data", PollInterval: 1, ChunkSize: 0},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.shouldErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestUsesS3(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"all set", Config{S3Endpoint: "minio:9000", S3AccessKeyID: "k", S3SecretAccessKey: "s"}, true},
		{"missing endpoint", Config{S3AccessKeyID: "k", S3SecretAccessKey: "s"}, false},
		{"missing key", Config{S3Endpoint: "minio:9000", S3SecretAccessKey: "s"}, false},
		{"none set", Config{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.UsesS3(); got != tt.want {
				t.Errorf("UsesS3() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	_ = os.Setenv("GMSYNC_TEST_KEY", "set-value")
	defer os.Unsetenv("GMSYNC_TEST_KEY")

	if got := getEnvOrDefault("GMSYNC_TEST_KEY", "default"); got != "set-value" {
		t.Errorf("expected 'set-value', got %q", got)
	}
	if got := getEnvOrDefault("GMSYNC_TEST_KEY_MISSING", "default"); got != "default" {
		t.Errorf("expected 'default', got %q", got)
	}
}
