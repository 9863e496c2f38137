package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	KeysFile string         `yaml:"keys_file"`
	Ingest   IngestConfig   `yaml:"ingest"`
	S3       S3Config       `yaml:"s3"`
	Uploader UploaderConfig `yaml:"uploader"`
}

// IngestConfig holds capture pipeline configuration
type IngestConfig struct {
	OutputDir      string `yaml:"output_dir"`
	EventLog       string `yaml:"event_log"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// S3Config holds S3 archive configuration
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// UploaderConfig holds archive uploader configuration
type UploaderConfig struct {
	Enabled           bool `yaml:"enabled"`
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
	MaxRetries        int  `yaml:"max_retries"`
}

// Load loads configuration from a file. A missing file yields defaults so
// the CLI runs with nothing but a keys file.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	if keysFile := os.Getenv("KEYS_FILE"); keysFile != "" {
		cfg.KeysFile = keysFile
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.S3.Bucket = bucket
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		cfg.S3.AccessKeyID = keyID
	}
	if secretKey := os.Getenv("S3_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.S3.SecretAccessKey = secretKey
	}

	// Set defaults
	if cfg.KeysFile == "" {
		cfg.KeysFile = "configs/keys.json"
	}
	if cfg.Ingest.OutputDir == "" {
		cfg.Ingest.OutputDir = "logs/ingest"
	}
	if cfg.Ingest.EventLog == "" {
		cfg.Ingest.EventLog = "logs/calls/calls.json"
	}
	if cfg.Ingest.TimeoutSeconds == 0 {
		cfg.Ingest.TimeoutSeconds = 20
	}
	if cfg.Ingest.MaxRetries == 0 {
		cfg.Ingest.MaxRetries = 3
	}
	if cfg.Uploader.MaxRetries == 0 {
		cfg.Uploader.MaxRetries = 3
	}

	// Validate archive settings only when the uploader is on
	if cfg.Uploader.Enabled {
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3.bucket is required when uploader.enabled is true")
		}
		if cfg.S3.Region == "" {
			return nil, fmt.Errorf("s3.region is required when uploader.enabled is true")
		}
		if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3.secret_access_key is required when using access_key_id")
		}
	}

	return &cfg, nil
}
