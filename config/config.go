// Package config loads configuration from a YAML file and environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the triage ingestion tool.
type Config struct {
	// InputDir is scanned for .eml and .msg files.
	InputDir string

	// AttachmentDir is where extracted attachment payloads are written.
	AttachmentDir string

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string

	// DefaultRegion biases phone number parsing for numbers written
	// without a country code.
	DefaultRegion string

	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Input struct {
		Dir string `yaml:"dir"`
	} `yaml:"input"`
	Attachments struct {
		Dir string `yaml:"dir"`
	} `yaml:"attachments"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Phone struct {
		DefaultRegion string `yaml:"default_region"`
	} `yaml:"phone"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads configuration from path (with ${VAR} expansion), falling back
// to environment variables and defaults for anything the file leaves unset.
// A missing file is not an error; everything then comes from the environment.
func Load(path string) (*Config, error) {
	var raw rawConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else {
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
				return nil, fmt.Errorf("parse config YAML: %w", err)
			}
		}
	}

	cfg := &Config{
		InputDir:      firstNonEmpty(raw.Input.Dir, envOrDefault("TRIAGE_INPUT_DIR", "./emails")),
		AttachmentDir: firstNonEmpty(raw.Attachments.Dir, envOrDefault("TRIAGE_ATTACHMENT_DIR", "./attachments")),
		DatabaseURL:   firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		DefaultRegion: firstNonEmpty(raw.Phone.DefaultRegion, envOrDefault("TRIAGE_DEFAULT_REGION", "US")),
		LogLevel:      firstNonEmpty(raw.Log.Level, envOrDefault("LOG_LEVEL", "info")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database URL configured — set database.url in the config file or DATABASE_URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
