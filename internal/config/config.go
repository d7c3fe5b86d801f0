// Package config provides YAML + environment configuration for memegen.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the client-side settings: where the backend lives and where
// durable state is kept.
type Config struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	DataDir    string `yaml:"data_dir"`
	Verbose    bool   `yaml:"verbose"`
}

// Load reads configuration with the usual precedence: built-in defaults,
// then the YAML file at path (optional), then environment variables.
// A .env file in the working directory is folded into the environment first.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it is a convenience, not a requirement.
	godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if defaultPath, err := DefaultPath(); err == nil {
		if data, err := os.ReadFile(defaultPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", defaultPath, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath returns the well-known config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".memegen", "config.yaml"), nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MEMEGEN_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MEMEGEN_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.TimeoutSec = sec
		}
	}
	if v := os.Getenv("MEMEGEN_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MEMEGEN_VERBOSE"); v == "1" || v == "true" {
		c.Verbose = true
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000"
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 120
	}
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".memegen")
		}
	}
}

func (c *Config) validate() error {
	if c.TimeoutSec < 0 {
		return fmt.Errorf("config: timeout_sec must not be negative")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: base_url %q is not a valid URL", c.BaseURL)
	}
	return nil
}

// DBPath returns the location of the state database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "state.db")
}
