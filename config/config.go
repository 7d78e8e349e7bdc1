package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"go-infill/batch"
	"go-infill/infill"
)

// BatchConfig controls dataset generation
type BatchConfig struct {
	Workers        int      `json:"workers,omitempty"` // 0 = one per CPU
	TransitionBars int      `json:"transitionBars"`
	Patterns       []string `json:"patterns,omitempty"`
}

// LogConfig controls the debug log
type LogConfig struct {
	Debug bool   `json:"debug,omitempty"`
	Path  string `json:"path,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Infill infill.Options `json:"infill"`
	Batch  BatchConfig    `json:"batch"`
	Log    LogConfig      `json:"log,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Infill: infill.DefaultOptions(),
		Batch: BatchConfig{
			TransitionBars: 8,
			Patterns:       slices.Clone(batch.DefaultPatterns),
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-infill"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file over the defaults, so a partial file only
// overrides what it names
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides settings from INFILL_* environment variables
func (c *Config) ApplyEnv() error {
	if v := getEnv("INFILL_TRANSITION_BARS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INFILL_TRANSITION_BARS: %w", err)
		}
		c.Infill.TransitionBars = n
	}
	if v := getEnv("INFILL_VARIANCE", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INFILL_VARIANCE: %w", err)
		}
		c.Infill.Variance = f
	}
	if v := getEnv("INFILL_SMOOTHING", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INFILL_SMOOTHING: %w", err)
		}
		c.Infill.Smoothing = f
	}
	if v := getEnv("INFILL_WORKERS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INFILL_WORKERS: %w", err)
		}
		c.Batch.Workers = n
	}
	if v := getEnv("INFILL_DEBUG_LOG", ""); v != "" {
		c.Log.Debug = true
		c.Log.Path = v
	}
	return nil
}

// Validate checks the config before use
func (c *Config) Validate() error {
	if err := c.Infill.Validate(); err != nil {
		return err
	}
	if c.Batch.TransitionBars < 0 {
		return fmt.Errorf("batch transition length must be non-negative, got %d", c.Batch.TransitionBars)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Batch.Workers)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
