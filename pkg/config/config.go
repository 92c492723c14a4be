// Package config provides configuration loading and management for planarfits.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Codec parameters for written FITS files
	Codec struct {
		// ByteOrder is "big" (standard FITS) or "little"
		ByteOrder string `yaml:"byteOrder"`

		// Gzip compresses outputs whose name does not already end in .gz
		Gzip bool `yaml:"gzip"`
	} `yaml:"codec"`

	// Gaussian blur parameters
	Blur struct {
		// Sigma is the standard deviation in pixels
		Sigma float64 `yaml:"sigma"`

		// Channels lists the channels to blur; empty means all
		Channels []int `yaml:"channels"`
	} `yaml:"blur"`

	// Preview parameters
	Preview struct {
		Channel int    `yaml:"channel"`
		Width   int    `yaml:"width"`
		Format  string `yaml:"format"`
	} `yaml:"preview"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Codec.ByteOrder = "big"
	cfg.Codec.Gzip = false

	cfg.Blur.Sigma = 1.0

	cfg.Preview.Channel = 0
	cfg.Preview.Width = 0 // native size
	cfg.Preview.Format = "png"

	cfg.Output.Verbose = true

	return cfg
}

// Validate reports settings that can never work.
func (c *Config) Validate() error {
	switch c.Codec.ByteOrder {
	case "big", "little", "BIG_ENDIAN", "LITTLE_ENDIAN":
	default:
		return fmt.Errorf("codec.byteOrder %q must be big or little", c.Codec.ByteOrder)
	}
	if c.Blur.Sigma <= 0 {
		return fmt.Errorf("blur.sigma must be positive, got %g", c.Blur.Sigma)
	}
	for _, ch := range c.Blur.Channels {
		if ch < 0 {
			return fmt.Errorf("blur.channels contains negative channel %d", ch)
		}
	}
	if c.Preview.Channel < 0 || c.Preview.Width < 0 {
		return fmt.Errorf("preview channel and width must be non-negative")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
