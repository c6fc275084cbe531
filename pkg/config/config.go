// Package config loads the YAML configuration file for fleetsim run.
// Precedence is flag > YAML > built-in default; this package only
// covers the YAML layer, applied by cmd/fleetsim before flag defaults
// are resolved.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the fleetsim run flag set so a YAML file can supply
// any subset of them.
type Config struct {
	Addr        string  `yaml:"addr"`
	MetricsAddr string  `yaml:"metrics_addr"`
	FleetSize   int     `yaml:"fleet_size"`
	Policy      string  `yaml:"policy"`
	RateLow     float64 `yaml:"rate_low"`
	RateHigh    float64 `yaml:"rate_high"`
	LogLevel    string  `yaml:"log_level"`
	LogJSON     bool    `yaml:"log_json"`
}

// Load reads and parses a YAML config file. A zero Config is returned
// for an empty path; the caller treats an unset field as "not
// supplied" and falls through to the flag default.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
