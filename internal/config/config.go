// Package config loads and validates the server's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig is the top-level configuration for one server process.
type ServerConfig struct {
	Name           string   `toml:"name"`
	ListenAddr     string   `toml:"listen_addr"`
	SearchAddr     string   `toml:"search_addr"`
	BeaconAddr     string   `toml:"beacon_addr"`
	BeaconPeriodMS int      `toml:"beacon_period_ms"`
	AdminAddr      string   `toml:"admin_addr"`
	CorsOrigins    []string `toml:"cors_origins"`

	Sim     SimConfig     `toml:"sim"`
	Storage StorageConfig `toml:"storage"`
}

// SimConfig controls the built-in simulated provider.
type SimConfig struct {
	Enabled    bool `toml:"enabled"`
	IntervalMS int  `toml:"interval_ms"`
}

// StorageConfig controls the persistent pebble-backed provider.
type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// BeaconPeriod returns the beacon interval as a duration.
func (c ServerConfig) BeaconPeriod() time.Duration {
	return time.Duration(c.BeaconPeriodMS) * time.Millisecond
}

// SimInterval returns the simulated-provider tick as a duration.
func (c SimConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Default returns the configuration used when no file is given.
func Default() ServerConfig {
	return ServerConfig{
		Name:           "caserver",
		ListenAddr:     ":5064",
		SearchAddr:     ":5064",
		BeaconAddr:     "255.255.255.255:5065",
		BeaconPeriodMS: 15000,
		AdminAddr:      ":9430",
		Sim:            SimConfig{Enabled: true, IntervalMS: 1000},
	}
}

// Load reads a server config from path, applying defaults for missing
// fields.
func Load(path string) (ServerConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate checks a server config for holes a running server cannot
// tolerate.
func Validate(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("server config missing listen_addr")
	}
	if strings.TrimSpace(cfg.SearchAddr) == "" {
		return fmt.Errorf("server config missing search_addr")
	}
	if cfg.BeaconPeriodMS <= 0 {
		return fmt.Errorf("beacon_period_ms must be positive")
	}
	if cfg.Sim.Enabled && cfg.Sim.IntervalMS <= 0 {
		return fmt.Errorf("sim.interval_ms must be positive when sim is enabled")
	}
	if cfg.Storage.Enabled && strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path required when storage is enabled")
	}
	return nil
}
