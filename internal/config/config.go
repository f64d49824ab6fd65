// Package config loads the optional lhdretrieve configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything adjustable about how retrievals run. All
// fields are optional; zero values fall back to built-in defaults.
type Config struct {
	// RetrievePath pins the external executable instead of probing the
	// default install locations.
	RetrievePath string `yaml:"retrieve_path"`
	// WorkingDir overrides where temporary artifacts are written.
	WorkingDir string `yaml:"working_dir"`
	// TimeoutSeconds bounds one tool invocation.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// ExtraCandidatePaths are probed before the default install locations.
	ExtraCandidatePaths []string `yaml:"extra_candidate_paths"`
	// HistoryDB is the retrieval-log database path; empty disables it.
	HistoryDB string `yaml:"history_db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TimeoutSeconds: 300,
		HistoryDB:      defaultHistoryDB(),
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lhdretrieve", "config.yaml")
}

func defaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "lhdretrieve", "history.db")
}

// Load reads a config file, layering it over the defaults. A missing
// file at the default location is fine; an explicitly requested file
// that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.TimeoutSeconds < 0 {
		return cfg, fmt.Errorf("timeout_seconds must be non-negative (got %d)", cfg.TimeoutSeconds)
	}
	return cfg, nil
}

// Timeout returns the invocation timeout as a duration.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
