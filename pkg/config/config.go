// Package config loads interpreter settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no explicit
// path is given. Its absence is not an error.
const DefaultFile = ".dolang.yaml"

type Config struct {
	Optimize           bool          `yaml:"optimize"`
	Dump               bool          `yaml:"dump"`
	Workers            int           `yaml:"workers"`
	Prompt             string        `yaml:"prompt"`
	ContinuationPrompt string        `yaml:"continuation_prompt"`
	HistoryFile        string        `yaml:"history_file"`
	LogLevel           string        `yaml:"log_level"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxCallDepth       int           `yaml:"max_call_depth"`
}

// Default returns the built-in settings.
func Default() Config {
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".dolang_history")
	}
	return Config{
		Optimize:           true,
		Workers:            runtime.NumCPU(),
		Prompt:             "do] ",
		ContinuationPrompt: "...] ",
		HistoryFile:        history,
		LogLevel:           "info",
		MaxCallDepth:       10000,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path means DefaultFile, which may be missing; an explicit path must
// exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxCallDepth < 1 {
		return fmt.Errorf("max_call_depth must be at least 1, got %d", c.MaxCallDepth)
	}
	return nil
}
