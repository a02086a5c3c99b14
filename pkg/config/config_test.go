package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Optimize || cfg.Dump {
		t.Errorf("expected optimize on and dump off, got %+v", cfg)
	}
	if cfg.Prompt != "do] " || cfg.ContinuationPrompt != "...] " {
		t.Errorf("unexpected prompts %q %q", cfg.Prompt, cfg.ContinuationPrompt)
	}
	if cfg.LogLevel != "info" || cfg.Timeout != 0 {
		t.Errorf("unexpected log level or timeout: %q %s", cfg.LogLevel, cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cfg.yaml", `
optimize: false
workers: 3
prompt: "> "
log_level: debug
timeout: 5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Optimize {
		t.Errorf("expected optimize to be turned off")
	}
	if cfg.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.Prompt != "> " {
		t.Errorf("expected prompt %q, got %q", "> ", cfg.Prompt)
	}
	if cfg.ContinuationPrompt != "...] " {
		t.Errorf("expected unset keys to keep their defaults, got %q", cfg.ContinuationPrompt)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %q", cfg.LogLevel)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.Timeout)
	}
}

func TestLoadDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected a missing default file to be ignored, got %v", err)
	}
	if cfg.Prompt != Default().Prompt {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	writeFile(t, dir, DefaultFile, "dump: true\n")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Dump {
		t.Errorf("expected %s in the working directory to be read", DefaultFile)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		err  string
	}{
		{"Missing Explicit File", filepath.Join(dir, "nope.yaml"), "read config"},
		{"Bad YAML", writeFile(t, dir, "bad.yaml", "workers: [1\n"), "parse config"},
		{"Wrong Type", writeFile(t, dir, "type.yaml", "workers: many\n"), "parse config"},
		{"Invalid Value", writeFile(t, dir, "zero.yaml", "workers: 0\n"), "workers must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Errorf("expected error containing %q, got %v", tt.err, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		err    string
	}{
		{"Workers", func(c *Config) { c.Workers = 0 }, "workers must be at least 1, got 0"},
		{"Log Level", func(c *Config) { c.LogLevel = "loud" }, `unknown log_level "loud"`},
		{"Timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout must not be negative, got -1s"},
		{"Call Depth", func(c *Config) { c.MaxCallDepth = 0 }, "max_call_depth must be at least 1, got 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil || err.Error() != tt.err {
				t.Errorf("expected %q, got %v", tt.err, err)
			}
		})
	}
}
