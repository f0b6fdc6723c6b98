package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServer = "http://localhost:4000"
	serverEnv     = "NOTES_SERVER"
)

// cliConfig is the on-disk CLI configuration.
type cliConfig struct {
	Server       string        `yaml:"server"`
	AutosaveWait time.Duration `yaml:"autosave_delay"`
	PageSize     int           `yaml:"page_size"`
}

// configPath returns ~/.config/notes/config.yaml, honoring XDG_CONFIG_HOME.
func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "notes", "config.yaml")
}

// loadCLIConfig reads path. A missing file yields the zero config.
func loadCLIConfig(path string) (*cliConfig, error) {
	cfg := &cliConfig{}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// resolveServer picks the server URL: flag, then NOTES_SERVER, then the
// config file, then the default.
func resolveServer(flag string, cfg *cliConfig) string {
	for _, candidate := range []string{flag, os.Getenv(serverEnv), cfg.Server} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return defaultServer
}
