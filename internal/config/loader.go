package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".bridgeclaw"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. BRIDGECLAW_CONFIG
// overrides the default ~/.bridgeclaw/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("BRIDGECLAW_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load builds the effective config: defaults, then the JSON config file if
// present, then BRIDGECLAW_* environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Tags carry the fully-prefixed variable names: envconfig derives the
	// primary key of a nested field from its struct path, so BRIDGECLAW_*
	// resolves through the tag's unprefixed alternate lookup.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.Paths.DataDir, err = expandHome(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config file, creating its directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// QueueRoot returns the IPC queue root under the data dir.
func (c *Config) QueueRoot() string {
	return filepath.Join(c.Paths.DataDir, "ipc")
}

// RegistryPath returns the registry database path.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.DataDir, "registry.db")
}

// SnapshotPath returns the groups snapshot path external producers read.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Paths.DataDir, "groups.json")
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
