// Package config holds the file-based defaults for the stagepush CLI.
// Values from the config file sit between built-in defaults and command
// line flags: flags win, the file fills in what flags leave unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete tool configuration.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Paths    PathsConfig    `yaml:"paths"`
	Transfer TransferConfig `yaml:"transfer"`
	UI       UIConfig       `yaml:"ui"`
}

// RemoteConfig holds connection defaults for the fleet's file server.
type RemoteConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`
	KeyPath     string        `yaml:"keyPath"`
	PasswordEnv string        `yaml:"passwordEnv"`
	DialTimeout time.Duration `yaml:"dialTimeout"`

	// Profile and Region apply to s3:// destinations only.
	Profile string `yaml:"profile"`
	Region  string `yaml:"region"`
}

// PathsConfig holds local path defaults.
type PathsConfig struct {
	LogDir      string `yaml:"logDir"`
	JournalPath string `yaml:"journalPath"`
	BackupDir   string `yaml:"backupDir"`
}

// TransferConfig holds batch behavior defaults.
type TransferConfig struct {
	ExcludePattern string `yaml:"excludePattern"`
	BufferSize     int    `yaml:"bufferSize"`
}

// UIConfig controls the interactive progress view.
type UIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig is the configuration used when no file overrides it.
var DefaultConfig = Config{
	Remote: RemoteConfig{
		Port:        22,
		PasswordEnv: "STAGEPUSH_PASSWORD",
		DialTimeout: 30 * time.Second,
	},
	Paths: PathsConfig{
		LogDir:      "logs",
		JournalPath: ".stagepush/journal.db",
	},
	Transfer: TransferConfig{
		BufferSize: 512 * 1024,
	},
	UI: UIConfig{
		Enabled: true,
	},
}

// Load returns DefaultConfig overridden by the YAML file at path. An
// empty path returns the defaults; a missing file is an error so typos
// in --config don't silently run with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}
