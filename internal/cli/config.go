package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by the CLI.
const (
	EnvServer = "CAMERA_SERVER"
	EnvToken  = "CAMERA_TOKEN"

	EnvPollInterval = "POLL_INTERVAL"
	EnvPollTimeout  = "POLL_TIMEOUT"
)

// DefaultServer is used when no server is configured anywhere.
const DefaultServer = "http://localhost:8080"

// FileConfig is the on-disk CLI configuration (~/.camera/config.yaml).
type FileConfig struct {
	Server string `yaml:"server,omitempty"`
	Token  string `yaml:"token,omitempty"`
}

// DefaultConfigPath returns ~/.camera/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".camera", "config.yaml")
	}
	return filepath.Join(home, ".camera", "config.yaml")
}

// LoadFileConfig reads path. A missing file yields an empty config.
func LoadFileConfig(path string) (FileConfig, error) {
	var cfg FileConfig

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveFileConfig writes cfg to path with owner-only permissions since it
// holds a bearer token.
func SaveFileConfig(path string, cfg FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// resolve picks flag > env > file > default for each setting.
func resolve(flagServer, flagToken string, file FileConfig) (server, token string) {
	server = firstNonEmpty(flagServer, os.Getenv(EnvServer), file.Server, DefaultServer)
	token = firstNonEmpty(flagToken, os.Getenv(EnvToken), file.Token)
	return server, token
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// envDuration reads a duration such as "2500ms" from key, or returns fallback.
func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
