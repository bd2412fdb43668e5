package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Routing modes supported by the relay.
const (
	ModeTopic = "topic"
	ModeSlug  = "slug"
)

// Forward payload formats.
const (
	FormatJSON = "json"
	FormatNtfy = "ntfy"
)

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Relay contains routing and liveness settings for the relay core.
type Relay struct {
	Mode             string `toml:"mode"`
	LivenessInterval int    `toml:"liveness_interval"`
	HistoryLimit     int    `toml:"history_limit"`
	WriteTimeout     int    `toml:"write_timeout"`
	OwnerCacheSize   int    `toml:"owner_cache_size"`
}

// Forward contains configuration for the external push gateway.
type Forward struct {
	GatewayURL     string  `toml:"gateway_url"`
	Format         string  `toml:"format"`
	RequestTimeout int     `toml:"request_timeout"`
	Workers        int     `toml:"workers"`
	QueueSize      int     `toml:"queue_size"`
	RatePerSec     float64 `toml:"rate_per_sec"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Courier.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Relay: routing mode, liveness interval, read-back cap
//   - Forward: push gateway used when no live endpoint is reachable
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Relay   Relay   `toml:"relay"`
	Forward Forward `toml:"forward"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "courier.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "courierd.lock")
}

// LivenessInterval returns the probe/evict tick period.
func (c *Config) LivenessInterval() time.Duration {
	return time.Duration(c.Relay.LivenessInterval) * time.Second
}

// WriteTimeout returns the per-frame websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Relay.WriteTimeout) * time.Second
}

// ForwardTimeout returns the push gateway request timeout.
func (c *Config) ForwardTimeout() time.Duration {
	return time.Duration(c.Forward.RequestTimeout) * time.Second
}

// ForwardEnabled reports whether a push gateway is configured.
func (c *Config) ForwardEnabled() bool {
	return strings.TrimSpace(c.Forward.GatewayURL) != ""
}

// SlugMode reports whether the ownership variant is active.
func (c *Config) SlugMode() bool {
	return c.Relay.Mode == ModeSlug
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
