package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRelay()
	c.normalizeForward()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if value, ok := os.LookupEnv("COURIER_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeRelay() {
	c.Relay.Mode = strings.ToLower(strings.TrimSpace(c.Relay.Mode))
	if c.Relay.Mode == "" {
		c.Relay.Mode = defaultMode
	}
	if c.Relay.HistoryLimit <= 0 || c.Relay.HistoryLimit > MaxHistoryLimit {
		c.Relay.HistoryLimit = MaxHistoryLimit
	}
	if c.Relay.OwnerCacheSize <= 0 {
		c.Relay.OwnerCacheSize = defaultOwnerCacheSize
	}
}

func (c *Config) normalizeForward() {
	if value, ok := os.LookupEnv("COURIER_FORWARD_URL"); ok && strings.TrimSpace(value) != "" {
		c.Forward.GatewayURL = value
	}
	c.Forward.GatewayURL = strings.TrimRight(strings.TrimSpace(c.Forward.GatewayURL), "/")
	c.Forward.Format = strings.ToLower(strings.TrimSpace(c.Forward.Format))
	if c.Forward.Format == "" {
		c.Forward.Format = defaultForwardFormat
	}
	if c.Forward.Workers <= 0 {
		c.Forward.Workers = defaultForwardWorkers
	}
	if c.Forward.QueueSize <= 0 {
		c.Forward.QueueSize = defaultForwardQueue
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
