package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRelay(); err != nil {
		return err
	}
	if err := c.validateForward(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRelay() error {
	switch c.Relay.Mode {
	case ModeTopic, ModeSlug:
	default:
		return fmt.Errorf("relay.mode must be %q or %q, got %q", ModeTopic, ModeSlug, c.Relay.Mode)
	}
	if err := ensurePositiveMap(map[string]int{
		"relay.liveness_interval": c.Relay.LivenessInterval,
		"relay.write_timeout":     c.Relay.WriteTimeout,
		"relay.history_limit":     c.Relay.HistoryLimit,
	}); err != nil {
		return err
	}
	if c.Relay.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("relay.history_limit must be <= %d", MaxHistoryLimit)
	}
	if c.Relay.WriteTimeout >= c.Relay.LivenessInterval {
		return errors.New("relay.write_timeout must be less than relay.liveness_interval")
	}
	return nil
}

func (c *Config) validateForward() error {
	switch c.Forward.Format {
	case FormatJSON, FormatNtfy:
	default:
		return fmt.Errorf("forward.format must be %q or %q, got %q", FormatJSON, FormatNtfy, c.Forward.Format)
	}
	if c.Forward.RatePerSec < 0 {
		return errors.New("forward.rate_per_sec must be >= 0")
	}
	if strings.TrimSpace(c.Forward.GatewayURL) == "" {
		return nil
	}
	parsed, err := url.Parse(c.Forward.GatewayURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("forward.gateway_url must be an absolute URL, got %q", c.Forward.GatewayURL)
	}
	if c.Forward.RequestTimeout <= 0 {
		return errors.New("forward.request_timeout must be positive when forward.gateway_url is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
