package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"courier/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COURIER_FORWARD_URL", "")
	t.Setenv("COURIER_API_BIND", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "courier")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "courier.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Relay.Mode != config.ModeTopic {
		t.Fatalf("expected topic mode by default, got %q", cfg.Relay.Mode)
	}
	if cfg.LivenessInterval() != 30*time.Second {
		t.Fatalf("unexpected liveness interval: %s", cfg.LivenessInterval())
	}
	if cfg.Relay.HistoryLimit != config.MaxHistoryLimit {
		t.Fatalf("unexpected history limit: %d", cfg.Relay.HistoryLimit)
	}
	if cfg.ForwardEnabled() {
		t.Fatal("expected forwarding disabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "courier.toml")
	t.Setenv("COURIER_FORWARD_URL", "")

	type payload struct {
		Relay struct {
			Mode             string `toml:"mode"`
			LivenessInterval int    `toml:"liveness_interval"`
			HistoryLimit     int    `toml:"history_limit"`
		} `toml:"relay"`
		Forward struct {
			GatewayURL string `toml:"gateway_url"`
			Format     string `toml:"format"`
		} `toml:"forward"`
	}
	custom := payload{}
	custom.Relay.Mode = "SLUG"
	custom.Relay.LivenessInterval = 45
	custom.Relay.HistoryLimit = 5000
	custom.Forward.GatewayURL = "https://push.example.com/"
	custom.Forward.Format = "ntfy"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if !cfg.SlugMode() {
		t.Fatalf("expected slug mode, got %q", cfg.Relay.Mode)
	}
	if cfg.Relay.LivenessInterval != 45 {
		t.Fatalf("expected liveness interval 45, got %d", cfg.Relay.LivenessInterval)
	}
	if cfg.Relay.HistoryLimit != config.MaxHistoryLimit {
		t.Fatalf("expected history limit clamped to %d, got %d", config.MaxHistoryLimit, cfg.Relay.HistoryLimit)
	}
	if cfg.Forward.GatewayURL != "https://push.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Forward.GatewayURL)
	}
	if cfg.Forward.Format != config.FormatNtfy {
		t.Fatalf("expected ntfy format, got %q", cfg.Forward.Format)
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "courier.toml")
	contents := "[paths]\napi_bind = \"127.0.0.1:1\"\n[forward]\ngateway_url = \"https://file.example.com\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("COURIER_FORWARD_URL", "https://env.example.com")
	t.Setenv("COURIER_API_BIND", "0.0.0.0:9999")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Forward.GatewayURL != "https://env.example.com" {
		t.Errorf("expected gateway url from env, got %q", cfg.Forward.GatewayURL)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9999" {
		t.Errorf("expected api bind from env, got %q", cfg.Paths.APIBind)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[forward]") {
		t.Fatalf("sample config missing forward section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Relay.Mode != config.ModeTopic {
		t.Fatalf("expected sample to default to topic mode, got %q", cfg.Relay.Mode)
	}
	if !strings.Contains(cfg.Paths.DataDir, "courier") {
		t.Fatalf("expected data dir to contain courier, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Relay.Mode = "mesh"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	cfg = config.Default()
	cfg.Relay.LivenessInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for liveness interval")
	}

	cfg = config.Default()
	cfg.Relay.WriteTimeout = cfg.Relay.LivenessInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when write timeout >= liveness interval")
	}

	cfg = config.Default()
	cfg.Forward.GatewayURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative gateway url")
	}

	cfg = config.Default()
	cfg.Forward.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown forward format")
	}

	cfg = config.Default()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
