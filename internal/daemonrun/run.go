package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/logging"
	"courier/internal/preflight"
	"courier/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Development forces debug logging with source locations.
	Development bool
}

// Run starts the courier daemon and blocks until SIGINT/SIGTERM or a fatal
// component error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logCfg := *cfg
	if opts.LogLevel != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	if opts.Development {
		logCfg.Logging.Level = "debug"
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := runPreflight(signalCtx, logger, cfg); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "courierd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open relay store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close", logging.Error(err))
		}
	}()

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.String(logging.FieldErrorHint, "check api_bind and data_dir"),
			logging.Error(err),
		)
		return err
	}
	logger.Info("courier daemon shut down")
	return nil
}

// runPreflight fails on an unusable data directory and only warns about the
// rest.
func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight ok", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		if result.Name == "Data directory" {
			return fmt.Errorf("preflight %s: %s", result.Name, result.Detail)
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "verify the configured path or gateway URL"),
			logging.String(logging.FieldImpact, "related feature may be degraded"),
		)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
