package config

const (
	defaultConfigPath       = "~/.config/courier/config.toml"
	defaultDataDir          = "~/.local/share/courier"
	defaultLogDir           = "~/.local/share/courier/logs"
	defaultAPIBind          = "127.0.0.1:7488"
	defaultMode             = ModeTopic
	defaultLivenessInterval = 30
	// MaxHistoryLimit caps every read-back regardless of configuration.
	MaxHistoryLimit       = 1000
	defaultWriteTimeout   = 10
	defaultOwnerCacheSize = 1024
	defaultForwardFormat  = FormatJSON
	defaultForwardTimeout = 10
	defaultForwardWorkers = 2
	defaultForwardQueue   = 256
	defaultForwardRate    = 5.0
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Relay: Relay{
			Mode:             defaultMode,
			LivenessInterval: defaultLivenessInterval,
			HistoryLimit:     MaxHistoryLimit,
			WriteTimeout:     defaultWriteTimeout,
			OwnerCacheSize:   defaultOwnerCacheSize,
		},
		Forward: Forward{
			Format:         defaultForwardFormat,
			RequestTimeout: defaultForwardTimeout,
			Workers:        defaultForwardWorkers,
			QueueSize:      defaultForwardQueue,
			RatePerSec:     defaultForwardRate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
