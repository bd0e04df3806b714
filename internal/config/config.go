// Package config loads runtime settings from an optional YAML file and
// TABLETS_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPrefix is the environment variable prefix.
const DefaultPrefix = "TABLETS"

// Config is the full runtime configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Journal JournalConfig `mapstructure:"journal"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig tunes call execution.
type EngineConfig struct {
	// MaxSteps is the spreadsheet cell evaluation quota per call.
	MaxSteps int `mapstructure:"max_steps"`
	// CacheSize is the dispatch cache size; 0 disables it.
	CacheSize int `mapstructure:"cache_size"`
	// Workers is the CallBatch pool size.
	Workers int `mapstructure:"workers"`
}

// JournalConfig points at the SQLite invocation journal. An empty path
// disables journaling.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Log:    LogConfig{Level: "INFO", Format: "auto"},
		Engine: EngineConfig{MaxSteps: 100000, CacheSize: 1024, Workers: runtime.GOMAXPROCS(0)},
	}
}

// Load reads the file at path (skipped when empty), then environment
// variables named prefix_SECTION_KEY, e.g. TABLETS_ENGINE_MAX_STEPS. Later
// sources win.
func Load(path, prefix string) (Config, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	v := viper.New()
	setDefaults(v, Defaults())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToUpper(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("engine.max_steps", d.Engine.MaxSteps)
	v.SetDefault("engine.cache_size", d.Engine.CacheSize)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("journal.path", d.Journal.Path)
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json", "auto":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("engine.max_steps: must be >= 0, got %d", c.Engine.MaxSteps))
	}
	if c.Engine.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("engine.cache_size: must be >= 0, got %d", c.Engine.CacheSize))
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers: must be >= 1, got %d", c.Engine.Workers))
	}
	return errors.Join(errs...)
}
