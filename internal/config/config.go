// Package config loads the bidtrail binary configuration from a YAML file,
// BIDTRAIL_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aretw0/bidtrail/internal/platform"
	"github.com/aretw0/bidtrail/pkg/codec"
)

// EnvPrefix prefixes every environment variable, e.g. BIDTRAIL_LEDGER_URI.
const EnvPrefix = "BIDTRAIL"

// Config is the full configuration of the binary.
type Config struct {
	Ledger LedgerConfig `mapstructure:"ledger"`
	Stages StagesConfig `mapstructure:"stages"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Log    LogConfig    `mapstructure:"log"`
}

// LedgerConfig selects and tunes the ledger adapter.
type LedgerConfig struct {
	// URI names the adapter: memory://, fs:///dir, sqlite:///file.db,
	// redis://host:6379/0 or http(s)://user:pass@node:port.
	URI           string        `mapstructure:"uri"`
	Codec         string        `mapstructure:"codec"`
	Strict        bool          `mapstructure:"strict"`
	PageSize      int           `mapstructure:"page_size"`
	Retries       int           `mapstructure:"retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	ReadOnly      bool          `mapstructure:"read_only"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	Chain         string        `mapstructure:"chain"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// StagesConfig points to an optional YAML transition table.
type StagesConfig struct {
	File string `mapstructure:"file"`
}

// HTTPConfig configures `bidtrail serve`.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"ledger.uri":            "",
	"ledger.codec":          "json",
	"ledger.strict":         false,
	"ledger.page_size":      1000,
	"ledger.retries":        2,
	"ledger.retry_interval": 200 * time.Millisecond,
	"ledger.read_only":      false,
	"ledger.redis_prefix":   "bidtrail",
	"ledger.chain":          "",
	"ledger.timeout":        30 * time.Second,
	"stages.file":           "",
	"http.addr":             ":8080",
	"http.shutdown_timeout": 10 * time.Second,
	"log.level":             "info",
	"log.format":            "text",
}

// New returns a viper instance with the defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path (optional) into v and decodes it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(codec.Names(), c.Ledger.Codec) {
		errs = append(errs, fmt.Errorf("ledger.codec: unknown codec %q (available: %v)", c.Ledger.Codec, codec.Names()))
	}
	if c.Ledger.URI != "" {
		if _, err := platform.ParseURI(c.Ledger.URI); err != nil {
			errs = append(errs, fmt.Errorf("ledger.uri: %w", err))
		}
	}
	if c.Ledger.PageSize < 0 {
		errs = append(errs, errors.New("ledger.page_size: must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// PlatformOptions translates the ledger and stages settings into engine options.
func (c *Config) PlatformOptions(logger *slog.Logger) []platform.Option {
	return []platform.Option{
		platform.WithLogger(logger),
		platform.WithCodec(c.Ledger.Codec),
		platform.WithStrict(c.Ledger.Strict),
		platform.WithPageSize(c.Ledger.PageSize),
		platform.WithRetries(c.Ledger.Retries),
		platform.WithRetryInterval(c.Ledger.RetryInterval),
		platform.WithReadOnly(c.Ledger.ReadOnly),
		platform.WithRedisPrefix(c.Ledger.RedisPrefix),
		platform.WithChain(c.Ledger.Chain),
		platform.WithTimeout(c.Ledger.Timeout),
		platform.WithStagesFile(c.Stages.File),
		platform.WithWatcherErrorHandler(func(err error) {
			logger.Error("ledger watcher failed", slog.Any("error", err))
		}),
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(name))
	return level, err
}

// NewLogger builds the process logger. verbose forces the debug level.
func (c *Config) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
