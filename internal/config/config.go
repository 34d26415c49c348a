// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, and command-line flags, in increasing precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default configuration values.
const (
	DefaultListenAddr   = ":8080"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultCacheTTL     = 5 * time.Minute
	DefaultStoreTimeout = 5 * time.Second
	DefaultLogFormat    = "json"
)

// Config holds the runtime configuration of the service.
type Config struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `koanf:"listen_addr"`

	// MetricsAddr is the metrics/health listen address. Empty disables
	// the observability server.
	MetricsAddr string `koanf:"metrics_addr"`

	// DatabaseURL is the PostgreSQL connection string. Falls back to
	// the DATABASE_URL environment variable when unset.
	DatabaseURL string `koanf:"database_url"`

	// TokenSecret signs bearer tokens. Falls back to the TOKEN_SECRET
	// environment variable when unset. Required.
	TokenSecret string `koanf:"token_secret"`

	// CacheTTL is the user cache time-to-live.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// StoreTimeout bounds each credential store call.
	StoreTimeout time.Duration `koanf:"store_timeout"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`

	// AutoMigrate applies pending schema migrations on startup.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// Load builds the configuration. Precedence, lowest to highest:
// built-in defaults, the YAML file at path (skipped when empty),
// command-line flags, then environment fallbacks for the secrets that
// should not live in files.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		ListenAddr:   DefaultListenAddr,
		MetricsAddr:  DefaultMetricsAddr,
		CacheTTL:     DefaultCacheTTL,
		StoreTimeout: DefaultStoreTimeout,
		LogFormat:    DefaultLogFormat,
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		// Dashed flag names map onto the underscored config keys.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (flag, file, or DATABASE_URL)")
	}
	if c.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token secret is required (flag, file, or TOKEN_SECRET)")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("log_format", c.LogFormat).Errorf("log format must be json or text")
	}
	if c.CacheTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("cache TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("store timeout must be positive")
	}
	return nil
}
