// Package config loads CLI settings from defaults, an optional hayabib.yaml
// and HAYABIB_* environment variables, in increasing precedence. Variables
// may also come from .env.local and .env in the working directory; those
// never override the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys.
const (
	KeySchemaURL            = "schema.url"
	KeySchemaCachePath      = "schema.cache_path"
	KeySchemaRetryInterval  = "schema.retry_interval"
	KeySchemaRefreshTimeout = "schema.refresh_timeout"
	KeyStoreDriver          = "store.driver"
	KeyStoreDSN             = "store.dsn"
	KeyLogLevel             = "log.level"
	KeyLogFormat            = "log.format"
	KeyLogFile              = "log.file"
	KeyMessagesLang         = "messages.lang"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// dotenvFiles are read in order; the first file to set a variable wins.
var dotenvFiles = []string{".env.local", ".env"}

// DefaultSchemaURL is where the Hayagriva schema is published.
const DefaultSchemaURL = "https://jassielof.github.io/json-schemas/docs/hayagriva.schema.json"

// Config is the resolved configuration.
type Config struct {
	Schema SchemaConfig
	Store  StoreConfig
	Log    LogConfig
	// Lang selects the language of validation messages.
	Lang string
	// File is the config file that was read, empty when none was found.
	File string
}

type SchemaConfig struct {
	URL            string
	CachePath      string
	// RetryInterval of zero retries the network on every cold lookup.
	RetryInterval  time.Duration
	RefreshTimeout time.Duration
}

type StoreConfig struct {
	Driver string
	DSN    string
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Load resolves the configuration. An explicit path must exist; otherwise
// hayabib.yaml is looked up in the working directory and the user config
// directory.
func Load(path string) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HAYABIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("hayabib")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "hayabib"))
		}
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	cfg := &Config{
		Schema: SchemaConfig{
			URL:            v.GetString(KeySchemaURL),
			CachePath:      v.GetString(KeySchemaCachePath),
			RetryInterval:  v.GetDuration(KeySchemaRetryInterval),
			RefreshTimeout: v.GetDuration(KeySchemaRefreshTimeout),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString(KeyStoreDriver)),
			DSN:    v.GetString(KeyStoreDSN),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
			File:   v.GetString(KeyLogFile),
		},
		Lang: strings.ToLower(v.GetString(KeyMessagesLang)),
		File: v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv() error {
	for _, name := range dotenvFiles {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	dataDir, err := os.UserConfigDir()
	if err != nil {
		dataDir = os.TempDir()
	}
	v.SetDefault(KeySchemaURL, DefaultSchemaURL)
	v.SetDefault(KeySchemaCachePath, filepath.Join(cacheDir, "hayabib", "schema.json"))
	v.SetDefault(KeySchemaRetryInterval, 30*time.Second)
	v.SetDefault(KeySchemaRefreshTimeout, 15*time.Second)
	v.SetDefault(KeyStoreDriver, DriverSQLite)
	v.SetDefault(KeyStoreDSN, filepath.Join(dataDir, "hayabib", "hayabib.db"))
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyMessagesLang, "en")
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverS3:
	default:
		return fmt.Errorf("config: %s must be one of memory, sqlite, postgres, s3; got %q", KeyStoreDriver, c.Store.Driver)
	}
	if c.Store.Driver != DriverMemory && c.Store.DSN == "" {
		return fmt.Errorf("config: %s is required for driver %s", KeyStoreDSN, c.Store.Driver)
	}
	if c.Store.Driver == DriverS3 && !strings.HasPrefix(c.Store.DSN, "s3://") {
		return fmt.Errorf("config: %s must be s3://bucket/prefix for driver s3", KeyStoreDSN)
	}
	if c.Lang != "en" && c.Lang != "ja" {
		return fmt.Errorf("config: %s must be en or ja, got %q", KeyMessagesLang, c.Lang)
	}
	if c.Schema.URL == "" {
		return fmt.Errorf("config: %s must not be empty", KeySchemaURL)
	}
	if c.Schema.RetryInterval < 0 || c.Schema.RefreshTimeout <= 0 {
		return fmt.Errorf("config: schema intervals must be positive")
	}
	return nil
}
