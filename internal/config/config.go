package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	AllowAutoCreateDevices bool     `json:"allowAutoCreateDevices" yaml:"allowAutoCreateDevices"`
	DefaultDeviceName      string   `json:"defaultDeviceName" yaml:"defaultDeviceName"`
	DeviceNameRegex        string   `json:"deviceNameRegex" yaml:"deviceNameRegex"`
	MaxDevices             int      `json:"maxDevices" yaml:"maxDevices"`
	AllowedDevices         []string `json:"allowedDevices" yaml:"allowedDevices"`

	Store     StoreConfig     `json:"store" yaml:"store"`
	Paging    PagingConfig    `json:"paging" yaml:"paging"`
	Retention RetentionConfig `json:"retention" yaml:"retention"`
	Views     ViewsConfig     `json:"views" yaml:"views"`
}

// StoreConfig selects and tunes the ordered log store.
type StoreConfig struct {
	// Driver is "pebble" or "postgres".
	Driver   string `json:"driver" yaml:"driver"`
	DSN      string `json:"dsn" yaml:"dsn"`
	Compress bool   `json:"compress" yaml:"compress"`
}

// PagingConfig holds pager defaults.
type PagingConfig struct {
	DefaultPageSize int `json:"defaultPageSize" yaml:"defaultPageSize"`
}

// RetentionConfig drives the background trim. A zero MaxAge keeps
// everything.
type RetentionConfig struct {
	MaxAge    Duration `json:"maxAge" yaml:"maxAge"`
	Interval  Duration `json:"interval" yaml:"interval"`
	BatchSize int      `json:"batchSize" yaml:"batchSize"`
}

// ViewsConfig bounds server-side pagination views.
type ViewsConfig struct {
	IdleTimeout Duration `json:"idleTimeout" yaml:"idleTimeout"`
	MaxViews    int      `json:"maxViews" yaml:"maxViews"`
}

const (
	DriverPebble   = "pebble"
	DriverPostgres = "postgres"
)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		AllowAutoCreateDevices: true,
		DefaultDeviceName:      "default",
		DeviceNameRegex:        "[a-z0-9-_]{1,64}",
		Store:                  StoreConfig{Driver: DriverPebble},
		Paging:                 PagingConfig{DefaultPageSize: 10},
		Retention: RetentionConfig{
			Interval:  Duration(time.Hour),
			BatchSize: 1000,
		},
		Views: ViewsConfig{
			IdleTimeout: Duration(15 * time.Minute),
			MaxViews:    1024,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports settings the runtime cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverPebble:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Paging.DefaultPageSize {
	case 10, 20, 30, 40, 50:
	default:
		return fmt.Errorf("paging.defaultPageSize must be one of 10, 20, 30, 40, 50")
	}
	if c.Retention.MaxAge < 0 || c.Retention.Interval < 0 {
		return fmt.Errorf("retention durations must not be negative")
	}
	return nil
}
