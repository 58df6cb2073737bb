package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays FILTERLOG_* environment variables onto cfg. Malformed
// values are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("FILTERLOG_ALLOW_AUTO_CREATE_DEVICES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateDevices = b
		}
	}
	if v := os.Getenv("FILTERLOG_DEFAULT_DEVICE_NAME"); v != "" {
		cfg.DefaultDeviceName = v
	}
	if v := os.Getenv("FILTERLOG_DEVICE_NAME_REGEX"); v != "" {
		cfg.DeviceNameRegex = v
	}
	envInt("FILTERLOG_MAX_DEVICES", &cfg.MaxDevices)
	if v := os.Getenv("FILTERLOG_ALLOWED_DEVICES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.AllowedDevices = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.AllowedDevices = append(cfg.AllowedDevices, p)
			}
		}
	}
	if v := os.Getenv("FILTERLOG_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("FILTERLOG_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("FILTERLOG_STORE_COMPRESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.Compress = b
		}
	}
	envInt("FILTERLOG_DEFAULT_PAGE_SIZE", &cfg.Paging.DefaultPageSize)
	envDuration("FILTERLOG_RETENTION_MAX_AGE", &cfg.Retention.MaxAge)
	envDuration("FILTERLOG_RETENTION_INTERVAL", &cfg.Retention.Interval)
	envInt("FILTERLOG_RETENTION_BATCH_SIZE", &cfg.Retention.BatchSize)
	envDuration("FILTERLOG_VIEWS_IDLE_TIMEOUT", &cfg.Views.IdleTimeout)
	envInt("FILTERLOG_VIEWS_MAX", &cfg.Views.MaxViews)
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
