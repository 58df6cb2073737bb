// Package config provides loading and environment overlay for filterlog
// runtime configuration. It exposes a Default() baseline, file loading (JSON
// or YAML by extension) and a FILTERLOG_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/filterlog.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: "/var/lib/filterlog", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
package config
