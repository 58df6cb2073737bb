package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	cfgpkg "github.com/rzbill/filterlog/internal/config"
	"github.com/rzbill/filterlog/internal/device"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/logstore/pgstore"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  logpkg.Logger
	// SlowOp is the latency above which storage operations are logged.
	// Zero disables the storage hook.
	SlowOp time.Duration
}

// Runtime wires storage, config, and facades for a single-node instance.
// Pebble always holds the device registry; logs live in Pebble or Postgres
// depending on store.driver.
type Runtime struct {
	db      *pebblestore.DB
	config  cfgpkg.Config
	logger  logpkg.Logger
	devices *device.Registry
	logs    logstore.Backend
	pg      *pgstore.Store
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	var metrics pebblestore.MetricsHook
	if opts.SlowOp > 0 {
		metrics = slowOpLogger{threshold: opts.SlowOp, logger: logger.WithComponent("storage")}
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, Metrics: metrics})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{db: db, config: opts.Config, logger: logger}

	rt.devices, err = device.NewRegistry(db, opts.Config)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	switch opts.Config.Store.Driver {
	case cfgpkg.DriverPostgres:
		pg, err := pgstore.Open(context.Background(), pgstore.Options{DSN: opts.Config.Store.DSN, Logger: logger})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		rt.pg = pg
		rt.logs = pg
	default:
		rt.logs = logstore.Open(db, logstore.Options{Compress: opts.Config.Store.Compress, Logger: logger})
	}
	logger.Info("runtime opened",
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("driver", opts.Config.Store.Driver))
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	var errs []error
	if r.pg != nil {
		errs = append(errs, r.pg.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil || r.db.Closed() {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	if _, err := r.logs.Stats(ctx, ""); err != nil {
		return err
	}
	return nil
}

// Devices returns the device registry.
func (r *Runtime) Devices() *device.Registry { return r.devices }

// Logs returns the configured ordered log store.
func (r *Runtime) Logs() logstore.Backend { return r.logs }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// slowOpLogger reports storage operations slower than threshold.
type slowOpLogger struct {
	threshold time.Duration
	logger    logpkg.Logger
}

func (s slowOpLogger) ObserveWrite(elapsed time.Duration, bytes int) {
	if elapsed >= s.threshold {
		s.logger.Warn("slow write", logpkg.Duration("elapsed", elapsed), logpkg.Int("bytes", bytes))
	}
}

func (s slowOpLogger) ObserveRead(elapsed time.Duration, bytes int) {
	if elapsed >= s.threshold {
		s.logger.Warn("slow read", logpkg.Duration("elapsed", elapsed), logpkg.Int("bytes", bytes))
	}
}

func (s slowOpLogger) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	if elapsed >= s.threshold {
		s.logger.Warn("slow batch commit",
			logpkg.Duration("elapsed", elapsed),
			logpkg.Int("ops", numOps),
			logpkg.Int("bytes", bytes))
	}
}
