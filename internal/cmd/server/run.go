package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/filterlog/internal/config"
	"github.com/rzbill/filterlog/internal/runtime"
	grpcserver "github.com/rzbill/filterlog/internal/server/grpc"
	httpserver "github.com/rzbill/filterlog/internal/server/http"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = os.Getenv

type Options struct {
	DataDir  string
	GRPCAddr string
	HTTPAddr string
	Fsync    pebblestore.FsyncMode
	// SlowOp logs storage operations slower than this; zero disables.
	SlowOp time.Duration
	Config cfgpkg.Config
	// Logger overrides the process logger built from FILTERLOG_LOG_*.
	Logger logpkg.Logger
}

// processLogger builds the logger from FILTERLOG_LOG_LEVEL and
// FILTERLOG_LOG_FORMAT; defaults are info and text.
func processLogger() (logpkg.Logger, *logpkg.Config) {
	cfg := &logpkg.Config{
		Level:  getenvDefault("FILTERLOG_LOG_LEVEL", "info"),
		Format: getenvDefault("FILTERLOG_LOG_FORMAT", "text"),
	}
	l, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if parsed, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = parsed
		}
		l = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	return l, cfg
}

// Run starts the gRPC and HTTP servers plus the retention janitor, and blocks
// until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger := opts.Logger
	if procLogger == nil {
		var lcfg *logpkg.Config
		procLogger, lcfg = processLogger()
		// Pebble logs through the stdlib logger.
		logpkg.RedirectStdLog(procLogger)
		procLogger.Info("starting filterlog server",
			logpkg.Str("grpc", opts.GRPCAddr),
			logpkg.Str("http", opts.HTTPAddr),
			logpkg.Str("driver", opts.Config.Store.Driver),
			logpkg.Str("level", lcfg.Level),
			logpkg.Str("format", lcfg.Format),
		)
	}

	rt, err := runtime.Open(runtime.Options{
		DataDir: filepath.Join(opts.DataDir, "store"),
		Fsync:   opts.Fsync,
		Config:  opts.Config,
		Logger:  procLogger,
		SlowOp:  opts.SlowOp,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := logsvc.NewWithLogger(rt, procLogger)
	gsrv := grpcserver.New(rt, svc, procLogger)
	hsrv := httpserver.New(rt, svc, procLogger)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return gsrv.ListenAndServe(gctx, opts.GRPCAddr) })
	g.Go(func() error { return hsrv.ListenAndServe(gctx, opts.HTTPAddr) })
	g.Go(func() error { return svc.RunJanitor(gctx, opts.Config.Retention.Interval.Std()) })

	// Both servers stop on gctx before the deferred runtime Close.
	if err := g.Wait(); err != nil && sctx.Err() == nil {
		procLogger.Error("server stopped", logpkg.Err(err))
		return err
	}
	procLogger.Info("filterlog server stopped")
	return nil
}
