// Package log provides filterlog's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by the standard library's
// slog through a bridge handler that feeds our formatter/outputs pipeline, so
// every component logs the same way whether it talks to the facade or to a
// *slog.Logger.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("pager"), log.Str("device", "gw-01"))
//	l.Info("page fetched", log.Int("page", 2), log.Int("records", 20))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: text or JSON
// formatting, console/file/null outputs, key redaction and per-message
// sampling.
//
// # Interop
//
// ToStdLogger and RedirectStdLog adapt the facade for code that writes to the
// standard library logger (Pebble, net/http).
package log
