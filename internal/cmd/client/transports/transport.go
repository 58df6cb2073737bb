// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	filterlogv1 "github.com/rzbill/filterlog/api/filterlog/v1"
	"github.com/rzbill/filterlog/internal/logstore"
)

// LogsTransport abstracts the transport used by the CLI (gRPC today).
type LogsTransport interface {
	Scan(ctx context.Context, req filterlogv1.ScanRequest) ([]logstore.Record, error)
	Page(ctx context.Context, req filterlogv1.PageRequest) (filterlogv1.PageResponse, error)
	Ingest(ctx context.Context, device string, recs []logstore.Record) (appended int, err error)
}

// Scanner adapts a LogsTransport to logstore.Scanner so a local
// pager.Controller can page a remote store.
type Scanner struct {
	Transport LogsTransport
	Device    string
	Filter    string
}

func (s Scanner) Scan(ctx context.Context, limit int, after *logstore.Cursor) ([]logstore.Record, error) {
	req := filterlogv1.ScanRequest{Device: s.Device, Filter: s.Filter, Limit: limit}
	if after != nil {
		req.After = after.Encode()
	}
	return s.Transport.Scan(ctx, req)
}
