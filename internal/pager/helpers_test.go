package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/pkg/id"
)

// memScanner serves a fixed newest-first slice.
type memScanner struct {
	mu    sync.Mutex
	recs  []logstore.Record
	err   error
	calls []scanCall
}

type scanCall struct {
	limit int
	after *logstore.Cursor
}

var errBackend = errors.New("backend down")

func (m *memScanner) Scan(ctx context.Context, limit int, after *logstore.Cursor) ([]logstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, scanCall{limit: limit, after: after})
	if m.err != nil {
		return nil, logstore.Unavailable("scan", m.err)
	}
	start := 0
	if after != nil {
		for start < len(m.recs) && !after.Before(m.recs[start].Cursor()) {
			start++
		}
	}
	end := start + limit
	if end > len(m.recs) {
		end = len(m.recs)
	}
	return append([]logstore.Record(nil), m.recs[start:end]...), nil
}

func (m *memScanner) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *memScanner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// makeRecords returns r1..rN, r1 newest. Every third pair shares a
// timestamp so ordering also depends on the id tiebreak.
func makeRecords(n int) []logstore.Record {
	base := time.UnixMilli(1_700_000_000_000)
	out := make([]logstore.Record, 0, n)
	for i := 1; i <= n; i++ {
		ms := base.UnixMilli() - int64(i/3)*1000
		out = append(out, logstore.Record{
			ID:        id.New(ms, uint64(n-i)),
			Timestamp: time.UnixMilli(ms),
			Device:    "edge-1",
			Domain:    fmt.Sprintf("r%d.example.com", i),
			SourceIP:  "10.0.0.1",
			Action:    logstore.ActionBlocked,
		})
	}
	return out
}

func domains(recs []logstore.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Domain
	}
	return out
}

func names(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("r%d.example.com", i))
	}
	return out
}

// newTestController bypasses page-size validation so small windows can be
// exercised.
func newTestController(sc logstore.Scanner, pageSize int, opts ...Option) *Controller {
	c, err := NewController(sc, DefaultPageSize, opts...)
	if err != nil {
		panic(err)
	}
	c.state.PageSize = pageSize
	return c
}
