package pager

import (
	"context"

	"github.com/rzbill/filterlog/internal/logstore"
)

// Window is the materialized current page plus what is needed to fetch the
// page that follows it.
type Window struct {
	Records []logstore.Record
	// HasNext is true iff the fetch returned more than the page size.
	HasNext bool
	// NextCursor points at the last displayed record when HasNext is set.
	NextCursor *logstore.Cursor
}

// BuildWindow splits the result of a pageSize+1 over-fetch into the
// displayed records and the lookahead. The lookahead record only signals that
// a following page exists; the next fetch resumes after the last displayed
// record, which is the second-to-last element of an overflowing fetch.
func BuildWindow(fetched []logstore.Record, pageSize int) Window {
	w := Window{HasNext: len(fetched) > pageSize}
	n := len(fetched)
	if n > pageSize {
		n = pageSize
	}
	w.Records = append(make([]logstore.Record, 0, n), fetched[:n]...)
	if w.HasNext && n > 0 {
		c := w.Records[n-1].Cursor()
		w.NextCursor = &c
	}
	return w
}

// FetchWindow performs one over-fetch against sc and builds the window. It is
// the stateless form of a page load.
func FetchWindow(ctx context.Context, sc logstore.Scanner, pageSize int, after *logstore.Cursor) (Window, error) {
	if pageSize <= 0 {
		return Window{}, ErrInvalidPageSize
	}
	fetched, err := sc.Scan(ctx, pageSize+1, after)
	if err != nil {
		return Window{}, err
	}
	return BuildWindow(fetched, pageSize), nil
}
