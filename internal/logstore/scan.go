package logstore

import (
	"context"

	"github.com/cockroachdb/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// ctxCheckEvery bounds how many entries are visited between context checks.
const ctxCheckEvery = 256

// Scan returns up to limit records strictly after `after`, newest first,
// across all devices.
func (s *Store) Scan(ctx context.Context, limit int, after *Cursor) ([]Record, error) {
	return s.ScanWith(ctx, ScanOptions{Limit: limit, After: after})
}

// ScanWith is Scan narrowed to a device stream and filter. With a filter,
// Limit counts matching records only.
func (s *Store) ScanWith(ctx context.Context, opts ScanOptions) ([]Record, error) {
	if opts.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := KeyEntryPrefix(opts.Device)
	upper := prefixEnd(prefix)
	if opts.After != nil {
		// Exclusive upper bound: everything strictly older than the cursor.
		upper = KeyEntry(opts.Device, *opts.After)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, Unavailable("scan", err)
	}
	defer iter.Close()

	out := make([]Record, 0, opts.Limit)
	visited := 0
	for ok := iter.Last(); ok && len(out) < opts.Limit; ok = iter.Prev() {
		visited++
		if visited%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		key := iter.Key()
		if len(key) != len(prefix)+cursorLen {
			continue
		}
		c := cursorFromBytes(key[len(prefix):])
		rec, ok := decodeRecord(c, iter.Value())
		if !ok {
			s.logger.Warn("skipping undecodable record", logpkg.Str("cursor", c.Encode()))
			continue
		}
		if !opts.Filter.Match(rec) {
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, Unavailable("scan", err)
	}
	return out, nil
}
