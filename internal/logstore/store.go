package logstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	"github.com/rzbill/filterlog/pkg/id"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// Options configures a Pebble-backed Store.
type Options struct {
	// Compress stores record bodies zstd-compressed.
	Compress bool
	// Now supplies timestamps for records appended without one.
	Now    func() time.Time
	Logger logpkg.Logger
}

// Store is the Pebble implementation of Backend. Every record is written
// twice: once in the all-devices stream and once in its device stream.
type Store struct {
	db     *pebblestore.DB
	gen    *id.Generator
	opts   Options
	logger logpkg.Logger

	mu sync.Mutex // serializes metadata read-modify-write
}

var _ Backend = (*Store)(nil)

// Open returns a Store over db. The caller keeps ownership of db.
func Open(db *pebblestore.DB, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	now := opts.Now
	return &Store{
		db:     db,
		gen:    id.NewGeneratorWithClock(func() int64 { return now().UnixMilli() }),
		opts:   opts,
		logger: logger.With(logpkg.Component("logstore")),
	}
}

// Append writes recs as a single atomic batch, assigning ids and defaulting
// missing timestamps to now. It returns the stored records.
func (s *Store) Append(ctx context.Context, recs []Record) ([]Record, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(recs))
	deltas := map[string]int64{"": 0}
	var lastMs int64
	b := s.db.NewBatch()
	defer b.Close()
	for i, r := range recs {
		if r.Timestamp.IsZero() {
			r.Timestamp = s.opts.Now()
		}
		r.Timestamp = r.Timestamp.Truncate(time.Millisecond)
		if r.Timestamp.UnixMilli() < 0 {
			return nil, fmt.Errorf("record %d: timestamp before epoch", i)
		}
		r.ID = s.gen.Next()
		val, err := encodeRecord(r, s.opts.Compress)
		if err != nil {
			return nil, err
		}
		c := r.Cursor()
		if err := b.Set(KeyEntry("", c), val, nil); err != nil {
			return nil, Unavailable("append", err)
		}
		if r.Device != "" {
			if err := b.Set(KeyEntry(r.Device, c), val, nil); err != nil {
				return nil, Unavailable("append", err)
			}
			deltas[r.Device]++
		}
		deltas[""]++
		if ms := r.Timestamp.UnixMilli(); ms > lastMs {
			lastMs = ms
		}
		out[i] = r
	}
	for dev, d := range deltas {
		if err := s.bumpMeta(b, dev, d, lastMs); err != nil {
			return nil, err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, Unavailable("append", err)
	}
	s.logger.Debug("appended records", logpkg.Int("count", len(out)))
	return out, nil
}

// bumpMeta adjusts a stream's count by delta inside b. lastMs only moves forward.
func (s *Store) bumpMeta(b *pebble.Batch, device string, delta int64, lastMs int64) error {
	st, err := s.readMeta(device)
	if err != nil {
		return err
	}
	if delta < 0 && uint64(-delta) > st.Count {
		st.Count = 0
	} else {
		st.Count = uint64(int64(st.Count) + delta)
	}
	if lastMs > st.LastAppendMs {
		st.LastAppendMs = lastMs
	}
	var meta [16]byte
	binary.BigEndian.PutUint64(meta[:8], st.Count)
	binary.BigEndian.PutUint64(meta[8:], uint64(st.LastAppendMs))
	if err := b.Set(KeyMeta(device), meta[:], nil); err != nil {
		return Unavailable("meta", err)
	}
	return nil
}

func (s *Store) readMeta(device string) (Stats, error) {
	meta, err := s.db.Get(KeyMeta(device))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, Unavailable("meta", err)
	}
	if len(meta) < 16 {
		return Stats{}, nil
	}
	return Stats{
		Count:        binary.BigEndian.Uint64(meta[:8]),
		LastAppendMs: int64(binary.BigEndian.Uint64(meta[8:16])),
	}, nil
}

// Stats returns count and last append time of a stream ("" = all devices).
func (s *Store) Stats(ctx context.Context, device string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	return s.readMeta(device)
}
