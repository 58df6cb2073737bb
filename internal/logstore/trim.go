package logstore

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// TrimOlderThan deletes records with timestamp < cutoff from every stream,
// oldest first, committing in batches of up to batchLimit records. It returns
// the number of records deleted.
func (s *Store) TrimOlderThan(ctx context.Context, cutoff time.Time, batchLimit int) (int, error) {
	if batchLimit <= 0 {
		batchLimit = 1024
	}
	prefix := KeyEntryPrefix("")
	upper := KeyEntry("", Cursor{TsMs: cutoff.UnixMilli()})
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return 0, Unavailable("trim", err)
	}
	defer iter.Close()

	deleted := 0
	ok := iter.First()
	for ok {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		n, next, err := s.trimBatch(ctx, iter, prefix, batchLimit)
		deleted += n
		if err != nil {
			return deleted, err
		}
		ok = next
	}
	if err := iter.Error(); err != nil {
		return deleted, Unavailable("trim", err)
	}
	if deleted > 0 {
		s.logger.Info("trimmed records", logpkg.Int("deleted", deleted), logpkg.Int64("cutoff_ms", cutoff.UnixMilli()))
	}
	return deleted, nil
}

// trimBatch deletes up to limit entries starting at the iterator position and
// reports whether the iterator still points at a candidate.
func (s *Store) trimBatch(ctx context.Context, iter *pebble.Iterator, prefix []byte, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	deltas := map[string]int64{}
	n := 0
	ok := true
	for ; ok && n < limit; ok = iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+cursorLen {
			continue
		}
		c := cursorFromBytes(key[len(prefix):])
		if err := b.Delete(key, nil); err != nil {
			return 0, false, Unavailable("trim", err)
		}
		if rec, decoded := decodeRecord(c, iter.Value()); decoded && rec.Device != "" {
			if err := b.Delete(KeyEntry(rec.Device, *c), nil); err != nil {
				return 0, false, Unavailable("trim", err)
			}
			deltas[rec.Device]--
		}
		deltas[""]--
		n++
	}
	if n == 0 {
		return 0, ok, nil
	}
	for dev, d := range deltas {
		if err := s.bumpMeta(b, dev, d, 0); err != nil {
			return 0, false, err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, false, Unavailable("trim", err)
	}
	return n, ok, nil
}
