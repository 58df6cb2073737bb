package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/pkg/id"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// DefaultTable holds the records.
const DefaultTable = "filter_logs"

// filterBatch is how many rows a filtered scan pulls per round trip.
const filterBatch = 256

// Options configures a Postgres-backed Store.
type Options struct {
	DSN   string
	Table string
	// Now supplies timestamps for records appended without one.
	Now    func() time.Time
	Logger logpkg.Logger
}

// Store is the Postgres implementation of logstore.Backend. Rows are keyed by
// (ts_ms, id) and read with keyset queries in descending order.
type Store struct {
	db     *sql.DB
	table  string
	gen    *id.Generator
	now    func() time.Time
	logger logpkg.Logger

	mu sync.Mutex // orders id assignment with inserts
}

var _ logstore.Backend = (*Store)(nil)

// Open connects with lib/pq and creates the table if needed.
func Open(ctx context.Context, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	s := New(db, opts)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. The caller keeps ownership of db unless Close
// is called.
func New(db *sql.DB, opts Options) *Store {
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
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
		table:  opts.Table,
		gen:    id.NewGeneratorWithClock(func() int64 { return now().UnixMilli() }),
		now:    now,
		logger: logger.With(logpkg.Component("pgstore")),
	}
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the table and device index.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return logstore.Unavailable("migrate", err)
		}
	}
	return nil
}

func schema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts_ms     BIGINT NOT NULL,
	id        BYTEA  NOT NULL,
	device    TEXT   NOT NULL DEFAULT '',
	domain    TEXT,
	source_ip TEXT,
	port      INTEGER,
	action    TEXT,
	PRIMARY KEY (ts_ms, id)
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_device_idx ON %s (device, ts_ms DESC, id DESC)`, table, table),
	}
}

// Append inserts recs in one transaction, assigning ids and defaulting
// missing timestamps to now.
func (s *Store) Append(ctx context.Context, recs []logstore.Record) ([]logstore.Record, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, logstore.Unavailable("append", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (ts_ms, id, device, domain, source_ip, port, action) VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table))
	if err != nil {
		return nil, logstore.Unavailable("append", err)
	}
	defer stmt.Close()

	out := make([]logstore.Record, len(recs))
	for i, r := range recs {
		if r.Timestamp.IsZero() {
			r.Timestamp = s.now()
		}
		r.Timestamp = r.Timestamp.Truncate(time.Millisecond)
		if r.Timestamp.UnixMilli() < 0 {
			return nil, fmt.Errorf("record %d: timestamp before epoch", i)
		}
		r.ID = s.gen.Next()
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp.UnixMilli(), r.ID[:], r.Device,
			nullString(r.Domain), nullString(r.SourceIP), nullInt(r.Port), nullString(r.Action),
		); err != nil {
			return nil, logstore.Unavailable("append", err)
		}
		out[i] = r
	}
	if err := tx.Commit(); err != nil {
		return nil, logstore.Unavailable("append", err)
	}
	s.logger.Debug("appended records", logpkg.Int("count", len(out)))
	return out, nil
}

// Scan returns up to limit records strictly after `after`, newest first.
func (s *Store) Scan(ctx context.Context, limit int, after *logstore.Cursor) ([]logstore.Record, error) {
	return s.ScanWith(ctx, logstore.ScanOptions{Limit: limit, After: after})
}

// ScanWith narrows the scan to a device and filter. Filters are evaluated in
// process, so a filtered scan keeps paging through rows until Limit matches
// are found or the table is exhausted.
func (s *Store) ScanWith(ctx context.Context, opts logstore.ScanOptions) ([]logstore.Record, error) {
	if opts.Limit <= 0 {
		return nil, logstore.ErrInvalidLimit
	}
	if !opts.Filter.Enabled() {
		return s.page(ctx, opts.Device, opts.After, opts.Limit)
	}
	out := make([]logstore.Record, 0, opts.Limit)
	after := opts.After
	for len(out) < opts.Limit {
		batch, err := s.page(ctx, opts.Device, after, filterBatch)
		if err != nil {
			return nil, err
		}
		for _, r := range batch {
			if opts.Filter.Match(r) {
				out = append(out, r)
				if len(out) == opts.Limit {
					break
				}
			}
		}
		if len(batch) < filterBatch {
			break
		}
		c := batch[len(batch)-1].Cursor()
		after = &c
	}
	return out, nil
}

func (s *Store) page(ctx context.Context, device string, after *logstore.Cursor, limit int) ([]logstore.Record, error) {
	q, args := scanQuery(s.table, device, after, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, logstore.Unavailable("scan", err)
	}
	defer rows.Close()

	out := make([]logstore.Record, 0, limit)
	for rows.Next() {
		var (
			tsMs                     int64
			rawID                    []byte
			dev                      string
			domain, sourceIP, action sql.NullString
			port                     sql.NullInt64
		)
		if err := rows.Scan(&tsMs, &rawID, &dev, &domain, &sourceIP, &port, &action); err != nil {
			return nil, logstore.Unavailable("scan", err)
		}
		rid, err := id.FromBytes(rawID)
		if err != nil {
			s.logger.Warn("skipping row with malformed id", logpkg.Int64("ts_ms", tsMs))
			continue
		}
		out = append(out, logstore.Record{
			ID:        rid,
			Timestamp: time.UnixMilli(tsMs),
			Device:    dev,
			Domain:    domain.String,
			SourceIP:  sourceIP.String,
			Port:      int(port.Int64),
			Action:    action.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, logstore.Unavailable("scan", err)
	}
	return out, nil
}

// scanQuery builds the keyset query for one page.
func scanQuery(table, device string, after *logstore.Cursor, limit int) (string, []any) {
	var (
		where []string
		args  []any
	)
	if device != "" {
		args = append(args, device)
		where = append(where, fmt.Sprintf("device = $%d", len(args)))
	}
	if after != nil {
		args = append(args, after.TsMs, after.ID[:])
		where = append(where, fmt.Sprintf("(ts_ms, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT ts_ms, id, device, domain, source_ip, port, action FROM %s", table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY ts_ms DESC, id DESC LIMIT $%d", len(args))
	return b.String(), args
}

// TrimOlderThan deletes records older than cutoff in batches of batchLimit.
func (s *Store) TrimOlderThan(ctx context.Context, cutoff time.Time, batchLimit int) (int, error) {
	if batchLimit <= 0 {
		batchLimit = 1000
	}
	q := fmt.Sprintf(`DELETE FROM %[1]s WHERE (ts_ms, id) IN (
	SELECT ts_ms, id FROM %[1]s WHERE ts_ms < $1 ORDER BY ts_ms LIMIT $2)`, s.table)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := s.db.ExecContext(ctx, q, cutoff.UnixMilli(), batchLimit)
		if err != nil {
			return total, logstore.Unavailable("trim", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, logstore.Unavailable("trim", err)
		}
		total += int(n)
		if int(n) < batchLimit {
			return total, nil
		}
	}
}

// Stats counts rows of a device ("" = all devices).
func (s *Store) Stats(ctx context.Context, device string) (logstore.Stats, error) {
	q := fmt.Sprintf(`SELECT count(*), COALESCE(max(ts_ms), 0) FROM %s`, s.table)
	var args []any
	if device != "" {
		q += " WHERE device = $1"
		args = append(args, device)
	}
	var (
		count  int64
		lastMs int64
	)
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&count, &lastMs); err != nil {
		return logstore.Stats{}, logstore.Unavailable("stats", err)
	}
	return logstore.Stats{Count: uint64(count), LastAppendMs: lastMs}, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
