package logstore

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"github.com/rzbill/filterlog/pkg/id"
)

var (
	// ErrStoreUnavailable wraps any backend fault during a scan or append.
	ErrStoreUnavailable = errors.New("log store unavailable")
	// ErrInvalidCursor is returned when a cursor token cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrInvalidLimit is returned for non-positive scan limits.
	ErrInvalidLimit = errors.New("scan limit must be positive")
	// ErrInvalidFilter is returned when a filter expression fails to compile.
	ErrInvalidFilter = errors.New("invalid filter expression")
)

// Action values recorded by the filter for a decision.
const (
	ActionBlocked = "blocked"
	ActionAllowed = "allowed"
)

// Record is a single firewall decision. Records are immutable once appended.
// Empty optional fields mean "absent".
type Record struct {
	ID        id.ID     `json:"-"`
	Timestamp time.Time `json:"-"`
	Device    string    `json:"device,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	SourceIP  string    `json:"source_ip,omitempty"`
	Port      int       `json:"port,omitempty"`
	Action    string    `json:"action,omitempty"`
}

// Cursor returns the position of r in the stream.
func (r Record) Cursor() Cursor {
	return Cursor{TsMs: r.Timestamp.UnixMilli(), ID: r.ID}
}

// Cursor identifies the last consumed record. Scans resume strictly after it
// in (timestamp desc, id desc) order. A nil *Cursor means start of stream.
type Cursor struct {
	TsMs int64
	ID   id.ID
}

const cursorLen = 8 + len(id.ID{})

// bytes is the big-endian (ts, id) form; it doubles as the entry key suffix.
func (c Cursor) bytes() []byte {
	b := make([]byte, cursorLen)
	binary.BigEndian.PutUint64(b[:8], uint64(c.TsMs))
	copy(b[8:], c.ID[:])
	return b
}

// Encode returns an opaque URL-safe token.
func (c Cursor) Encode() string {
	return base64.RawURLEncoding.EncodeToString(c.bytes())
}

// Before reports whether c sorts before other in scan order, i.e. c is newer.
func (c Cursor) Before(other Cursor) bool {
	if c.TsMs != other.TsMs {
		return c.TsMs > other.TsMs
	}
	return c.ID.Compare(other.ID) > 0
}

// DecodeCursor parses a token produced by Encode. The empty token decodes to
// nil, meaning start of stream.
func DecodeCursor(tok string) (*Cursor, error) {
	if tok == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(b) != cursorLen {
		return nil, ErrInvalidCursor
	}
	return cursorFromBytes(b), nil
}

func cursorFromBytes(b []byte) *Cursor {
	c := &Cursor{TsMs: int64(binary.BigEndian.Uint64(b[:8]))}
	copy(c.ID[:], b[8:cursorLen])
	return c
}

// Scanner is the ordered-store contract the pager consumes: up to limit
// records strictly after `after`, newest first.
type Scanner interface {
	Scan(ctx context.Context, limit int, after *Cursor) ([]Record, error)
}

// ScanOptions narrows a scan to one device and/or a compiled filter.
type ScanOptions struct {
	Limit  int
	After  *Cursor
	Device string
	Filter Filter
}

// Stats summarizes a stream. Count is informational; pagination never relies
// on it.
type Stats struct {
	Count        uint64
	LastAppendMs int64
}

// Backend is implemented by every ordered log store (Pebble, Postgres).
type Backend interface {
	Scanner
	Append(ctx context.Context, recs []Record) ([]Record, error)
	ScanWith(ctx context.Context, opts ScanOptions) ([]Record, error)
	TrimOlderThan(ctx context.Context, cutoff time.Time, batchLimit int) (int, error)
	Stats(ctx context.Context, device string) (Stats, error)
}

// Query binds a backend to a device and filter, yielding a Scanner.
type Query struct {
	Device string
	Filter string
}

type boundScanner struct {
	b      Backend
	device string
	filter Filter
}

func (s boundScanner) Scan(ctx context.Context, limit int, after *Cursor) ([]Record, error) {
	return s.b.ScanWith(ctx, ScanOptions{Limit: limit, After: after, Device: s.device, Filter: s.filter})
}

// Bind compiles q.Filter once and returns a Scanner over b.
func Bind(b Backend, q Query) (Scanner, error) {
	f, err := CompileFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	if q.Device == "" && !f.Enabled() {
		return b, nil
	}
	return boundScanner{b: b, device: q.Device, filter: f}, nil
}

// Unavailable wraps err as ErrStoreUnavailable, leaving context errors and
// already-classified errors alone.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &storeError{op: op, err: err}
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return "logstore: " + e.op + ": " + e.err.Error() }

func (e *storeError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *storeError) Unwrap() error { return e.err }
