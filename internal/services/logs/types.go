package logsvc

import (
	"errors"

	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/pager"
)

var (
	// ErrViewNotFound is returned for unknown or evicted view ids.
	ErrViewNotFound = errors.New("view not found")
	// ErrInvalidRecord is returned when an ingested record fails validation.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrTooManyViews is returned when the open view cap is reached.
	ErrTooManyViews = errors.New("too many open views")
)

// PageRequest asks for one stateless window. After is an opaque cursor token
// from a previous PageResult; empty starts at the newest record.
type PageRequest struct {
	Device   string
	PageSize int
	After    string
	Filter   string
}

// PageResult is one window plus the token that continues it.
type PageResult struct {
	Records    []logstore.Record
	PageSize   int
	HasNext    bool
	NextCursor string
}

// ViewOptions configures a server-side pagination view.
type ViewOptions struct {
	Device   string
	Filter   string
	PageSize int
	Policy   pager.BackwardPolicy
}

// ViewState is the presentation snapshot of an open view.
type ViewState struct {
	ID     string
	Device string
	Filter string
	pager.Snapshot
}
