package pager

import (
	"github.com/rzbill/filterlog/internal/logstore"
)

// Status is the lifecycle phase of a pager.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BackwardPolicy selects what a request for an earlier page does.
type BackwardPolicy int

const (
	// BackwardReset returns to page 1 regardless of the requested page.
	BackwardReset BackwardPolicy = iota
	// BackwardSeek refetches the requested page from a per-page cursor stack,
	// falling back to BackwardReset when the page was never visited.
	BackwardSeek
)

// State is the pagination state of one view. Transition functions take and
// return it by value; a Controller owns exactly one.
type State struct {
	PageSize int
	Page     int
	// ActiveCursor is the cursor used for the most recent successful fetch,
	// nil for page 1.
	ActiveCursor *logstore.Cursor
	// ApproximateTotal is a lower bound computed from page-1 fetches only.
	ApproximateTotal int
	Window           Window
	Status           Status
	Err              error

	// history maps a visited page to the cursor it was fetched with.
	history map[int]*logstore.Cursor
}

// NewState returns the idle state for a view showing pageSize records.
func NewState(pageSize int) (State, error) {
	if !ValidPageSize(pageSize) {
		return State{}, ErrInvalidPageSize
	}
	return State{PageSize: pageSize, Page: 1, Status: StatusIdle}, nil
}

// Fetch is the store call a transition needs. Scan is issued with
// PageSize+1 records after After.
type Fetch struct {
	PageSize int
	Page     int
	After    *logstore.Cursor
}

// PlanFirstPage plans a fetch of page 1 from a cleared cursor at the current
// size.
func PlanFirstPage(s State) Fetch {
	return Fetch{PageSize: s.PageSize, Page: 1}
}

// PlanPageSize plans the page-1 fetch that follows a page-size change.
func PlanPageSize(s State, n int) (Fetch, error) {
	if !ValidPageSize(n) {
		return Fetch{}, ErrInvalidPageSize
	}
	return Fetch{PageSize: n, Page: 1}, nil
}

// PlanGoTo plans the fetch for a navigation request. ok is false when the
// request is a no-op.
//
//   - requested < Page: reset to page 1 (BackwardReset), or refetch the
//     requested page from history (BackwardSeek).
//   - requested > Page with a next page: fetch after Window.NextCursor and
//     land on requested.
//   - otherwise no-op, except that a view which never loaded or whose last
//     fetch failed retries its current page.
func PlanGoTo(s State, requested int, policy BackwardPolicy) (Fetch, bool) {
	switch {
	case requested < s.Page:
		if policy == BackwardSeek && requested > 1 {
			if after, ok := s.history[requested]; ok {
				return Fetch{PageSize: s.PageSize, Page: requested, After: after}, true
			}
		}
		return PlanFirstPage(s), true
	case requested > s.Page && s.Window.HasNext:
		return Fetch{PageSize: s.PageSize, Page: requested, After: s.Window.NextCursor}, true
	case requested == s.Page && (s.Status == StatusIdle || s.Status == StatusFailed):
		return Fetch{PageSize: s.PageSize, Page: s.Page, After: s.ActiveCursor}, true
	default:
		return Fetch{}, false
	}
}

// Begin marks s as loading.
func Begin(s State) State {
	s.Status = StatusLoading
	return s
}

// Apply commits a successful fetch.
func Apply(s State, f Fetch, fetched []logstore.Record) State {
	w := BuildWindow(fetched, f.PageSize)

	history := make(map[int]*logstore.Cursor, len(s.history)+1)
	if f.PageSize == s.PageSize {
		for k, v := range s.history {
			history[k] = v
		}
	}
	history[f.Page] = f.After

	s.PageSize = f.PageSize
	s.Page = f.Page
	s.ActiveCursor = f.After
	s.Window = w
	s.Status = StatusLoaded
	s.Err = nil
	s.history = history
	if f.Page == 1 && f.After == nil {
		s.ApproximateTotal = len(w.Records)
		if w.HasNext {
			s.ApproximateTotal++
		}
	}
	return s
}

// Fail records a failed fetch. Page size, page number, cursor and the last
// good window are kept so any navigation can retry.
func Fail(s State, err error) State {
	s.Status = StatusFailed
	s.Err = err
	return s
}
