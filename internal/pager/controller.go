package pager

import (
	"context"
	"fmt"
	"sync"

	"github.com/rzbill/filterlog/internal/logstore"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// Option configures a Controller.
type Option func(*Controller)

// WithBackwardPolicy selects what requests for earlier pages do. The default
// is BackwardReset.
func WithBackwardPolicy(p BackwardPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger sets the controller's logger.
func WithLogger(l logpkg.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller drives one paginated view over a Scanner. All methods are safe
// for concurrent use. A fetch in flight does not block other calls; the most
// recently issued fetch wins and older results are discarded with
// ErrSuperseded.
type Controller struct {
	scanner logstore.Scanner
	policy  BackwardPolicy
	logger  logpkg.Logger

	mu    sync.Mutex
	state State
	seq   uint64 // id of the most recently issued fetch
}

// NewController returns an idle controller showing pageSize records per page.
// Nothing is fetched until FetchFirstPage or another navigation call.
func NewController(sc logstore.Scanner, pageSize int, opts ...Option) (*Controller, error) {
	st, err := NewState(pageSize)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		scanner: sc,
		state:   st,
		logger:  logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{})),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(logpkg.Component("pager"))
	return c, nil
}

// FetchFirstPage loads page 1 at the current size from the start of the
// stream and recomputes the approximate total.
func (c *Controller) FetchFirstPage(ctx context.Context) (Snapshot, error) {
	return c.run(ctx, func(s State) (Fetch, bool, error) {
		return PlanFirstPage(s), true, nil
	})
}

// SetPageSize switches to n records per page and reloads page 1. Sizes outside
// AllowedPageSizes are rejected with ErrInvalidPageSize and change nothing.
func (c *Controller) SetPageSize(ctx context.Context, n int) (Snapshot, error) {
	return c.run(ctx, func(s State) (Fetch, bool, error) {
		f, err := PlanPageSize(s, n)
		return f, err == nil, err
	})
}

// GoToPage navigates to page requested. With the default policy any earlier
// page resets to page 1; a later page is reachable only when the current
// window has a next page and loads the records that follow it.
func (c *Controller) GoToPage(ctx context.Context, requested int) (Snapshot, error) {
	return c.run(ctx, func(s State) (Fetch, bool, error) {
		f, ok := PlanGoTo(s, requested, c.policy)
		return f, ok, nil
	})
}

// Next moves one page forward.
func (c *Controller) Next(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	p := c.state.Page
	c.mu.Unlock()
	return c.GoToPage(ctx, p+1)
}

// Previous moves one page back.
func (c *Controller) Previous(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	p := c.state.Page
	c.mu.Unlock()
	return c.GoToPage(ctx, p-1)
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotOf(c.state)
}

// State returns a copy of the raw pagination state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type planFunc func(State) (Fetch, bool, error)

func (c *Controller) run(ctx context.Context, plan planFunc) (Snapshot, error) {
	c.mu.Lock()
	f, ok, err := plan(c.state)
	if err != nil || !ok {
		snap := snapshotOf(c.state)
		c.mu.Unlock()
		return snap, err
	}
	c.seq++
	seq := c.seq
	c.state = Begin(c.state)
	c.mu.Unlock()

	fetched, err := c.scanner.Scan(ctx, f.PageSize+1, f.After)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("discarding stale fetch", logpkg.Int("page", f.Page), logpkg.Uint64("seq", seq))
		return snapshotOf(c.state), ErrSuperseded
	}
	if err != nil {
		c.logger.Warn("page fetch failed", logpkg.Int("page", f.Page), logpkg.Int("page_size", f.PageSize), logpkg.Err(err))
		c.state = Fail(c.state, err)
		return snapshotOf(c.state), fmt.Errorf("fetch page %d: %w", f.Page, err)
	}
	c.state = Apply(c.state, f, fetched)
	c.logger.Debug("page loaded",
		logpkg.Int("page", f.Page),
		logpkg.Int("page_size", f.PageSize),
		logpkg.Int("records", len(c.state.Window.Records)),
		logpkg.Bool("has_next", c.state.Window.HasNext))
	return snapshotOf(c.state), nil
}
