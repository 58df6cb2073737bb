package logsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/filterlog/internal/device"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/pager"
	"github.com/rzbill/filterlog/internal/runtime"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// Service exposes log ingest and pagination on top of the runtime's store.
//
// Two read paths exist. Page is stateless: the caller carries the cursor
// token. Views are server-side sessions, each owning a pager.Controller, so
// several operators can page independently; idle views are evicted.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	now    func() time.Time

	idleTimeout time.Duration
	maxViews    int

	mu    sync.Mutex
	views map[string]*view
}

type view struct {
	id       string
	device   string
	filter   string
	ctrl     *pager.Controller
	lastUsed time.Time // guarded by Service.mu
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger returns a Service using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	cfg := rt.Config()
	return &Service{
		rt:          rt,
		logger:      logger.With(logpkg.Component("logs")),
		now:         time.Now,
		idleTimeout: cfg.Views.IdleTimeout.Std(),
		maxViews:    cfg.Views.MaxViews,
		views:       map[string]*view{},
	}
}

// Ingest validates recs and appends them. Records without a device are
// attributed to dev, or to the default device when dev is empty.
func (s *Service) Ingest(ctx context.Context, dev string, recs []logstore.Record) ([]logstore.Record, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	reg := s.rt.Devices()
	dev = reg.Resolve(dev)
	ensured := map[string]bool{}
	batch := make([]logstore.Record, len(recs))
	for i, r := range recs {
		if r.Device == "" {
			r.Device = dev
		}
		if err := validateRecord(r); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		if !ensured[r.Device] {
			if _, err := reg.Ensure(r.Device); err != nil {
				return nil, err
			}
			ensured[r.Device] = true
		}
		batch[i] = r
	}
	out, err := s.rt.Logs().Append(ctx, batch)
	if err != nil {
		s.logger.WithContext(ctx).Error("append failed", logpkg.Int("count", len(batch)), logpkg.Err(err))
		return nil, err
	}
	return out, nil
}

func validateRecord(r logstore.Record) error {
	if r.Port < 0 || r.Port > 65535 {
		return fmt.Errorf("port %d out of range", r.Port)
	}
	switch r.Action {
	case "", logstore.ActionBlocked, logstore.ActionAllowed:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if r.SourceIP != "" && net.ParseIP(r.SourceIP) == nil {
		return fmt.Errorf("source ip %q is not an address", r.SourceIP)
	}
	return nil
}

// Devices lists registered devices.
func (s *Service) Devices() ([]device.Meta, error) {
	return s.rt.Devices().List()
}

func (s *Service) pageSize(n int) (int, error) {
	if n == 0 {
		n = s.rt.Config().Paging.DefaultPageSize
	}
	if !pager.ValidPageSize(n) {
		return 0, pager.ErrInvalidPageSize
	}
	return n, nil
}

func (s *Service) scanner(dev, filter string) (logstore.Scanner, error) {
	if dev != "" {
		if err := s.rt.Devices().Validate(dev); err != nil {
			return nil, err
		}
	}
	return logstore.Bind(s.rt.Logs(), logstore.Query{Device: dev, Filter: filter})
}

// Page loads one window without server-side state.
func (s *Service) Page(ctx context.Context, req PageRequest) (PageResult, error) {
	size, err := s.pageSize(req.PageSize)
	if err != nil {
		return PageResult{}, err
	}
	after, err := logstore.DecodeCursor(req.After)
	if err != nil {
		return PageResult{}, err
	}
	sc, err := s.scanner(req.Device, req.Filter)
	if err != nil {
		return PageResult{}, err
	}
	w, err := pager.FetchWindow(ctx, sc, size, after)
	if err != nil {
		return PageResult{}, err
	}
	res := PageResult{Records: w.Records, PageSize: size, HasNext: w.HasNext}
	if w.NextCursor != nil {
		res.NextCursor = w.NextCursor.Encode()
	}
	return res, nil
}

// MaxScanLimit bounds a raw Scan so remote pagers cannot pull the whole store
// in one call.
const MaxScanLimit = 1000

// Scan returns up to limit records strictly older than the after token. It is
// the remote form of logstore.Scanner; callers run their own pager on top.
func (s *Service) Scan(ctx context.Context, dev, filter string, limit int, after string) ([]logstore.Record, error) {
	if limit <= 0 || limit > MaxScanLimit {
		return nil, logstore.ErrInvalidLimit
	}
	cur, err := logstore.DecodeCursor(after)
	if err != nil {
		return nil, err
	}
	sc, err := s.scanner(dev, filter)
	if err != nil {
		return nil, err
	}
	return sc.Scan(ctx, limit, cur)
}

// OpenView creates a view and loads its first page. A view whose first load
// fails is discarded.
func (s *Service) OpenView(ctx context.Context, opts ViewOptions) (ViewState, error) {
	size, err := s.pageSize(opts.PageSize)
	if err != nil {
		return ViewState{}, err
	}
	sc, err := s.scanner(opts.Device, opts.Filter)
	if err != nil {
		return ViewState{}, err
	}
	v := &view{id: uuid.NewString(), device: opts.Device, filter: opts.Filter}
	v.ctrl, err = pager.NewController(sc, size,
		pager.WithBackwardPolicy(opts.Policy),
		pager.WithLogger(s.logger.With(logpkg.Str(logpkg.ViewIDKey, v.id))))
	if err != nil {
		return ViewState{}, err
	}

	s.mu.Lock()
	s.evictIdleLocked(s.now())
	if s.maxViews > 0 && len(s.views) >= s.maxViews {
		s.mu.Unlock()
		return ViewState{}, ErrTooManyViews
	}
	v.lastUsed = s.now()
	s.views[v.id] = v
	s.mu.Unlock()

	snap, err := v.ctrl.FetchFirstPage(ctx)
	if err != nil {
		s.remove(v.id)
		return ViewState{}, err
	}
	s.logger.WithContext(ctx).Info("view opened",
		logpkg.Str(logpkg.ViewIDKey, v.id),
		logpkg.Str(logpkg.DeviceKey, v.device),
		logpkg.Int("page_size", size))
	return v.state(snap), nil
}

func (v *view) state(snap pager.Snapshot) ViewState {
	return ViewState{ID: v.id, Device: v.device, Filter: v.filter, Snapshot: snap}
}

func (s *Service) lookup(id string) (*view, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	v.lastUsed = s.now()
	return v, nil
}

func (s *Service) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.views[id]
	delete(s.views, id)
	return ok
}

// View returns the current snapshot of a view without fetching.
func (s *Service) View(id string) (ViewState, error) {
	v, err := s.lookup(id)
	if err != nil {
		return ViewState{}, err
	}
	return v.state(v.ctrl.Snapshot()), nil
}

// GoToPage navigates a view. Earlier pages reset to page 1 unless the view
// was opened with pager.BackwardSeek.
func (s *Service) GoToPage(ctx context.Context, id string, page int) (ViewState, error) {
	v, err := s.lookup(id)
	if err != nil {
		return ViewState{}, err
	}
	snap, err := v.ctrl.GoToPage(ctx, page)
	return v.state(snap), err
}

// SetPageSize changes a view's page size and reloads page 1.
func (s *Service) SetPageSize(ctx context.Context, id string, n int) (ViewState, error) {
	v, err := s.lookup(id)
	if err != nil {
		return ViewState{}, err
	}
	snap, err := v.ctrl.SetPageSize(ctx, n)
	return v.state(snap), err
}

// Refresh reloads page 1 of a view, picking up newly ingested records.
func (s *Service) Refresh(ctx context.Context, id string) (ViewState, error) {
	v, err := s.lookup(id)
	if err != nil {
		return ViewState{}, err
	}
	snap, err := v.ctrl.FetchFirstPage(ctx)
	return v.state(snap), err
}

// CloseView discards a view.
func (s *Service) CloseView(id string) error {
	if !s.remove(id) {
		return ErrViewNotFound
	}
	return nil
}

// ViewIDs lists open views, sorted.
func (s *Service) ViewIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EvictIdle drops views unused for longer than the idle timeout.
func (s *Service) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictIdleLocked(s.now())
}

func (s *Service) evictIdleLocked(now time.Time) int {
	if s.idleTimeout <= 0 {
		return 0
	}
	n := 0
	for id, v := range s.views {
		if now.Sub(v.lastUsed) > s.idleTimeout {
			delete(s.views, id)
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("evicted idle views", logpkg.Int("count", n))
	}
	return n
}

// Trim deletes records older than the retention window. It is a no-op when
// retention is disabled.
func (s *Service) Trim(ctx context.Context) (int, error) {
	ret := s.rt.Config().Retention
	if ret.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-ret.MaxAge.Std())
	n, err := s.rt.Logs().TrimOlderThan(ctx, cutoff, ret.BatchSize)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.Info("trimmed old records", logpkg.Int("count", n), logpkg.Str("cutoff", cutoff.UTC().Format(time.RFC3339)))
	}
	return n, nil
}

// RunJanitor trims and evicts every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.Trim(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("retention trim failed", logpkg.Err(err))
			}
			s.EvictIdle()
		}
	}
}
