package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	cfgpkg "github.com/rzbill/filterlog/internal/config"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
)

var (
	ErrInvalidName  = errors.New("device: invalid name")
	ErrNotAllowed   = errors.New("device: not in allowed list")
	ErrNotFound     = errors.New("device: not found")
	ErrLimitReached = errors.New("device: limit reached")
)

// Meta describes a filter device that reports logs.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

var (
	metaPrefix = []byte("devmeta/")
	metaEnd    = []byte("devmeta0") // '0' follows '/'
)

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

// Registry tracks known devices in Pebble and applies the naming and
// admission rules from config.
type Registry struct {
	db         *pebblestore.DB
	nameRe     *regexp.Regexp
	defaultDev string
	autoCreate bool
	allowed    map[string]struct{}
	max        int
	now        func() time.Time

	mu sync.Mutex // serializes create so the limit holds
}

// NewRegistry builds a registry over db.
func NewRegistry(db *pebblestore.DB, cfg cfgpkg.Config) (*Registry, error) {
	re, err := regexp.Compile("^(?:" + cfg.DeviceNameRegex + ")$")
	if err != nil {
		return nil, fmt.Errorf("device name regex: %w", err)
	}
	r := &Registry{
		db:         db,
		nameRe:     re,
		defaultDev: cfg.DefaultDeviceName,
		autoCreate: cfg.AllowAutoCreateDevices,
		max:        cfg.MaxDevices,
		now:        time.Now,
	}
	if len(cfg.AllowedDevices) > 0 {
		r.allowed = make(map[string]struct{}, len(cfg.AllowedDevices))
		for _, d := range cfg.AllowedDevices {
			r.allowed[d] = struct{}{}
		}
	}
	return r, nil
}

// Resolve maps an empty name to the default device.
func (r *Registry) Resolve(name string) string {
	if name == "" {
		return r.defaultDev
	}
	return name
}

// Validate checks name against the naming and allow-list rules.
func (r *Registry) Validate(name string) error {
	if !r.nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if r.allowed != nil {
		if _, ok := r.allowed[name]; !ok {
			return fmt.Errorf("%w: %q", ErrNotAllowed, name)
		}
	}
	return nil
}

// Get returns the stored meta for name.
func (r *Registry) Get(name string) (Meta, error) {
	b, err := r.db.Get(metaKey(name))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Meta{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("device %q: corrupt meta: %w", name, err)
	}
	return m, nil
}

// Ensure returns the device, creating it when auto-create is enabled.
// Idempotent.
func (r *Registry) Ensure(name string) (Meta, error) {
	if err := r.Validate(name); err != nil {
		return Meta{}, err
	}
	if m, err := r.Get(name); err == nil {
		return m, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Meta{}, err
	}
	if !r.autoCreate {
		return Meta{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.create(name)
}

// Create registers name regardless of auto-create. Existing devices are
// returned unchanged.
func (r *Registry) Create(name string) (Meta, error) {
	if err := r.Validate(name); err != nil {
		return Meta{}, err
	}
	return r.create(name)
}

func (r *Registry) create(name string) (Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, err := r.Get(name); err == nil {
		return m, nil
	}
	if r.max > 0 {
		list, err := r.List()
		if err != nil {
			return Meta{}, err
		}
		if len(list) >= r.max {
			return Meta{}, ErrLimitReached
		}
	}
	m := Meta{Name: name, CreatedAtMs: r.now().UnixMilli()}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := r.db.Set(metaKey(name), b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns every registered device sorted by name.
func (r *Registry) List() ([]Meta, error) {
	it, err := r.db.NewIter(&pebble.IterOptions{LowerBound: metaPrefix, UpperBound: metaEnd})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Meta
	for ok := it.First(); ok; ok = it.Next() {
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
