package device

import (
	"testing"

	cfgpkg "github.com/rzbill/filterlog/internal/config"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRegistry(t *testing.T, cfg cfgpkg.Config) *Registry {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	r, err := NewRegistry(db, cfg)
	require.NoError(t, err)
	return r
}

func TestEnsureIdempotent(t *testing.T) {
	r := openRegistry(t, cfgpkg.Default())
	m1, err := r.Ensure("default")
	require.NoError(t, err)
	m2, err := r.Ensure("default")
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestEnsureRejectsBadNames(t *testing.T) {
	r := openRegistry(t, cfgpkg.Default())
	for _, name := range []string{"", "Upper", "has/slash", "white space"} {
		_, err := r.Ensure(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestAutoCreateDisabled(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.AllowAutoCreateDevices = false
	r := openRegistry(t, cfg)
	_, err := r.Ensure("edge-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Create("edge-1")
	require.NoError(t, err)
	_, err = r.Ensure("edge-1")
	assert.NoError(t, err)
}

func TestAllowListAndLimit(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.AllowedDevices = []string{"edge-1", "edge-2", "edge-3"}
	cfg.MaxDevices = 2
	r := openRegistry(t, cfg)

	_, err := r.Ensure("edge-9")
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = r.Ensure("edge-1")
	require.NoError(t, err)
	_, err = r.Ensure("edge-2")
	require.NoError(t, err)
	_, err = r.Ensure("edge-3")
	assert.ErrorIs(t, err, ErrLimitReached)
}

func TestListSorted(t *testing.T) {
	r := openRegistry(t, cfgpkg.Default())
	for _, n := range []string{"kitchen-cam", "alpha", "hub"} {
		_, err := r.Ensure(n)
		require.NoError(t, err)
	}
	list, err := r.List()
	require.NoError(t, err)
	var names []string
	for _, m := range list {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"alpha", "hub", "kitchen-cam"}, names)
}

func TestResolve(t *testing.T) {
	r := openRegistry(t, cfgpkg.Default())
	assert.Equal(t, "default", r.Resolve(""))
	assert.Equal(t, "hub", r.Resolve("hub"))
}
