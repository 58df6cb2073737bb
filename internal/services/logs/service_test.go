package logsvc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/filterlog/internal/config"
	"github.com/rzbill/filterlog/internal/device"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/pager"
	"github.com/rzbill/filterlog/internal/runtime"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

func newService(t *testing.T, mutate func(*cfgpkg.Config)) (*Service, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return NewWithLogger(rt, logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))), rt
}

func seed(t *testing.T, s *Service, dev string, n int) []logstore.Record {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	recs := make([]logstore.Record, n)
	for i := range recs {
		recs[i] = logstore.Record{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Domain:    fmt.Sprintf("host%03d.example.com", i),
			SourceIP:  "192.168.1.20",
			Action:    logstore.ActionBlocked,
		}
	}
	out, err := s.Ingest(context.Background(), dev, recs)
	require.NoError(t, err)
	return out
}

func TestIngestAttributesDevice(t *testing.T) {
	s, _ := newService(t, nil)
	out, err := s.Ingest(context.Background(), "", []logstore.Record{
		{Domain: "a.example.com"},
		{Domain: "b.example.com", Device: "hub"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "default", out[0].Device)
	assert.Equal(t, "hub", out[1].Device)
	assert.False(t, out[0].ID.IsZero())

	devs, err := s.Devices()
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "default", devs[0].Name)
	assert.Equal(t, "hub", devs[1].Name)
}

func TestIngestValidation(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()
	cases := []logstore.Record{
		{Port: 70000},
		{Port: -1},
		{Action: "dropped"},
		{SourceIP: "not-an-ip"},
	}
	for _, r := range cases {
		_, err := s.Ingest(ctx, "edge-1", []logstore.Record{r})
		assert.ErrorIs(t, err, ErrInvalidRecord, "%+v", r)
	}
	_, err := s.Ingest(ctx, "Bad Name", []logstore.Record{{Domain: "x"}})
	assert.ErrorIs(t, err, device.ErrInvalidName)

	recs, err := s.rt.Logs().Scan(ctx, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, recs, "rejected batches must not be partially written")
}

func TestIngestWithoutAutoCreate(t *testing.T) {
	s, rt := newService(t, func(c *cfgpkg.Config) { c.AllowAutoCreateDevices = false })
	_, err := s.Ingest(context.Background(), "edge-1", []logstore.Record{{Domain: "x"}})
	assert.ErrorIs(t, err, device.ErrNotFound)

	_, err = rt.Devices().Create("edge-1")
	require.NoError(t, err)
	_, err = s.Ingest(context.Background(), "edge-1", []logstore.Record{{Domain: "x"}})
	assert.NoError(t, err)
}

func TestPageTraversal(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "edge-1", 25)
	ctx := context.Background()

	var sizes []int
	var seen []string
	tok := ""
	for {
		res, err := s.Page(ctx, PageRequest{After: tok})
		require.NoError(t, err)
		assert.Equal(t, 10, res.PageSize)
		sizes = append(sizes, len(res.Records))
		for _, r := range res.Records {
			seen = append(seen, r.Domain)
		}
		if !res.HasNext {
			assert.Empty(t, res.NextCursor)
			break
		}
		tok = res.NextCursor
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	require.Len(t, seen, 25)
	assert.Equal(t, "host024.example.com", seen[0])
	assert.Equal(t, "host000.example.com", seen[24])
}

func TestPageErrors(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()

	_, err := s.Page(ctx, PageRequest{PageSize: 15})
	assert.ErrorIs(t, err, pager.ErrInvalidPageSize)

	_, err = s.Page(ctx, PageRequest{After: "%%%"})
	assert.ErrorIs(t, err, logstore.ErrInvalidCursor)

	_, err = s.Page(ctx, PageRequest{Filter: "port +"})
	assert.ErrorIs(t, err, logstore.ErrInvalidFilter)

	_, err = s.Page(ctx, PageRequest{Device: "no/slash"})
	assert.ErrorIs(t, err, device.ErrInvalidName)
}

func TestPageByDeviceAndFilter(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "edge-1", 12)
	seed(t, s, "edge-2", 3)
	ctx := context.Background()

	res, err := s.Page(ctx, PageRequest{Device: "edge-2", PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.False(t, res.HasNext)

	res, err = s.Page(ctx, PageRequest{Filter: `device == "edge-1" && domain.endsWith("1.example.com")`})
	require.NoError(t, err)
	// host001 and host011
	assert.Len(t, res.Records, 2)
}

func TestViewLifecycle(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "edge-1", 35)
	ctx := context.Background()

	st, err := s.OpenView(ctx, ViewOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, st.ID)
	assert.Equal(t, 1, st.Page)
	assert.Len(t, st.Records, 10)
	assert.Equal(t, 11, st.ApproximateTotal)

	st, err = s.GoToPage(ctx, st.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, "host024.example.com", st.Records[0].Domain)

	st, err = s.GoToPage(ctx, st.ID, 3)
	require.NoError(t, err)
	st, err = s.GoToPage(ctx, st.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Page, "backward resets")

	st, err = s.SetPageSize(ctx, st.ID, 50)
	require.NoError(t, err)
	assert.Len(t, st.Records, 35)
	assert.False(t, st.HasNext)

	_, err = s.SetPageSize(ctx, st.ID, 12)
	assert.ErrorIs(t, err, pager.ErrInvalidPageSize)

	got, err := s.View(st.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.PageSize)

	require.NoError(t, s.CloseView(st.ID))
	_, err = s.View(st.ID)
	assert.ErrorIs(t, err, ErrViewNotFound)
	assert.ErrorIs(t, s.CloseView(st.ID), ErrViewNotFound)
}

func TestViewsAreIndependent(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "edge-1", 30)
	ctx := context.Background()

	a, err := s.OpenView(ctx, ViewOptions{PageSize: 10})
	require.NoError(t, err)
	b, err := s.OpenView(ctx, ViewOptions{PageSize: 20, Policy: pager.BackwardSeek})
	require.NoError(t, err)

	_, err = s.GoToPage(ctx, a.ID, 2)
	require.NoError(t, err)
	_, err = s.GoToPage(ctx, a.ID, 3)
	require.NoError(t, err)

	gotB, err := s.View(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotB.Page)
	assert.Equal(t, 20, gotB.PageSize)

	gotA, err := s.View(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, gotA.Page)
	assert.Len(t, s.ViewIDs(), 2)
}

func TestRefreshPicksUpNewRecords(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "edge-1", 3)
	ctx := context.Background()
	st, err := s.OpenView(ctx, ViewOptions{})
	require.NoError(t, err)
	assert.Len(t, st.Records, 3)

	_, err = s.Ingest(ctx, "edge-1", []logstore.Record{{Domain: "fresh.example.com"}})
	require.NoError(t, err)

	st, err = s.Refresh(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, st.Records, 4)
	assert.Equal(t, "fresh.example.com", st.Records[0].Domain)
}

func TestIdleEvictionAndCap(t *testing.T) {
	s, _ := newService(t, func(c *cfgpkg.Config) {
		c.Views.IdleTimeout = cfgpkg.Duration(time.Minute)
		c.Views.MaxViews = 2
	})
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	a, err := s.OpenView(ctx, ViewOptions{})
	require.NoError(t, err)
	_, err = s.OpenView(ctx, ViewOptions{})
	require.NoError(t, err)
	_, err = s.OpenView(ctx, ViewOptions{})
	assert.ErrorIs(t, err, ErrTooManyViews)

	now = now.Add(30 * time.Second)
	_, err = s.View(a.ID)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, s.EvictIdle())
	_, err = s.View(a.ID)
	assert.NoError(t, err)

	_, err = s.OpenView(ctx, ViewOptions{})
	assert.NoError(t, err)
}

func TestOpenViewFailureDiscardsView(t *testing.T) {
	s, rt := newService(t, nil)
	require.NoError(t, rt.DB().Close())
	_, err := s.OpenView(context.Background(), ViewOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, logstore.ErrStoreUnavailable)
	assert.Empty(t, s.ViewIDs())
}

func TestTrim(t *testing.T) {
	s, _ := newService(t, func(c *cfgpkg.Config) {
		c.Retention.MaxAge = cfgpkg.Duration(24 * time.Hour)
		c.Retention.BatchSize = 3
	})
	ctx := context.Background()
	now := time.Now()
	_, err := s.Ingest(ctx, "edge-1", []logstore.Record{
		{Timestamp: now.Add(-72 * time.Hour), Domain: "old1"},
		{Timestamp: now.Add(-48 * time.Hour), Domain: "old2"},
		{Timestamp: now.Add(-25 * time.Hour), Domain: "old3"},
		{Timestamp: now.Add(-30 * time.Hour), Domain: "old4"},
		{Timestamp: now.Add(-time.Hour), Domain: "new"},
	})
	require.NoError(t, err)

	n, err := s.Trim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	res, err := s.Page(ctx, PageRequest{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "new", res.Records[0].Domain)
}

func TestTrimDisabled(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "edge-1", 2)
	n, err := s.Trim(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	s, _ := newService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunJanitor(ctx, 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestScanFollowsCursor(t *testing.T) {
	s, _ := newService(t, nil)
	seed(t, s, "", 7)
	ctx := context.Background()

	first, err := s.Scan(ctx, "", "", 4, "")
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, "host006.example.com", first[0].Domain)

	rest, err := s.Scan(ctx, "", "", 4, first[3].Cursor().Encode())
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, "host002.example.com", rest[0].Domain)

	_, err = s.Scan(ctx, "", "", 0, "")
	assert.ErrorIs(t, err, logstore.ErrInvalidLimit)
	_, err = s.Scan(ctx, "", "", MaxScanLimit+1, "")
	assert.ErrorIs(t, err, logstore.ErrInvalidLimit)
	_, err = s.Scan(ctx, "", "", 5, "!!")
	assert.ErrorIs(t, err, logstore.ErrInvalidCursor)
}
