package grpcserver

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	filterlogv1 "github.com/rzbill/filterlog/api/filterlog/v1"
	cfgpkg "github.com/rzbill/filterlog/internal/config"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/runtime"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

const bufSize = 1 << 20

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
}

type fixture struct {
	rt   *runtime.Runtime
	svc  *logsvc.Service
	conn *grpc.ClientConn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfgpkg.Default(), Logger: logger})
	require.NoError(t, err)
	svc := logsvc.NewWithLogger(rt, logger)
	srv := New(rt, svc, logger)
	d := dialer(srv.grpc)
	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(d), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Close()
		_ = rt.Close()
	})
	return &fixture{rt: rt, svc: svc, conn: conn}
}

func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	recs := make([]logstore.Record, n)
	for i := range recs {
		recs[i] = logstore.Record{Timestamp: base.Add(time.Duration(i) * time.Second), Domain: fmt.Sprintf("d%02d.example.com", i)}
	}
	_, err := f.svc.Ingest(context.Background(), "", recs)
	require.NoError(t, err)
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHealthOverGRPC(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)
	c := healthpb.NewHealthClient(f.conn)

	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	res, err = c.Check(ctx, &healthpb.HealthCheckRequest{Service: filterlogv1.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	_, err = c.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	require.NoError(t, f.rt.DB().Close())
	res, err = c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())
}

func TestPageTraversalOverGRPC(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 25)
	ctx := testCtx(t)
	c := filterlogv1.NewLogsServiceClient(f.conn)

	var seen []string
	after := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5)
		in, err := filterlogv1.PageRequest{PageSize: 10, After: after}.ToStruct()
		require.NoError(t, err)
		out, err := c.Page(ctx, in)
		require.NoError(t, err)
		page, err := filterlogv1.PageResponseFrom(out)
		require.NoError(t, err)
		assert.Equal(t, 10, page.PageSize)
		for _, r := range page.Records {
			seen = append(seen, r.Domain)
		}
		if !page.HasNext {
			assert.Empty(t, page.NextCursor)
			break
		}
		after = page.NextCursor
	}
	require.Len(t, seen, 25)
	assert.Equal(t, "d24.example.com", seen[0])
	assert.Equal(t, "d00.example.com", seen[24])
}

func TestScanOverGRPC(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	ctx := testCtx(t)
	c := filterlogv1.NewLogsServiceClient(f.conn)

	in, err := filterlogv1.ScanRequest{Limit: 2}.ToStruct()
	require.NoError(t, err)
	out, err := c.Scan(ctx, in)
	require.NoError(t, err)
	page, err := filterlogv1.PageResponseFrom(out)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.False(t, page.Records[0].ID.IsZero())

	in, err = filterlogv1.ScanRequest{Limit: 2, After: page.Records[1].Cursor().Encode()}.ToStruct()
	require.NoError(t, err)
	out, err = c.Scan(ctx, in)
	require.NoError(t, err)
	page, err = filterlogv1.PageResponseFrom(out)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "d00.example.com", page.Records[0].Domain)
}

func TestIngestOverGRPC(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)
	c := filterlogv1.NewLogsServiceClient(f.conn)

	in, err := filterlogv1.IngestRequest{Device: "edge-1", Records: []logstore.Record{
		{Domain: "a.example.com", SourceIP: "10.0.0.2", Port: 53, Action: logstore.ActionBlocked},
		{Domain: "b.example.com"},
	}}.ToStruct()
	require.NoError(t, err)
	var header metadata.MD
	out, err := c.Ingest(metadata.AppendToOutgoingContext(ctx, RequestIDHeader, "rid-1"), in, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, float64(2), out.GetFields()["appended"].GetNumberValue())
	assert.Equal(t, []string{"rid-1"}, header.Get(RequestIDHeader))

	res, err := f.svc.Page(ctx, logsvc.PageRequest{Device: "edge-1"})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
}

func TestErrorCodesOverGRPC(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)
	c := filterlogv1.NewLogsServiceClient(f.conn)

	cases := []struct {
		name string
		req  filterlogv1.PageRequest
		code codes.Code
	}{
		{"page size", filterlogv1.PageRequest{PageSize: 15}, codes.InvalidArgument},
		{"cursor", filterlogv1.PageRequest{After: "%%%"}, codes.InvalidArgument},
		{"filter", filterlogv1.PageRequest{Filter: "port +"}, codes.InvalidArgument},
		{"device", filterlogv1.PageRequest{Device: "Bad Name"}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := tc.req.ToStruct()
			require.NoError(t, err)
			_, err = c.Page(ctx, in)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}

	require.NoError(t, f.rt.DB().Close())
	in, err := filterlogv1.PageRequest{}.ToStruct()
	require.NoError(t, err)
	_, err = c.Page(ctx, in)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
