package transports

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	filterlogv1 "github.com/rzbill/filterlog/api/filterlog/v1"
	"github.com/rzbill/filterlog/internal/logstore"
)

// GrpcTransport implements LogsTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli *filterlogv1.LogsServiceClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return logstore.Unavailable("dial", err)
	}
	defer func() { _ = conn.Close() }()
	return fromStatus(fn(filterlogv1.NewLogsServiceClient(conn)))
}

// fromStatus restores the store-unavailable classification so a local pager
// reports a remote outage the same way as a local one.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return logstore.Unavailable("rpc", fmt.Errorf("%s", st.Message()))
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	}
	return fmt.Errorf("%s: %s", st.Code(), st.Message())
}

// Scan fetches up to req.Limit records after req.After.
func (t *GrpcTransport) Scan(ctx context.Context, req filterlogv1.ScanRequest) ([]logstore.Record, error) {
	var recs []logstore.Record
	err := t.withClient(ctx, func(cli *filterlogv1.LogsServiceClient) error {
		in, err := req.ToStruct()
		if err != nil {
			return err
		}
		out, err := cli.Scan(ctx, in)
		if err != nil {
			return err
		}
		resp, err := filterlogv1.PageResponseFrom(out)
		if err != nil {
			return err
		}
		recs = resp.Records
		return nil
	})
	return recs, err
}

// Page fetches one server-computed window.
func (t *GrpcTransport) Page(ctx context.Context, req filterlogv1.PageRequest) (filterlogv1.PageResponse, error) {
	var resp filterlogv1.PageResponse
	err := t.withClient(ctx, func(cli *filterlogv1.LogsServiceClient) error {
		in, err := req.ToStruct()
		if err != nil {
			return err
		}
		out, err := cli.Page(ctx, in)
		if err != nil {
			return err
		}
		resp, err = filterlogv1.PageResponseFrom(out)
		return err
	})
	return resp, err
}

// Ingest appends recs, attributing records without a device to device.
func (t *GrpcTransport) Ingest(ctx context.Context, device string, recs []logstore.Record) (int, error) {
	var n int
	err := t.withClient(ctx, func(cli *filterlogv1.LogsServiceClient) error {
		in, err := filterlogv1.IngestRequest{Device: device, Records: recs}.ToStruct()
		if err != nil {
			return err
		}
		out, err := cli.Ingest(ctx, in)
		if err != nil {
			return err
		}
		n = int(out.GetFields()["appended"].GetNumberValue())
		return nil
	})
	return n, err
}
