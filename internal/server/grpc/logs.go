package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	filterlogv1 "github.com/rzbill/filterlog/api/filterlog/v1"
	"github.com/rzbill/filterlog/internal/device"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/pager"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
)

type logsSvc struct {
	svc *logsvc.Service
}

func (s *logsSvc) Scan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := filterlogv1.ScanRequestFrom(in)
	recs, err := s.svc.Scan(ctx, req.Device, req.Filter, req.Limit, req.After)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(filterlogv1.PageResponse{Records: recs}.ToStruct())
}

func (s *logsSvc) Page(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := filterlogv1.PageRequestFrom(in)
	res, err := s.svc.Page(ctx, logsvc.PageRequest{
		Device:   req.Device,
		PageSize: req.PageSize,
		After:    req.After,
		Filter:   req.Filter,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(filterlogv1.PageResponse{
		Records:    res.Records,
		PageSize:   res.PageSize,
		HasNext:    res.HasNext,
		NextCursor: res.NextCursor,
	}.ToStruct())
}

func (s *logsSvc) Ingest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := filterlogv1.IngestRequestFrom(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := s.svc.Ingest(ctx, req.Device, req.Records)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(structpb.NewStruct(map[string]any{"appended": len(out)}))
}

func encode(s *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

// toStatus maps service errors onto gRPC codes, mirroring the HTTP mapping.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, pager.ErrInvalidPageSize),
		errors.Is(err, logstore.ErrInvalidCursor),
		errors.Is(err, logstore.ErrInvalidFilter),
		errors.Is(err, logstore.ErrInvalidLimit),
		errors.Is(err, logsvc.ErrInvalidRecord),
		errors.Is(err, device.ErrInvalidName):
		code = codes.InvalidArgument
	case errors.Is(err, device.ErrNotAllowed):
		code = codes.PermissionDenied
	case errors.Is(err, device.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, device.ErrLimitReached):
		code = codes.ResourceExhausted
	case errors.Is(err, logstore.ErrStoreUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
