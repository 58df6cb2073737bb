package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	filterlogv1 "github.com/rzbill/filterlog/api/filterlog/v1"
	"github.com/rzbill/filterlog/internal/runtime"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// RequestIDHeader is the metadata key carrying a caller-supplied request id.
const RequestIDHeader = "x-request-id"

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	logs   *logsvc.Service
	logger logpkg.Logger
	grpc   *grpc.Server
	lis    net.Listener
}

// New constructs a gRPC server and registers the health and logs services.
func New(rt *runtime.Runtime, svc *logsvc.Service, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = rt.Logger()
	}
	s := &Server{rt: rt, logs: svc, logger: logger.With(logpkg.Component("grpc"))}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.requestContext)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s.grpc, &healthSvc{rt: rt})
	filterlogv1.RegisterLogsServiceServer(s.grpc, &logsSvc{svc: svc})
	return s
}

// requestContext tags ctx with a request id and logs each call at debug.
func (s *Server) requestContext(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	rid := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 {
			rid = v[0]
		}
	}
	if rid == "" {
		rid = uuid.NewString()
	}
	ctx = logpkg.ContextWithRequestID(ctx, rid)
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, rid))

	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.WithContext(ctx).Debug("rpc",
		logpkg.Str("method", info.FullMethod),
		logpkg.Str("code", status.Code(err).String()),
		logpkg.Duration("elapsed", time.Since(start)),
	)
	return resp, err
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
