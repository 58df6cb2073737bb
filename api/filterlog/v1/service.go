package filterlogv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "filterlog.v1.LogsService"

	ScanMethod   = "/filterlog.v1.LogsService/Scan"
	PageMethod   = "/filterlog.v1.LogsService/Page"
	IngestMethod = "/filterlog.v1.LogsService/Ingest"
)

// LogsServiceServer is implemented by the server side of LogsService. All
// messages are structpb.Struct; see messages.go for their fields.
type LogsServiceServer interface {
	Scan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Page(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ingest(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterLogsServiceServer registers srv on s.
func RegisterLogsServiceServer(s grpc.ServiceRegistrar, srv LogsServiceServer) {
	s.RegisterService(&LogsServiceDesc, srv)
}

// LogsServiceDesc describes LogsService for grpc.
var LogsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LogsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Scan", Handler: unaryHandler(ScanMethod, LogsServiceServer.Scan)},
		{MethodName: "Page", Handler: unaryHandler(PageMethod, LogsServiceServer.Page)},
		{MethodName: "Ingest", Handler: unaryHandler(IngestMethod, LogsServiceServer.Ingest)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "filterlog/v1/logs.proto",
}

type unaryMethod func(LogsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, m unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(LogsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(LogsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LogsServiceClient calls LogsService.
type LogsServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLogsServiceClient returns a client over cc.
func NewLogsServiceClient(cc grpc.ClientConnInterface) *LogsServiceClient {
	return &LogsServiceClient{cc: cc}
}

func (c *LogsServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LogsServiceClient) Scan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ScanMethod, in, opts...)
}

func (c *LogsServiceClient) Page(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PageMethod, in, opts...)
}

func (c *LogsServiceClient) Ingest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, IngestMethod, in, opts...)
}
