// Package grpcserver hosts the gRPC server for filterlog. It registers the
// standard grpc.health.v1 service and filterlog.v1.LogsService, delegating to
// the shared logs service.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := grpcserver.New(rt, logsvc.New(rt), nil)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
