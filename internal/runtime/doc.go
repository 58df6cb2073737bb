// Package runtime wires storage, config, and facades into a single-node
// filterlog instance. It exposes Open/Close, a health check, the device
// registry and the configured ordered log store.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	_, _ = rt.Devices().Ensure("edge-1")
//	_, _ = rt.Logs().Append(context.Background(), []logstore.Record{{Device: "edge-1", Domain: "ads.example.com"}})
package runtime
