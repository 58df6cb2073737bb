// Package client provides the `filterlog logs` command-line client.
//
// The CLI talks to the filterlog gRPC endpoint. Paging runs locally: a
// pager.Controller scans the remote store through the Scan RPC, so the CLI
// shows exactly what an embedded view would.
//
// # Address configuration
//
// The gRPC address is read from the FILTERLOG_GRPC environment variable
// (default 127.0.0.1:50051).
//
// Usage
//
//	filterlog logs ingest --device edge-1 --domain ads.example.com --source-ip 192.168.1.20 --action blocked
//	filterlog logs ingest --file decisions.json
//	cat decisions.json | filterlog logs ingest --file -
//
//	filterlog logs page --page-size 20 --page 3
//	filterlog logs page --device edge-1 --filter 'action == "blocked"'
//
//	filterlog logs browse --page-size 10 --backward seek
//
// Notes
//
//   - page walks forward from the newest record; pages are positional, so
//     records appended meanwhile shift later pages.
//   - browse reads commands from stdin: n, p, g N, s N, f, r, q. With
//     --backward reset (the default) p and g to an earlier page return to
//     page 1.
package client
