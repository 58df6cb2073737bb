// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// snapshots, batches, metrics hooks and use-after-close protection.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	_ = db.Set([]byte("k2"), []byte("v2"))
//	v, _ := db.Get([]byte("k2"))
//
// Operations after Close return ErrClosed rather than panicking inside Pebble;
// the log store maps that to a store-unavailable error.
package pebblestore
