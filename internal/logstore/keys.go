package logstore

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
//   - log/all/m                          (stream metadata: count, last append ms)
//   - log/all/e/{ts_be8}{id16}           (every record)
//   - log/dev/{device}/m                 (per-device metadata)
//   - log/dev/{device}/e/{ts_be8}{id16}  (records of one device)
//
// Entries sort ascending by (ts, id); scans walk them backwards to serve the
// newest-first order. Device names never contain '/'.

var (
	allPrefix  = []byte("log/all")
	devPrefix  = []byte("log/dev/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func streamPrefix(device string) []byte {
	if device == "" {
		return append([]byte(nil), allPrefix...)
	}
	k := make([]byte, 0, len(devPrefix)+len(device))
	k = append(k, devPrefix...)
	k = append(k, device...)
	return k
}

// KeyMeta builds the metadata key for a device stream ("" = all devices).
func KeyMeta(device string) []byte {
	return append(streamPrefix(device), metaSuffix...)
}

// KeyEntryPrefix is the common prefix of every entry in a stream.
func KeyEntryPrefix(device string) []byte {
	return append(streamPrefix(device), entrySeg...)
}

// KeyEntry builds the entry key for the record at c.
func KeyEntry(device string, c Cursor) []byte {
	return append(KeyEntryPrefix(device), c.bytes()...)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
