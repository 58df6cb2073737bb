// Package pgstore stores filter logs in PostgreSQL through lib/pq.
//
// Rows are ordered by (ts_ms DESC, id DESC) and read with keyset queries:
//
//	SELECT ... FROM filter_logs WHERE (ts_ms, id) < ($1, $2)
//	ORDER BY ts_ms DESC, id DESC LIMIT $3
//
// which gives the same strictly-after cursor semantics as the Pebble store.
package pgstore
