// Package logstore implements filterlog's ordered log store: an append-only
// collection of firewall decision records served newest first through opaque
// cursors.
//
// # Overview
//
// Records are persisted in Pebble under keys ordered by (timestamp, id);
// scans walk backwards so callers see the stream in descending timestamp
// order. A Cursor names the last record consumed and a scan resumes strictly
// after it, so a stable cursor never repeats or skips records.
//
//	st := logstore.Open(db, logstore.Options{Compress: true})
//	recs, _ := st.Append(ctx, []logstore.Record{{Domain: "telemetry.example", SourceIP: "10.0.0.7"}})
//
//	page, _ := st.Scan(ctx, 11, nil)         // newest 11
//	c := page[9].Cursor()
//	more, _ := st.Scan(ctx, 11, &c)          // strictly after the 10th
//
//	tok := c.Encode()                        // opaque, URL safe
//	back, _ := logstore.DecodeCursor(tok)
//
// Scans can be narrowed to a device stream and a CEL filter (ScanWith, Bind).
// Filtered scans count matching records against the limit, so the pager's
// over-fetch by one still detects a following page.
//
// Retention is handled by TrimOlderThan, which deletes the oldest records in
// batches.
//
// Any backend fault surfaces as an error matching ErrStoreUnavailable.
package logstore
