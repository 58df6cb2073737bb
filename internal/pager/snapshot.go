package pager

import (
	"fmt"
	"time"

	"github.com/rzbill/filterlog/internal/logstore"
)

// NotAvailable is rendered for absent optional fields.
const NotAvailable = "N/A"

// Snapshot is a read-only view of a Controller for rendering.
type Snapshot struct {
	Records          []logstore.Record
	Page             int
	PageSize         int
	ApproximateTotal int
	HasNext          bool
	HasPrevious      bool
	// NextCursor resumes after the last displayed record; nil without a next
	// page.
	NextCursor *logstore.Cursor
	Status     Status
	Err        error
}

func snapshotOf(s State) Snapshot {
	snap := Snapshot{
		Page:             s.Page,
		PageSize:         s.PageSize,
		ApproximateTotal: s.ApproximateTotal,
		HasNext:          s.Window.HasNext,
		HasPrevious:      s.Page > 1,
		NextCursor:       s.Window.NextCursor,
		Status:           s.Status,
		Err:              s.Err,
	}
	// A failed view shows the error in place of the table.
	if s.Status != StatusFailed {
		snap.Records = append([]logstore.Record(nil), s.Window.Records...)
	}
	return snap
}

// Loading reports whether a fetch is in flight.
func (s Snapshot) Loading() bool { return s.Status == StatusLoading }

// Range returns the 1-based positions of the first and last displayed record
// assuming every earlier page was full. Both are 0 when nothing is displayed.
func (s Snapshot) Range() (first, last int) {
	if len(s.Records) == 0 {
		return 0, 0
	}
	first = (s.Page-1)*s.PageSize + 1
	return first, first + len(s.Records) - 1
}

// Summary renders the "Showing X to Y of ~N logs" line. N is never shown below
// Y since the approximate total only counts what page 1 saw.
func (s Snapshot) Summary() string {
	first, last := s.Range()
	if last == 0 {
		return "No logs"
	}
	total := s.ApproximateTotal
	if total < last {
		total = last
	}
	return fmt.Sprintf("Showing %d to %d of ~%d logs", first, last, total)
}

// DisplayValue returns v, or NotAvailable when v is empty.
func DisplayValue(v string) string {
	if v == "" {
		return NotAvailable
	}
	return v
}

// Row is a record formatted for a table.
type Row struct {
	Timestamp string
	Domain    string
	SourceIP  string
	Device    string
	Action    string
}

// FormatRow renders r in loc. Absent fields become NotAvailable.
func FormatRow(r logstore.Record, loc *time.Location) Row {
	ts := NotAvailable
	if !r.Timestamp.IsZero() {
		if loc == nil {
			loc = time.Local
		}
		ts = r.Timestamp.In(loc).Format("2006-01-02 15:04:05")
	}
	return Row{
		Timestamp: ts,
		Domain:    DisplayValue(r.Domain),
		SourceIP:  DisplayValue(r.SourceIP),
		Device:    DisplayValue(r.Device),
		Action:    DisplayValue(r.Action),
	}
}
