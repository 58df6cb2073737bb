package controllers

import (
	"time"

	"github.com/rzbill/filterlog/internal/logstore"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
)

// Common request/response types for HTTP controllers

// deviceCreateReq represents a request to register a device.
type deviceCreateReq struct {
	Name string `json:"name"`
}

// deviceJSON is a device in list responses.
type deviceJSON struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// recordJSON is a log record on the wire. Absent optional fields are omitted.
type recordJSON struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	TsMs      int64  `json:"ts_ms"`
	Device    string `json:"device,omitempty"`
	Domain    string `json:"domain,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
	Port      int    `json:"port,omitempty"`
	Action    string `json:"action,omitempty"`
}

// pageResp is a stateless page.
type pageResp struct {
	Records    []recordJSON `json:"records"`
	PageSize   int          `json:"page_size"`
	HasNext    bool         `json:"has_next"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// viewOpenReq opens a pagination view. Backward is "reset" (default) or "seek".
type viewOpenReq struct {
	Device   string `json:"device"`
	Filter   string `json:"filter"`
	PageSize int    `json:"page_size"`
	Backward string `json:"backward"`
}

type viewPageReq struct {
	Page int `json:"page"`
}

type viewPageSizeReq struct {
	PageSize int `json:"page_size"`
}

// viewJSON is the presentation snapshot of a view.
type viewJSON struct {
	ID               string       `json:"id"`
	Device           string       `json:"device,omitempty"`
	Filter           string       `json:"filter,omitempty"`
	Page             int          `json:"page"`
	PageSize         int          `json:"page_size"`
	ApproximateTotal int          `json:"approximate_total"`
	HasNext          bool         `json:"has_next"`
	HasPrevious      bool         `json:"has_previous"`
	Status           string       `json:"status"`
	Error            string       `json:"error,omitempty"`
	First            int          `json:"first"`
	Last             int          `json:"last"`
	Summary          string       `json:"summary"`
	Records          []recordJSON `json:"records"`
}

func toRecordJSON(r logstore.Record) recordJSON {
	return recordJSON{
		ID:        r.ID.String(),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		TsMs:      r.Timestamp.UnixMilli(),
		Device:    r.Device,
		Domain:    r.Domain,
		SourceIP:  r.SourceIP,
		Port:      r.Port,
		Action:    r.Action,
	}
}

func toRecordsJSON(recs []logstore.Record) []recordJSON {
	out := make([]recordJSON, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordJSON(r))
	}
	return out
}

func toViewJSON(st logsvc.ViewState) viewJSON {
	first, last := st.Range()
	v := viewJSON{
		ID:               st.ID,
		Device:           st.Device,
		Filter:           st.Filter,
		Page:             st.Page,
		PageSize:         st.PageSize,
		ApproximateTotal: st.ApproximateTotal,
		HasNext:          st.HasNext,
		HasPrevious:      st.HasPrevious,
		Status:           st.Status.String(),
		First:            first,
		Last:             last,
		Summary:          st.Summary(),
		Records:          toRecordsJSON(st.Records),
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}
