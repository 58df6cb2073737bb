package filterlogv1

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/pkg/id"
)

// ScanRequest: {"device", "filter", "limit", "after"}.
type ScanRequest struct {
	Device string
	Filter string
	Limit  int
	After  string
}

// PageRequest: {"device", "filter", "page_size", "after"}.
type PageRequest struct {
	Device   string
	Filter   string
	PageSize int
	After    string
}

// PageResponse: {"records", "page_size", "has_next", "next_cursor"}. Scan
// responses carry only "records".
type PageResponse struct {
	Records    []logstore.Record
	PageSize   int
	HasNext    bool
	NextCursor string
}

// IngestRequest: {"device", "records"}.
type IngestRequest struct {
	Device  string
	Records []logstore.Record
}

func (r ScanRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"device": r.Device,
		"filter": r.Filter,
		"limit":  r.Limit,
		"after":  r.After,
	})
}

func ScanRequestFrom(s *structpb.Struct) ScanRequest {
	return ScanRequest{
		Device: str(s, "device"),
		Filter: str(s, "filter"),
		Limit:  num(s, "limit"),
		After:  str(s, "after"),
	}
}

func (r PageRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"device":    r.Device,
		"filter":    r.Filter,
		"page_size": r.PageSize,
		"after":     r.After,
	})
}

func PageRequestFrom(s *structpb.Struct) PageRequest {
	return PageRequest{
		Device:   str(s, "device"),
		Filter:   str(s, "filter"),
		PageSize: num(s, "page_size"),
		After:    str(s, "after"),
	}
}

func (r PageResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"records":     recordsToList(r.Records),
		"page_size":   r.PageSize,
		"has_next":    r.HasNext,
		"next_cursor": r.NextCursor,
	})
}

func PageResponseFrom(s *structpb.Struct) (PageResponse, error) {
	recs, err := recordsFrom(s)
	if err != nil {
		return PageResponse{}, err
	}
	return PageResponse{
		Records:    recs,
		PageSize:   num(s, "page_size"),
		HasNext:    s.GetFields()["has_next"].GetBoolValue(),
		NextCursor: str(s, "next_cursor"),
	}, nil
}

func (r IngestRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"device":  r.Device,
		"records": recordsToList(r.Records),
	})
}

func IngestRequestFrom(s *structpb.Struct) (IngestRequest, error) {
	recs, err := recordsFrom(s)
	if err != nil {
		return IngestRequest{}, err
	}
	return IngestRequest{Device: str(s, "device"), Records: recs}, nil
}

func recordsToList(recs []logstore.Record) []any {
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		m := map[string]any{
			"device":    r.Device,
			"domain":    r.Domain,
			"source_ip": r.SourceIP,
			"port":      r.Port,
			"action":    r.Action,
		}
		if !r.ID.IsZero() {
			m["id"] = r.ID.String()
		}
		if !r.Timestamp.IsZero() {
			m["ts_ms"] = r.Timestamp.UnixMilli()
		}
		out = append(out, m)
	}
	return out
}

func recordsFrom(s *structpb.Struct) ([]logstore.Record, error) {
	vals := s.GetFields()["records"].GetListValue().GetValues()
	out := make([]logstore.Record, 0, len(vals))
	for i, v := range vals {
		m := v.GetStructValue()
		if m == nil {
			return nil, fmt.Errorf("records[%d]: not an object", i)
		}
		r := logstore.Record{
			Device:   str(m, "device"),
			Domain:   str(m, "domain"),
			SourceIP: str(m, "source_ip"),
			Port:     num(m, "port"),
			Action:   str(m, "action"),
		}
		if raw := str(m, "id"); raw != "" {
			rid, err := id.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("records[%d]: %w", i, err)
			}
			r.ID = rid
		}
		if f, ok := m.GetFields()["ts_ms"]; ok {
			r.Timestamp = time.UnixMilli(int64(f.GetNumberValue()))
		}
		out = append(out, r)
	}
	return out, nil
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func num(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}
