package logstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

// ErrEmptyIngest is returned for an ingest body without records.
var ErrEmptyIngest = errors.New("no records in request")

// ParseIngest decodes an ingest body: a single record object, an array of
// them, or an envelope {"device": ..., "records": [...]}. It returns the
// envelope device, if any.
func ParseIngest(p *fastjson.Parser, body []byte) (string, []Record, error) {
	v, err := p.ParseBytes(body)
	if err != nil {
		return "", nil, fmt.Errorf("invalid json: %v", err)
	}
	var (
		dev   string
		items []*fastjson.Value
	)
	switch v.Type() {
	case fastjson.TypeArray:
		items, _ = v.Array()
	case fastjson.TypeObject:
		if recs := v.Get("records"); recs != nil {
			if items, err = recs.Array(); err != nil {
				return "", nil, fmt.Errorf("records: %v", err)
			}
			dev = string(v.GetStringBytes("device"))
		} else {
			items = []*fastjson.Value{v}
		}
	default:
		return "", nil, errors.New("body must be an object or array")
	}
	if len(items) == 0 {
		return "", nil, ErrEmptyIngest
	}
	out := make([]Record, 0, len(items))
	for i, it := range items {
		r, err := parseRecord(it)
		if err != nil {
			return "", nil, fmt.Errorf("record %d: %v", i, err)
		}
		out = append(out, r)
	}
	return dev, out, nil
}

func parseRecord(v *fastjson.Value) (Record, error) {
	if v.Type() != fastjson.TypeObject {
		return Record{}, errors.New("not an object")
	}
	r := Record{
		Device: string(v.GetStringBytes("device")),
		Domain: string(v.GetStringBytes("domain")),
		Action: string(v.GetStringBytes("action")),
	}
	// Both spellings occur in device firmware payloads.
	r.SourceIP = string(v.GetStringBytes("source_ip"))
	if r.SourceIP == "" {
		r.SourceIP = string(v.GetStringBytes("sourceIP"))
	}
	if pv := v.Get("port"); pv != nil {
		port, err := pv.Int()
		if err != nil {
			return Record{}, fmt.Errorf("port: %v", err)
		}
		r.Port = port
	}
	ts, err := parseRecordTime(v.Get("timestamp"))
	if err != nil {
		return Record{}, err
	}
	r.Timestamp = ts
	return r, nil
}

// parseRecordTime accepts epoch milliseconds or an RFC3339 string. A missing
// timestamp yields the zero time, which the store replaces with now.
func parseRecordTime(v *fastjson.Value) (time.Time, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return time.Time{}, nil
	}
	switch v.Type() {
	case fastjson.TypeNumber:
		ms, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %v", err)
		}
		return time.UnixMilli(ms), nil
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		t, err := time.Parse(time.RFC3339Nano, string(b))
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %v", err)
		}
		return t, nil
	default:
		return time.Time{}, errors.New("timestamp must be a number or string")
	}
}
