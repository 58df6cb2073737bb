package logstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestParseIngestShapes(t *testing.T) {
	var p fastjson.Parser

	dev, recs, err := ParseIngest(&p, []byte(`{"domain":"a.example.com","sourceIP":"10.0.0.1","port":53,"timestamp":1700000000000}`))
	require.NoError(t, err)
	assert.Empty(t, dev)
	require.Len(t, recs, 1)
	assert.Equal(t, "10.0.0.1", recs[0].SourceIP)
	assert.Equal(t, 53, recs[0].Port)
	assert.Equal(t, int64(1700000000000), recs[0].Timestamp.UnixMilli())

	_, recs, err = ParseIngest(&p, []byte(`[{"domain":"a"},{"domain":"b","source_ip":"::1","timestamp":"2024-05-01T10:00:00Z"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Timestamp.IsZero())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), recs[1].Timestamp.UTC())

	dev, recs, err = ParseIngest(&p, []byte(`{"device":"edge-1","records":[{"domain":"c","action":"blocked"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "edge-1", dev)
	assert.Equal(t, ActionBlocked, recs[0].Action)
}

func TestParseIngestRejects(t *testing.T) {
	var p fastjson.Parser
	cases := map[string]string{
		"not json":       `{`,
		"scalar":         `42`,
		"records scalar": `{"records":5}`,
		"bad port":       `{"port":"x"}`,
		"bad timestamp":  `{"timestamp":"yesterday"}`,
		"bool timestamp": `{"timestamp":true}`,
		"array item":     `[1]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseIngest(&p, []byte(body))
			assert.Error(t, err)
		})
	}
	_, _, err := ParseIngest(&p, []byte(`[]`))
	assert.ErrorIs(t, err, ErrEmptyIngest)
}
