package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/filterlog/internal/config"
	"github.com/rzbill/filterlog/internal/runtime"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	pebblestore "github.com/rzbill/filterlog/internal/storage/pebble"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *runtime.Runtime) {
	t.Helper()
	dir := t.TempDir()
	rt, err := runtime.Open(runtime.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text", Outputs: []string{"null"}})
	return New(rt, logsvc.NewWithLogger(rt, logger), logger), rt
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func ingestN(t *testing.T, s *Server, n int) {
	t.Helper()
	var items []string
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(`{"timestamp":%d,"domain":"d%02d.example.com","sourceIP":"10.0.0.%d","action":"blocked"}`, 1700000000000+int64(i)*1000, i, i%250+1))
	}
	w := do(t, s, http.MethodPost, "/v1/logs/ingest", `{"device":"edge-1","records":[`+strings.Join(items, ",")+`]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest status: %d body=%s", w.Code, w.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id: %q", got)
	}
}

func TestIngestShapes(t *testing.T) {
	s, _ := newTestServer(t)
	for _, body := range []string{
		`{"domain":"single.example.com","source_ip":"10.0.0.1"}`,
		`[{"domain":"a.example.com"},{"domain":"b.example.com","timestamp":"2024-01-02T03:04:05Z"}]`,
	} {
		w := do(t, s, http.MethodPost, "/v1/logs/ingest", body)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status %d for %s: %s", w.Code, body, w.Body.String())
		}
	}
	w := do(t, s, http.MethodGet, "/v1/logs", "")
	var page struct {
		Records []map[string]any `json:"records"`
	}
	decode(t, w, &page)
	if len(page.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(page.Records))
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)
	cases := map[string]string{
		"not json":    `{`,
		"scalar":      `42`,
		"empty":       `[]`,
		"bad port":    `{"port":"http"}`,
		"bad time":    `{"timestamp":"yesterday"}`,
		"bad action":  `{"action":"dropped"}`,
		"port range":  `{"port":99999}`,
		"bad address": `{"source_ip":"999.1.1.1"}`,
	}
	for name, body := range cases {
		w := do(t, s, http.MethodPost, "/v1/logs/ingest", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", name, w.Code)
		}
	}
	if w := do(t, s, http.MethodGet, "/v1/logs/ingest", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET ingest: %d", w.Code)
	}
}

func TestPageTraversalOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	ingestN(t, s, 23)

	type pageBody struct {
		Records    []map[string]any `json:"records"`
		HasNext    bool             `json:"has_next"`
		NextCursor string           `json:"next_cursor"`
		PageSize   int              `json:"page_size"`
	}
	var seen []string
	after := ""
	for i := 0; i < 10; i++ {
		w := do(t, s, http.MethodGet, "/v1/logs?page_size=10&after="+after, "")
		if w.Code != http.StatusOK {
			t.Fatalf("status %d: %s", w.Code, w.Body.String())
		}
		var p pageBody
		decode(t, w, &p)
		for _, r := range p.Records {
			seen = append(seen, r["domain"].(string))
		}
		if !p.HasNext {
			break
		}
		after = p.NextCursor
	}
	if len(seen) != 23 {
		t.Fatalf("expected 23 records, got %d", len(seen))
	}
	if seen[0] != "d22.example.com" || seen[22] != "d00.example.com" {
		t.Fatalf("order: first=%s last=%s", seen[0], seen[22])
	}
}

func TestPageErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)
	cases := map[string]int{
		"/v1/logs?page_size=15":      http.StatusBadRequest,
		"/v1/logs?page_size=ten":     http.StatusBadRequest,
		"/v1/logs?after=garbage":     http.StatusBadRequest,
		"/v1/logs?filter=port%20%2B": http.StatusBadRequest,
	}
	for path, want := range cases {
		w := do(t, s, http.MethodGet, path, "")
		if w.Code != want {
			t.Fatalf("%s: status %d want %d", path, w.Code, want)
		}
		var body map[string]string
		decode(t, w, &body)
		if body["error"] == "" {
			t.Fatalf("%s: missing error message", path)
		}
	}
}

func TestStoreUnavailableIs503(t *testing.T) {
	s, rt := newTestServer(t)
	_ = rt.DB().Close()
	if w := do(t, s, http.MethodGet, "/v1/logs", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/v1/healthz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status: %d", w.Code)
	}
}

type viewBody struct {
	ID               string           `json:"id"`
	Page             int              `json:"page"`
	PageSize         int              `json:"page_size"`
	ApproximateTotal int              `json:"approximate_total"`
	HasNext          bool             `json:"has_next"`
	HasPrevious      bool             `json:"has_previous"`
	Status           string           `json:"status"`
	First            int              `json:"first"`
	Last             int              `json:"last"`
	Summary          string           `json:"summary"`
	Records          []map[string]any `json:"records"`
}

func TestViewFlow(t *testing.T) {
	s, _ := newTestServer(t)
	ingestN(t, s, 25)

	w := do(t, s, http.MethodPost, "/v1/views", `{"page_size":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("open: %d %s", w.Code, w.Body.String())
	}
	var v viewBody
	decode(t, w, &v)
	if v.ID == "" || v.Page != 1 || len(v.Records) != 10 || v.ApproximateTotal != 11 || v.Status != "loaded" {
		t.Fatalf("unexpected first page: %+v", v)
	}
	if v.Summary != "Showing 1 to 10 of ~11 logs" {
		t.Fatalf("summary: %q", v.Summary)
	}

	w = do(t, s, http.MethodPost, "/v1/views/"+v.ID+"/page", `{"page":2}`)
	decode(t, w, &v)
	if v.Page != 2 || v.First != 11 || v.Last != 20 || !v.HasPrevious {
		t.Fatalf("page 2: %+v", v)
	}
	w = do(t, s, http.MethodPost, "/v1/views/"+v.ID+"/page", `{"page":3}`)
	decode(t, w, &v)
	if v.Page != 3 || len(v.Records) != 5 || v.HasNext {
		t.Fatalf("page 3: %+v", v)
	}

	// back from 3 to 2 resets to 1
	w = do(t, s, http.MethodPost, "/v1/views/"+v.ID+"/page", `{"page":2}`)
	decode(t, w, &v)
	if v.Page != 1 {
		t.Fatalf("expected reset to page 1, got %d", v.Page)
	}

	w = do(t, s, http.MethodPost, "/v1/views/"+v.ID+"/page-size", `{"page_size":30}`)
	decode(t, w, &v)
	if v.PageSize != 30 || len(v.Records) != 25 || v.HasNext {
		t.Fatalf("resize: %+v", v)
	}
	if w := do(t, s, http.MethodPost, "/v1/views/"+v.ID+"/page-size", `{"page_size":7}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad size: %d", w.Code)
	}

	if w := do(t, s, http.MethodGet, "/v1/views/"+v.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/views/"+v.ID+"/refresh", ""); w.Code != http.StatusOK {
		t.Fatalf("refresh: %d", w.Code)
	}
	if w := do(t, s, http.MethodDelete, "/v1/views/"+v.ID, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/v1/views/"+v.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", w.Code)
	}
}

func TestViewRouting(t *testing.T) {
	s, _ := newTestServer(t)
	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/v1/views", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/v1/views", `{"backward":"sideways"}`, http.StatusBadRequest},
		{http.MethodGet, "/v1/views/", "", http.StatusNotFound},
		{http.MethodGet, "/v1/views/missing", "", http.StatusNotFound},
		{http.MethodGet, "/v1/views/missing/page", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/v1/views/missing/zoom", "", http.StatusNotFound},
		{http.MethodPost, "/v1/views/missing/page", `{"page":2}`, http.StatusNotFound},
	}
	for _, c := range cases {
		w := do(t, s, c.method, c.path, c.body)
		if w.Code != c.want {
			t.Fatalf("%s %s: status %d want %d", c.method, c.path, w.Code, c.want)
		}
	}
}

func TestDevicesHandler(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(t, s, http.MethodPost, "/v1/devices", `{"name":"kitchen-cam"}`); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/devices", `{"name":"Kitchen Cam"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad name: %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/v1/devices", "")
	var body struct {
		Devices []struct {
			Name string `json:"name"`
		} `json:"devices"`
	}
	decode(t, w, &body)
	if len(body.Devices) != 1 || body.Devices[0].Name != "kitchen-cam" {
		t.Fatalf("devices: %+v", body.Devices)
	}
}
