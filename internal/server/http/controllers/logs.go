package controllers

import (
	"io"
	"net/http"

	"github.com/valyala/fastjson"

	"github.com/rzbill/filterlog/internal/logstore"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// maxIngestBody caps a single ingest request.
const maxIngestBody = 8 << 20

// LogsController serves stateless log pages and ingest.
type LogsController struct {
	svc     *logsvc.Service
	logger  logpkg.Logger
	parsers fastjson.ParserPool
}

// NewLogsController creates a new logs controller.
func NewLogsController(svc *logsvc.Service, logger logpkg.Logger) *LogsController {
	return &LogsController{svc: svc, logger: logger}
}

// RegisterRoutes registers log routes with the given mux.
func (c *LogsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/logs", c.handlePage)
	mux.HandleFunc("/v1/logs/ingest", c.handleIngest)
}

// handlePage returns one window of records.
//
// Query: device, page_size, after (cursor token), filter (CEL).
func (c *LogsController) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	size, err := parsePageSize(q.Get("page_size"))
	if err != nil {
		writeErr(w, err)
		return
	}
	res, err := c.svc.Page(r.Context(), logsvc.PageRequest{
		Device:   q.Get("device"),
		PageSize: size,
		After:    q.Get("after"),
		Filter:   q.Get("filter"),
	})
	if err != nil {
		c.logFailure(r, "page", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, pageResp{
		Records:    toRecordsJSON(res.Records),
		PageSize:   res.PageSize,
		HasNext:    res.HasNext,
		NextCursor: res.NextCursor,
	})
}

// handleIngest appends records.
//
// The body is a single record object, an array of records, or
// {"device": "...", "records": [...]}.
func (c *LogsController) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body) > maxIngestBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	p := c.parsers.Get()
	defer c.parsers.Put(p)
	dev, recs, err := logstore.ParseIngest(p, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q := r.URL.Query().Get("device"); q != "" && dev == "" {
		dev = q
	}
	out, err := c.svc.Ingest(r.Context(), dev, recs)
	if err != nil {
		c.logFailure(r, "ingest", err)
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSONBody(w, map[string]any{"appended": len(out)})
}

func (c *LogsController) logFailure(r *http.Request, op string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		c.logger.WithContext(r.Context()).Error("request failed", logpkg.Str(logpkg.OperationKey, op), logpkg.Err(err))
	}
}
