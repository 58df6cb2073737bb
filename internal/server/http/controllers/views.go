package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rzbill/filterlog/internal/pager"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// ViewsController serves server-side pagination views.
type ViewsController struct {
	svc    *logsvc.Service
	logger logpkg.Logger
}

// NewViewsController creates a new views controller.
func NewViewsController(svc *logsvc.Service, logger logpkg.Logger) *ViewsController {
	return &ViewsController{svc: svc, logger: logger}
}

// RegisterRoutes registers view routes with the given mux.
//
//	POST   /v1/views                  open a view
//	GET    /v1/views/{id}             current snapshot
//	DELETE /v1/views/{id}             close
//	POST   /v1/views/{id}/page        {"page": N}
//	POST   /v1/views/{id}/page-size   {"page_size": N}
//	POST   /v1/views/{id}/refresh     reload page 1
func (c *ViewsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/views", c.handleOpen)
	mux.HandleFunc("/v1/views/", c.handleView)
}

func (c *ViewsController) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req viewOpenReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	opts := logsvc.ViewOptions{Device: req.Device, Filter: req.Filter, PageSize: req.PageSize}
	switch req.Backward {
	case "", "reset":
	case "seek":
		opts.Policy = pager.BackwardSeek
	default:
		writeError(w, http.StatusBadRequest, "backward must be reset or seek")
		return
	}
	st, err := c.svc.OpenView(r.Context(), opts)
	if err != nil {
		c.logFailure(r, "open_view", err)
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSONBody(w, toViewJSON(st))
}

func (c *ViewsController) handleView(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/views/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	var (
		st  logsvc.ViewState
		err error
	)
	switch {
	case action == "" && r.Method == http.MethodGet:
		st, err = c.svc.View(id)
	case action == "" && r.Method == http.MethodDelete:
		if err := c.svc.CloseView(id); err != nil {
			writeErr(w, err)
			return
		}
		writeNoContent(w)
		return
	case action == "page" && r.Method == http.MethodPost:
		var req viewPageReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		st, err = c.svc.GoToPage(r.Context(), id, req.Page)
	case action == "page-size" && r.Method == http.MethodPost:
		var req viewPageSizeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		st, err = c.svc.SetPageSize(r.Context(), id, req.PageSize)
	case action == "refresh" && r.Method == http.MethodPost:
		st, err = c.svc.Refresh(r.Context(), id)
	case action == "" || action == "page" || action == "page-size" || action == "refresh":
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		c.logFailure(r, "view_"+action, err)
		writeErr(w, err)
		return
	}
	writeJSON(w, toViewJSON(st))
}

func (c *ViewsController) logFailure(r *http.Request, op string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		c.logger.WithContext(r.Context()).Error("request failed", logpkg.Str(logpkg.OperationKey, op), logpkg.Err(err))
	}
}
