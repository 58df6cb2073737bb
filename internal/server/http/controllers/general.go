package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/filterlog/internal/runtime"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
)

// GeneralController handles general HTTP endpoints like health and devices.
type GeneralController struct {
	rt  *runtime.Runtime
	svc *logsvc.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime, svc *logsvc.Service) *GeneralController {
	return &GeneralController{rt: rt, svc: svc}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Device listing and creation (/v1/devices)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/devices", c.handleDevices)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleDevices lists devices on GET and registers one on POST.
func (c *GeneralController) handleDevices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := c.svc.Devices()
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]deviceJSON, 0, len(list))
		for _, m := range list {
			out = append(out, deviceJSON{Name: m.Name, CreatedAtMs: m.CreatedAtMs})
		}
		writeJSON(w, map[string]any{"devices": out})
	case http.MethodPost:
		var req deviceCreateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if _, err := c.rt.Devices().Create(req.Name); err != nil {
			writeErr(w, err)
			return
		}
		writeCreated(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
