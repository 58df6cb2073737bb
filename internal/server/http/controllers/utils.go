package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rzbill/filterlog/internal/device"
	"github.com/rzbill/filterlog/internal/logstore"
	"github.com/rzbill/filterlog/internal/pager"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeErr maps err to a status code and writes it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor classifies service errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pager.ErrInvalidPageSize),
		errors.Is(err, logstore.ErrInvalidCursor),
		errors.Is(err, logstore.ErrInvalidFilter),
		errors.Is(err, logstore.ErrInvalidLimit),
		errors.Is(err, logsvc.ErrInvalidRecord),
		errors.Is(err, device.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, logsvc.ErrViewNotFound), errors.Is(err, device.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pager.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, logsvc.ErrTooManyViews), errors.Is(err, device.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, logstore.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSONBody(w, data)
}

// writeJSONBody encodes data after headers were written.
func writeJSONBody(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeCreated writes a 201 Created response.
func writeCreated(w http.ResponseWriter) {
	w.WriteHeader(http.StatusCreated)
}

// parsePageSize parses the page_size query value. Empty means the service
// default; anything unparseable is an invalid size.
func parsePageSize(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !pager.ValidPageSize(n) {
		return 0, pager.ErrInvalidPageSize
	}
	return n, nil
}
