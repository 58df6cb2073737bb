package controllers

import (
	"net/http"

	"github.com/rzbill/filterlog/internal/runtime"
	logsvc "github.com/rzbill/filterlog/internal/services/logs"
	logpkg "github.com/rzbill/filterlog/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general *GeneralController
	logs    *LogsController
	views   *ViewsController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, svc *logsvc.Service, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt, svc),
		logs:    NewLogsController(svc, logger),
		views:   NewViewsController(svc, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This sets up the health and device endpoints, stateless log pages and
// ingest, and the server-side pagination views.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.logs.RegisterRoutes(mux)
	r.views.RegisterRoutes(mux)
}
