package api

import (
	"net/http"
)

// DashboardHandler serves the portfolio summary.
type DashboardHandler struct {
	deps Dependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps Dependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleDashboard handles GET /dashboard requests.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Dashboard(r.Context())
	if err != nil {
		fail(w, Wrap("api.dashboard", err))
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(d))
}
