package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/pulse/internal/domain/model"
)

// RisksHandler handles risk reports and status changes.
type RisksHandler struct {
	deps Dependencies
}

// NewRisksHandler creates a new risks handler.
func NewRisksHandler(deps Dependencies) *RisksHandler {
	return &RisksHandler{deps: deps}
}

// HandleReport handles POST /projects/{projectID}/risks.
func (h *RisksHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report_risk"
	var req riskRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	risk, err := h.deps.ReportRisk(r.Context(), model.Risk{
		ProjectID:      chi.URLParam(r, "projectID"),
		EmployeeID:     req.EmployeeID,
		Title:          req.Title,
		Severity:       model.Severity(req.Severity),
		MitigationPlan: req.MitigationPlan,
		Status:         model.RiskStatus(req.Status),
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toRiskResponse(risk))
}

// HandleList handles GET /projects/{projectID}/risks.
func (h *RisksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	risks, err := h.deps.ListRisks(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		fail(w, Wrap("api.list_risks", err))
		return
	}
	out := make([]riskResponse, len(risks))
	for i, risk := range risks {
		out[i] = toRiskResponse(risk)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpdateStatus handles PATCH /risks/{riskID}.
func (h *RisksHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_risk_status"
	var req riskStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Status == "" {
		fail(w, NewKind(op, ErrBadRequest))
		return
	}
	risk, err := h.deps.UpdateRiskStatus(r.Context(), chi.URLParam(r, "riskID"), req.Status)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toRiskResponse(risk))
}
