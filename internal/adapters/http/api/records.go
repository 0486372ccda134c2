package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/pulse/internal/domain/model"
)

// RecordsHandler accepts weekly feedback and check-in submissions.
type RecordsHandler struct {
	deps Dependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps Dependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandleSubmitFeedback handles POST /projects/{projectID}/feedback.
func (h *RecordsHandler) HandleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_feedback"
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	f, err := h.deps.SubmitFeedback(r.Context(), model.Feedback{
		ProjectID:           chi.URLParam(r, "projectID"),
		ClientID:            req.ClientID,
		SatisfactionRating:  req.SatisfactionRating,
		CommunicationRating: req.CommunicationRating,
		Comments:            req.Comments,
		IssueFlagged:        req.IssueFlagged,
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toFeedbackResponse(f))
}

// HandleListFeedback handles GET /projects/{projectID}/feedback.
func (h *RecordsHandler) HandleListFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.deps.ListFeedback(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		fail(w, Wrap("api.list_feedback", err))
		return
	}
	out := make([]feedbackResponse, len(feedback))
	for i, f := range feedback {
		out[i] = toFeedbackResponse(f)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSubmitCheckIn handles POST /projects/{projectID}/checkins.
func (h *RecordsHandler) HandleSubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_checkin"
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.SubmitCheckIn(r.Context(), model.CheckIn{
		ProjectID:            chi.URLParam(r, "projectID"),
		EmployeeID:           req.EmployeeID,
		ProgressSummary:      req.ProgressSummary,
		Blockers:             req.Blockers,
		ConfidenceLevel:      req.ConfidenceLevel,
		CompletionPercentage: req.CompletionPercentage,
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toCheckInResponse(c))
}
