package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/pulse/internal/app"
)

// ProjectsHandler handles project lifecycle and health calculation requests.
type ProjectsHandler struct {
	deps Dependencies
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(deps Dependencies) *ProjectsHandler {
	return &ProjectsHandler{deps: deps}
}

// HandleCreate handles POST /projects.
func (h *ProjectsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_project"
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := req.toModel()
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	created, err := h.deps.CreateProject(r.Context(), p)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(created))
}

// HandleList handles GET /projects.
func (h *ProjectsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.ListProjects(r.Context())
	if err != nil {
		fail(w, Wrap("api.list_projects", err))
		return
	}
	out := make([]projectResponse, len(projects))
	for i, p := range projects {
		out[i] = toProjectResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /projects/{projectID}.
func (h *ProjectsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		fail(w, Wrap("api.get_project", err))
		return
	}
	resp := toProjectResponse(d.Project)
	resp.WatchlistPosition = d.WatchlistPosition
	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PUT /projects/{projectID}. Omitted fields keep their
// current value.
func (h *ProjectsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_project"
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	p, err := h.deps.UpdateProject(r.Context(), chi.URLParam(r, "projectID"), u)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// HandleDelete handles DELETE /projects/{projectID}.
func (h *ProjectsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		fail(w, Wrap("api.delete_project", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTimeline handles GET /projects/{projectID}/timeline.
func (h *ProjectsHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.deps.Timeline(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		fail(w, Wrap("api.timeline", err))
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

// HandleCalculateHealth handles POST /projects/{projectID}/calculate-health.
// With ?async=true the recompute is queued and 202 is returned.
func (h *ProjectsHandler) HandleCalculateHealth(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate_health"
	id := chi.URLParam(r, "projectID")

	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		async = b
	}

	if async {
		// surface unknown ids now rather than from a worker log
		if _, err := h.deps.GetProject(r.Context(), id); err != nil {
			fail(w, Wrap(op, err))
			return
		}
		if err := h.deps.RequestRecompute(r.Context(), id, service.TriggerManual); err != nil {
			fail(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", ProjectID: id})
		return
	}

	rc, err := h.deps.Recompute(r.Context(), id, service.TriggerManual)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toHealthResponse(rc))
}

// HandleRecalculateAll handles POST /projects/recalculate-all. Partial
// failures are reported alongside the projects that were updated.
func (h *ProjectsHandler) HandleRecalculateAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.deps.RecalculateAll(r.Context())
	resp := recalculateAllResponse{
		Updated: len(results),
		Results: make([]recalculatedProject, len(results)),
	}
	for i, rc := range results {
		resp.Results[i] = recalculatedProject{
			ProjectID: rc.ProjectID,
			OldScore:  rc.OldScore,
			NewScore:  rc.Result.Score,
			OldStatus: rc.OldStatus,
			NewStatus: rc.Result.Status,
		}
	}
	if err != nil {
		if len(results) == 0 {
			fail(w, Wrap("api.recalculate_all", err))
			return
		}
		resp.Errors = splitJoined(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// splitJoined flattens an errors.Join result into messages.
func splitJoined(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs := j.Unwrap()
		out := make([]string, len(errs))
		for i, e := range errs {
			out[i] = e.Error()
		}
		return out
	}
	return []string{err.Error()}
}
