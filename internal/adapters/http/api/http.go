// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
)

const (
	defaultWatchlistLimit = 10
	maxRequestBytes       = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer testable without a running service.
type Dependencies interface {
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	GetProject(ctx context.Context, id string) (service.ProjectDetail, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	UpdateProject(ctx context.Context, id string, u service.ProjectUpdate) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error
	Timeline(ctx context.Context, projectID string) (service.Timeline, error)

	SubmitFeedback(ctx context.Context, f model.Feedback) (model.Feedback, error)
	ListFeedback(ctx context.Context, projectID string) ([]model.Feedback, error)
	SubmitCheckIn(ctx context.Context, c model.CheckIn) (model.CheckIn, error)
	ReportRisk(ctx context.Context, r model.Risk) (model.Risk, error)
	ListRisks(ctx context.Context, projectID string) ([]model.Risk, error)
	UpdateRiskStatus(ctx context.Context, riskID, status string) (model.Risk, error)

	Recompute(ctx context.Context, projectID, trigger string) (service.Recomputation, error)
	RequestRecompute(ctx context.Context, projectID, trigger string) error
	RecalculateAll(ctx context.Context) ([]service.Recomputation, error)

	Watchlist(ctx context.Context, limit int) ([]repository.WatchEntry, error)
	Dashboard(ctx context.Context) (service.Dashboard, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	projectsHandler  *ProjectsHandler
	recordsHandler   *RecordsHandler
	risksHandler     *RisksHandler
	watchlistHandler *WatchlistHandler
	dashboardHandler *DashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxWatchlistLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		projectsHandler:  NewProjectsHandler(deps),
		recordsHandler:   NewRecordsHandler(deps),
		risksHandler:     NewRisksHandler(deps),
		watchlistHandler: NewWatchlistHandler(deps, maxWatchlistLimit),
		dashboardHandler: NewDashboardHandler(deps),
	}
}

// Router builds a chi router with the standard middleware stack and every
// API route registered.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)

		r.Get("/healthz", s.healthHandler.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)
		r.Get("/dashboard", s.dashboardHandler.HandleDashboard)
		r.Get("/watchlist", s.watchlistHandler.HandleGetWatchlist)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.projectsHandler.HandleCreate)
			r.Get("/", s.projectsHandler.HandleList)
			r.Post("/recalculate-all", s.projectsHandler.HandleRecalculateAll)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.projectsHandler.HandleGet)
				r.Put("/", s.projectsHandler.HandleUpdate)
				r.Delete("/", s.projectsHandler.HandleDelete)
				r.Get("/timeline", s.projectsHandler.HandleTimeline)
				r.Post("/calculate-health", s.projectsHandler.HandleCalculateHealth)
				r.Post("/feedback", s.recordsHandler.HandleSubmitFeedback)
				r.Get("/feedback", s.recordsHandler.HandleListFeedback)
				r.Post("/checkins", s.recordsHandler.HandleSubmitCheckIn)
				r.Post("/risks", s.risksHandler.HandleReport)
				r.Get("/risks", s.risksHandler.HandleList)
			})
		})

		r.Patch("/risks/{riskID}", s.risksHandler.HandleUpdateStatus)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		// keep driver details out of responses
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data")
	}
	return nil
}
