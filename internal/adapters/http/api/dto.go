package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/health"
	"github.com/okian/pulse/internal/domain/model"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing %s: %w", field, ErrBadRequest)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; must be YYYY-MM-DD or RFC3339: %w", field, ErrBadRequest)
	}
	return t.UTC(), nil
}

type createProjectRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	ClientID    string   `json:"clientId"`
	EmployeeIDs []string `json:"employeeIds"`
}

func (req createProjectRequest) toModel() (model.Project, error) {
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return model.Project{}, err
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return model.Project{}, err
	}
	return model.Project{
		ID:          strings.TrimSpace(req.ID),
		Name:        req.Name,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		ClientID:    req.ClientID,
		EmployeeIDs: req.EmployeeIDs,
	}, nil
}

type updateProjectRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	StartDate   *string  `json:"startDate"`
	EndDate     *string  `json:"endDate"`
	ClientID    *string  `json:"clientId"`
	EmployeeIDs []string `json:"employeeIds"`
}

func (req updateProjectRequest) toUpdate() (service.ProjectUpdate, error) {
	u := service.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		ClientID:    req.ClientID,
		EmployeeIDs: req.EmployeeIDs,
	}
	if req.StartDate != nil {
		t, err := parseDate("startDate", *req.StartDate)
		if err != nil {
			return service.ProjectUpdate{}, err
		}
		u.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate("endDate", *req.EndDate)
		if err != nil {
			return service.ProjectUpdate{}, err
		}
		u.EndDate = &t
	}
	return u, nil
}

type projectResponse struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	StartDate         time.Time    `json:"startDate"`
	EndDate           time.Time    `json:"endDate"`
	Status            model.Status `json:"status"`
	HealthScore       int          `json:"healthScore"`
	ClientID          string       `json:"clientId,omitempty"`
	EmployeeIDs       []string     `json:"employeeIds"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
	WatchlistPosition int          `json:"watchlistPosition,omitempty"`
}

func toProjectResponse(p model.Project) projectResponse {
	ids := p.EmployeeIDs
	if ids == nil {
		ids = []string{}
	}
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Status:      p.Status,
		HealthScore: p.HealthScore,
		ClientID:    p.ClientID,
		EmployeeIDs: ids,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type feedbackRequest struct {
	ClientID            string `json:"clientId"`
	SatisfactionRating  int    `json:"satisfactionRating"`
	CommunicationRating int    `json:"communicationRating"`
	Comments            string `json:"comments"`
	IssueFlagged        bool   `json:"issueFlagged"`
}

type feedbackResponse struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"projectId"`
	ClientID            string    `json:"clientId"`
	WeekStart           string    `json:"weekStart"`
	SatisfactionRating  int       `json:"satisfactionRating"`
	CommunicationRating int       `json:"communicationRating"`
	Comments            string    `json:"comments,omitempty"`
	IssueFlagged        bool      `json:"issueFlagged"`
	CreatedAt           time.Time `json:"createdAt"`
}

func toFeedbackResponse(f model.Feedback) feedbackResponse {
	return feedbackResponse{
		ID:                  f.ID,
		ProjectID:           f.ProjectID,
		ClientID:            f.ClientID,
		WeekStart:           f.WeekStart.Format(dateLayout),
		SatisfactionRating:  f.SatisfactionRating,
		CommunicationRating: f.CommunicationRating,
		Comments:            f.Comments,
		IssueFlagged:        f.IssueFlagged,
		CreatedAt:           f.CreatedAt,
	}
}

type checkInRequest struct {
	EmployeeID           string  `json:"employeeId"`
	ProgressSummary      string  `json:"progressSummary"`
	Blockers             string  `json:"blockers"`
	ConfidenceLevel      int     `json:"confidenceLevel"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

type checkInResponse struct {
	ID                   string    `json:"id"`
	ProjectID            string    `json:"projectId"`
	EmployeeID           string    `json:"employeeId"`
	WeekStart            string    `json:"weekStart"`
	ProgressSummary      string    `json:"progressSummary"`
	Blockers             string    `json:"blockers,omitempty"`
	ConfidenceLevel      int       `json:"confidenceLevel"`
	CompletionPercentage float64   `json:"completionPercentage"`
	CreatedAt            time.Time `json:"createdAt"`
}

func toCheckInResponse(c model.CheckIn) checkInResponse {
	return checkInResponse{
		ID:                   c.ID,
		ProjectID:            c.ProjectID,
		EmployeeID:           c.EmployeeID,
		WeekStart:            c.WeekStart.Format(dateLayout),
		ProgressSummary:      c.ProgressSummary,
		Blockers:             c.Blockers,
		ConfidenceLevel:      c.ConfidenceLevel,
		CompletionPercentage: c.CompletionPercentage,
		CreatedAt:            c.CreatedAt,
	}
}

type riskRequest struct {
	EmployeeID     string `json:"employeeId"`
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	MitigationPlan string `json:"mitigationPlan"`
	Status         string `json:"status"`
}

type riskStatusRequest struct {
	Status string `json:"status"`
}

type riskResponse struct {
	ID             string           `json:"id"`
	ProjectID      string           `json:"projectId"`
	EmployeeID     string           `json:"employeeId,omitempty"`
	Title          string           `json:"title"`
	Severity       model.Severity   `json:"severity"`
	MitigationPlan string           `json:"mitigationPlan"`
	Status         model.RiskStatus `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func toRiskResponse(r model.Risk) riskResponse {
	return riskResponse{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		EmployeeID:     r.EmployeeID,
		Title:          r.Title,
		Severity:       r.Severity,
		MitigationPlan: r.MitigationPlan,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type activityResponse struct {
	ID          string               `json:"id"`
	Type        service.ActivityKind `json:"type"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	ActorID     string               `json:"actorId,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	Meta        map[string]any       `json:"meta"`
}

type timelineResponse struct {
	ProjectID       string             `json:"projectId"`
	ProjectName     string             `json:"projectName"`
	TotalActivities int                `json:"totalActivities"`
	Timeline        []activityResponse `json:"timeline"`
}

func toTimelineResponse(tl service.Timeline) timelineResponse {
	out := make([]activityResponse, len(tl.Activities))
	for i, a := range tl.Activities {
		out[i] = activityResponse{
			ID:          a.ID,
			Type:        a.Kind,
			Title:       a.Title,
			Description: a.Description,
			ActorID:     a.ActorID,
			CreatedAt:   a.At,
			Meta:        a.Meta,
		}
	}
	return timelineResponse{
		ProjectID:       tl.ProjectID,
		ProjectName:     tl.ProjectName,
		TotalActivities: len(out),
		Timeline:        out,
	}
}

type healthResponse struct {
	ProjectID      string           `json:"projectId"`
	PreviousScore  int              `json:"previousScore"`
	PreviousStatus model.Status     `json:"previousStatus"`
	HealthScore    int              `json:"healthScore"`
	Status         model.Status     `json:"status"`
	Breakdown      health.Breakdown `json:"breakdown"`
	SubScores      health.SubScores `json:"subScores"`
	Details        health.Details   `json:"details"`
	ComputedAt     time.Time        `json:"computedAt"`
}

func toHealthResponse(rc service.Recomputation) healthResponse {
	return healthResponse{
		ProjectID:      rc.ProjectID,
		PreviousScore:  rc.OldScore,
		PreviousStatus: rc.OldStatus,
		HealthScore:    rc.Result.Score,
		Status:         rc.Result.Status,
		Breakdown:      rc.Result.Breakdown,
		SubScores:      rc.Result.SubScores,
		Details:        rc.Result.Details,
		ComputedAt:     rc.ComputedAt,
	}
}

type recalculatedProject struct {
	ProjectID string       `json:"projectId"`
	OldScore  int          `json:"oldScore"`
	NewScore  int          `json:"newScore"`
	OldStatus model.Status `json:"oldStatus"`
	NewStatus model.Status `json:"newStatus"`
}

type recalculateAllResponse struct {
	Updated int                   `json:"updated"`
	Results []recalculatedProject `json:"results"`
	Errors  []string              `json:"errors,omitempty"`
}

type acceptedResponse struct {
	Status    string `json:"status"`
	ProjectID string `json:"projectId"`
}

type watchEntryResponse struct {
	Position    int          `json:"position"`
	ProjectID   string       `json:"projectId"`
	Name        string       `json:"name"`
	HealthScore int          `json:"healthScore"`
	Status      model.Status `json:"status"`
}

func toWatchEntries(entries []repository.WatchEntry) []watchEntryResponse {
	out := make([]watchEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = watchEntryResponse{
			Position:    e.Position,
			ProjectID:   e.ProjectID,
			Name:        e.Name,
			HealthScore: e.HealthScore,
			Status:      e.Status,
		}
	}
	return out
}

type projectRefResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	HealthScore int          `json:"healthScore"`
	Status      model.Status `json:"status"`
}

type dashboardResponse struct {
	TotalProjects    int                  `json:"totalProjects"`
	ByStatus         map[string]int       `json:"byStatus"`
	MissingCheckIns  []projectRefResponse `json:"missingCheckIns"`
	HighRiskProjects []projectRefResponse `json:"highRiskProjects"`
	GeneratedAt      time.Time            `json:"generatedAt"`
}

func toRefs(refs []service.ProjectRef) []projectRefResponse {
	out := make([]projectRefResponse, len(refs))
	for i, r := range refs {
		out[i] = projectRefResponse{ID: r.ID, Name: r.Name, HealthScore: r.HealthScore, Status: r.Status}
	}
	return out
}

func toDashboardResponse(d service.Dashboard) dashboardResponse {
	by := make(map[string]int, len(d.ByStatus))
	for st, n := range d.ByStatus {
		by[string(st)] = n
	}
	return dashboardResponse{
		TotalProjects:    d.TotalProjects,
		ByStatus:         by,
		MissingCheckIns:  toRefs(d.MissingCheckIns),
		HighRiskProjects: toRefs(d.HighRiskProjects),
		GeneratedAt:      d.GeneratedAt,
	}
}
