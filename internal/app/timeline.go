package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// ActivityKind names the record behind a timeline entry.
type ActivityKind string

// Timeline entry kinds.
const (
	ActivityCheckIn  ActivityKind = "checkin"
	ActivityFeedback ActivityKind = "feedback"
	ActivityRisk     ActivityKind = "risk"
)

// Activity is one entry of a project's timeline.
type Activity struct {
	Kind        ActivityKind
	ID          string
	Title       string
	Description string
	ActorID     string
	At          time.Time
	Meta        map[string]any
}

// Timeline is every recorded activity of a project, newest first.
type Timeline struct {
	ProjectID   string
	ProjectName string
	Activities  []Activity
}

// Timeline merges a project's check-ins, feedback and risks into one feed.
// Risks are placed at their last update.
func (s *Service) Timeline(ctx context.Context, projectID string) (Timeline, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Timeline{}, err
	}
	checkIns, err := s.store.ListCheckIns(ctx, projectID, time.Time{})
	if err != nil {
		return Timeline{}, fmt.Errorf("timeline of %s: %w", projectID, err)
	}
	feedbacks, err := s.store.ListFeedback(ctx, projectID, time.Time{})
	if err != nil {
		return Timeline{}, fmt.Errorf("timeline of %s: %w", projectID, err)
	}
	risks, err := s.store.ListRisks(ctx, projectID)
	if err != nil {
		return Timeline{}, fmt.Errorf("timeline of %s: %w", projectID, err)
	}

	out := make([]Activity, 0, len(checkIns)+len(feedbacks)+len(risks))
	for _, c := range checkIns {
		out = append(out, checkInActivity(c))
	}
	for _, f := range feedbacks {
		out = append(out, feedbackActivity(f))
	}
	for _, r := range risks {
		out = append(out, riskActivity(r))
	}
	slices.SortStableFunc(out, func(a, b Activity) int { return b.At.Compare(a.At) })

	return Timeline{ProjectID: p.ID, ProjectName: p.Name, Activities: out}, nil
}

func checkInActivity(c model.CheckIn) Activity {
	return Activity{
		Kind:        ActivityCheckIn,
		ID:          c.ID,
		Title:       "Weekly check-in submitted",
		Description: c.ProgressSummary,
		ActorID:     c.EmployeeID,
		At:          c.CreatedAt,
		Meta: map[string]any{
			"confidenceLevel":      c.ConfidenceLevel,
			"completionPercentage": c.CompletionPercentage,
		},
	}
}

func feedbackActivity(f model.Feedback) Activity {
	desc := f.Comments
	if desc == "" {
		desc = "No additional comments"
	}
	return Activity{
		Kind:        ActivityFeedback,
		ID:          f.ID,
		Title:       "Client feedback submitted",
		Description: desc,
		ActorID:     f.ClientID,
		At:          f.CreatedAt,
		Meta: map[string]any{
			"satisfactionRating":  f.SatisfactionRating,
			"communicationRating": f.CommunicationRating,
			"issueFlagged":        f.IssueFlagged,
		},
	}
}

func riskActivity(r model.Risk) Activity {
	title := "Risk reported"
	if r.Status == model.RiskResolved {
		title = "Risk resolved"
	}
	at := r.UpdatedAt
	if at.IsZero() {
		at = r.CreatedAt
	}
	return Activity{
		Kind:        ActivityRisk,
		ID:          r.ID,
		Title:       title,
		Description: r.Title,
		ActorID:     r.EmployeeID,
		At:          at,
		Meta: map[string]any{
			"severity": string(r.Severity),
			"status":   string(r.Status),
		},
	}
}
