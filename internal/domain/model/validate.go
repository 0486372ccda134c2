package model

import (
	"fmt"
	"strings"
)

// Rating and progress bounds enforced at submission time.
const (
	minRating     = 1
	maxRating     = 5
	minCompletion = 0
	maxCompletion = 100
)

// Validate checks the fields a caller must supply when creating a project.
func (p *Project) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("missing name: %w", ErrInvalidProject)
	case p.StartDate.IsZero():
		return fmt.Errorf("missing start_date: %w", ErrInvalidProject)
	case p.EndDate.IsZero():
		return fmt.Errorf("missing end_date: %w", ErrInvalidProject)
	case !p.EndDate.After(p.StartDate):
		return fmt.Errorf("end_date must be after start_date: %w", ErrInvalidProject)
	}
	return nil
}

// Validate checks a feedback submission.
func (f *Feedback) Validate() error {
	switch {
	case strings.TrimSpace(f.ProjectID) == "":
		return fmt.Errorf("missing project_id: %w", ErrInvalidRecord)
	case strings.TrimSpace(f.ClientID) == "":
		return fmt.Errorf("missing client_id: %w", ErrInvalidRecord)
	case !inRating(f.SatisfactionRating):
		return fmt.Errorf("satisfaction_rating must be between %d and %d: %w", minRating, maxRating, ErrInvalidRecord)
	case !inRating(f.CommunicationRating):
		return fmt.Errorf("communication_rating must be between %d and %d: %w", minRating, maxRating, ErrInvalidRecord)
	}
	return nil
}

// Validate checks a check-in submission.
func (c *CheckIn) Validate() error {
	switch {
	case strings.TrimSpace(c.ProjectID) == "":
		return fmt.Errorf("missing project_id: %w", ErrInvalidRecord)
	case strings.TrimSpace(c.EmployeeID) == "":
		return fmt.Errorf("missing employee_id: %w", ErrInvalidRecord)
	case strings.TrimSpace(c.ProgressSummary) == "":
		return fmt.Errorf("missing progress_summary: %w", ErrInvalidRecord)
	case !inRating(c.ConfidenceLevel):
		return fmt.Errorf("confidence_level must be between %d and %d: %w", minRating, maxRating, ErrInvalidRecord)
	case c.CompletionPercentage < minCompletion || c.CompletionPercentage > maxCompletion:
		return fmt.Errorf("completion_percentage must be between %d and %d: %w", minCompletion, maxCompletion, ErrInvalidRecord)
	}
	return nil
}

// Validate checks a risk report. An empty status is normalized to Open.
func (r *Risk) Validate() error {
	switch {
	case strings.TrimSpace(r.ProjectID) == "":
		return fmt.Errorf("missing project_id: %w", ErrInvalidRecord)
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("missing title: %w", ErrInvalidRecord)
	case strings.TrimSpace(r.MitigationPlan) == "":
		return fmt.Errorf("missing mitigation_plan: %w", ErrInvalidRecord)
	}
	sev, err := ParseSeverity(string(r.Severity))
	if err != nil {
		return err
	}
	st, err := ParseRiskStatus(string(r.Status))
	if err != nil {
		return err
	}
	r.Severity, r.Status = sev, st
	return nil
}

func inRating(v int) bool { return v >= minRating && v <= maxRating }
