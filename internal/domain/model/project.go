// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the health classification persisted on a project.
type Status string

// Project statuses.
const (
	StatusOnTrack   Status = "On Track"
	StatusAtRisk    Status = "At Risk"
	StatusCritical  Status = "Critical"
	StatusCompleted Status = "Completed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOnTrack, StatusAtRisk, StatusCritical, StatusCompleted}

// Severity grades a reported risk.
type Severity string

// Risk severities.
const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// RiskStatus tracks whether a risk still counts against a project.
type RiskStatus string

// Risk statuses.
const (
	RiskOpen     RiskStatus = "Open"
	RiskResolved RiskStatus = "Resolved"
)

// Defaults applied to newly created projects.
const (
	DefaultHealthScore = 100
	DefaultStatus      = StatusOnTrack
)

// ParseSeverity accepts a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q: %w", s, ErrInvalidRecord)
}

// ParseRiskStatus accepts a risk status case-insensitively. An empty string
// yields RiskOpen.
func ParseRiskStatus(s string) (RiskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open":
		return RiskOpen, nil
	case "resolved":
		return RiskResolved, nil
	}
	return "", fmt.Errorf("unknown risk status %q: %w", s, ErrInvalidRecord)
}

// Project is a tracked delivery project.
type Project struct {
	ID          string
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Status      Status
	HealthScore int
	ClientID    string
	EmployeeIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Feedback is one client's weekly satisfaction submission.
type Feedback struct {
	ID                  string
	ProjectID           string
	ClientID            string
	WeekStart           time.Time
	SatisfactionRating  int
	CommunicationRating int
	Comments            string
	IssueFlagged        bool
	CreatedAt           time.Time
}

// CheckIn is one employee's weekly progress submission.
type CheckIn struct {
	ID                   string
	ProjectID            string
	EmployeeID           string
	WeekStart            time.Time
	ProgressSummary      string
	Blockers             string
	ConfidenceLevel      int
	CompletionPercentage float64
	CreatedAt            time.Time
}

// Risk is a reported project threat.
type Risk struct {
	ID             string
	ProjectID      string
	EmployeeID     string
	Title          string
	Severity       Severity
	MitigationPlan string
	Status         RiskStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecomputeRequest asks for a project's health to be recalculated.
type RecomputeRequest struct {
	ProjectID   string
	Trigger     string // what caused the request, e.g. "feedback"
	RequestedAt time.Time
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
