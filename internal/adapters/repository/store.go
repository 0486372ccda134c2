// Package repository persists projects and their health signals.
package repository

import (
	"context"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// WatchEntry is one row of the watchlist.
type WatchEntry struct {
	Position    int
	ProjectID   string
	Name        string
	HealthScore int
	Status      model.Status
}

// Store provides read/write access to projects and their records.
//
// The watchlist orders projects by health score ascending, then id
// ascending, so the project most in need of attention comes first.
type Store interface {
	// CreateProject returns ErrDuplicate if the id is taken.
	CreateProject(ctx context.Context, p model.Project) error
	// GetProject returns ErrNotFound if the project is unknown.
	GetProject(ctx context.Context, id string) (model.Project, error)
	// ListProjects returns every project ordered by creation time, then id.
	ListProjects(ctx context.Context) ([]model.Project, error)
	// UpdateProject overwrites the descriptive fields and dates of an
	// existing project. Score and status are left alone.
	UpdateProject(ctx context.Context, p model.Project) error
	// DeleteProject removes a project together with its feedback,
	// check-ins and risks.
	DeleteProject(ctx context.Context, id string) error
	// UpdateHealth overwrites the persisted score and status.
	UpdateHealth(ctx context.Context, id string, score int, status model.Status, at time.Time) error

	// AddFeedback returns ErrNotFound for an unknown project and
	// ErrDuplicate when the client already submitted for that week.
	AddFeedback(ctx context.Context, f model.Feedback) error
	// ListFeedback returns feedback created at or after since, oldest first.
	ListFeedback(ctx context.Context, projectID string, since time.Time) ([]model.Feedback, error)

	// AddCheckIn returns ErrNotFound for an unknown project and
	// ErrDuplicate when the employee already checked in for that week.
	AddCheckIn(ctx context.Context, c model.CheckIn) error
	// ListCheckIns returns check-ins created at or after since, oldest first.
	ListCheckIns(ctx context.Context, projectID string, since time.Time) ([]model.CheckIn, error)

	AddRisk(ctx context.Context, r model.Risk) error
	GetRisk(ctx context.Context, id string) (model.Risk, error)
	// ListRisks returns every risk of a project, oldest first.
	ListRisks(ctx context.Context, projectID string) ([]model.Risk, error)
	// UpdateRiskStatus returns the updated risk.
	UpdateRiskStatus(ctx context.Context, id string, status model.RiskStatus, at time.Time) (model.Risk, error)

	// Watchlist returns the first n projects. n < 1 yields ErrInvalidLimit.
	Watchlist(ctx context.Context, n int) ([]WatchEntry, error)
	// Position returns the 1-based watchlist position of a project.
	Position(ctx context.Context, id string) (int, error)
	// Count returns the number of projects.
	Count(ctx context.Context) (int, error)

	Close() error
}
