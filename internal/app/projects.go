package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

// ProjectDetail is a project together with its place on the watchlist.
type ProjectDetail struct {
	model.Project
	WatchlistPosition int
}

// CreateProject registers a new project. Missing id, score and status are
// filled in; new projects start On Track at 100.
func (s *Service) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	now := s.clock()
	if p.ID == "" {
		p.ID = s.newID()
	}
	if p.Status == "" {
		p.Status = model.DefaultStatus
	}
	if p.HealthScore == 0 {
		p.HealthScore = model.DefaultHealthScore
	}
	p.CreatedAt, p.UpdatedAt = now, now
	if p.EmployeeIDs == nil {
		p.EmployeeIDs = []string{}
	}

	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return model.Project{}, fmt.Errorf("create project %s: %w", p.ID, err)
	}

	s.logger.Info(ctx, "project created",
		logger.String("project_id", p.ID),
		logger.String("name", p.Name),
	)
	return p, nil
}

// ProjectUpdate carries the fields to change on a project. Nil fields are
// left as they are; a non-nil EmployeeIDs replaces the whole list.
type ProjectUpdate struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	ClientID    *string
	EmployeeIDs []string
}

// UpdateProject applies u to a project. Moving either date changes the
// timeline score, so a recompute is scheduled when that happens.
func (s *Service) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (model.Project, error) {
	p, datesChanged, err := s.updateProject(ctx, id, u)
	if err != nil {
		return model.Project{}, err
	}

	s.logger.Info(ctx, "project updated",
		logger.String("project_id", id),
		logger.Bool("dates_changed", datesChanged),
	)
	if !datesChanged {
		return p, nil
	}

	s.afterSubmit(ctx, id, TriggerProjectUpdate)
	if fresh, err := s.store.GetProject(ctx, id); err == nil {
		p = fresh
	}
	return p, nil
}

func (s *Service) updateProject(ctx context.Context, id string, u ProjectUpdate) (model.Project, bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return model.Project{}, false, fmt.Errorf("update project %s: %w", id, err)
	}
	start, end := p.StartDate, p.EndDate

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.StartDate != nil {
		p.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		p.EndDate = *u.EndDate
	}
	if u.ClientID != nil {
		p.ClientID = *u.ClientID
	}
	if u.EmployeeIDs != nil {
		p.EmployeeIDs = slices.Clone(u.EmployeeIDs)
	}
	p.UpdatedAt = s.clock()

	if err := p.Validate(); err != nil {
		return model.Project{}, false, err
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return model.Project{}, false, fmt.Errorf("update project %s: %w", id, err)
	}
	return p, !p.StartDate.Equal(start) || !p.EndDate.Equal(end), nil
}

// DeleteProject removes a project with all of its feedback, check-ins and
// risks. Recomputes already queued for it are dropped by the workers.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	s.logger.Info(ctx, "project deleted", logger.String("project_id", id))
	return nil
}

// GetProject returns a project and its 1-based watchlist position.
func (s *Service) GetProject(ctx context.Context, id string) (ProjectDetail, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	pos, err := s.store.Position(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	return ProjectDetail{Project: p, WatchlistPosition: pos}, nil
}

// ListProjects returns every project.
func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	return s.store.ListProjects(ctx)
}

// Watchlist returns up to limit projects, lowest health first.
func (s *Service) Watchlist(ctx context.Context, limit int) ([]repository.WatchEntry, error) {
	return s.store.Watchlist(ctx, limit)
}

// ListFeedback returns every feedback submitted for a project, newest first.
func (s *Service) ListFeedback(ctx context.Context, projectID string) ([]model.Feedback, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	out, err := s.store.ListFeedback(ctx, projectID, time.Time{})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// ListRisks returns the risks reported against a project.
func (s *Service) ListRisks(ctx context.Context, projectID string) ([]model.Risk, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListRisks(ctx, projectID)
}
