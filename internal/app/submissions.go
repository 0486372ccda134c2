package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Recompute triggers.
const (
	TriggerFeedback      = "feedback"
	TriggerCheckIn       = "checkin"
	TriggerRisk          = "risk"
	TriggerRiskStatus    = "risk_status"
	TriggerManual        = "manual"
	TriggerProjectUpdate = "project_update"
	TriggerBulk          = "recalculate_all"
)

// SubmitFeedback stores a client's weekly feedback and schedules a recompute.
func (s *Service) SubmitFeedback(ctx context.Context, f model.Feedback) (model.Feedback, error) {
	now := s.clock()
	if f.ID == "" {
		f.ID = s.newID()
	}
	f.CreatedAt = now
	f.WeekStart = model.WeekStart(now)

	if err := f.Validate(); err != nil {
		metrics.RecordRejection(TriggerFeedback, "invalid")
		return model.Feedback{}, err
	}
	if err := s.store.AddFeedback(ctx, f); err != nil {
		metrics.RecordRejection(TriggerFeedback, rejectReason(err))
		return model.Feedback{}, fmt.Errorf("submit feedback for %s: %w", f.ProjectID, err)
	}

	metrics.RecordSubmission(TriggerFeedback)
	s.afterSubmit(ctx, f.ProjectID, TriggerFeedback)
	return f, nil
}

// SubmitCheckIn stores an employee's weekly check-in and schedules a recompute.
func (s *Service) SubmitCheckIn(ctx context.Context, c model.CheckIn) (model.CheckIn, error) {
	now := s.clock()
	if c.ID == "" {
		c.ID = s.newID()
	}
	c.CreatedAt = now
	c.WeekStart = model.WeekStart(now)

	if err := c.Validate(); err != nil {
		metrics.RecordRejection(TriggerCheckIn, "invalid")
		return model.CheckIn{}, err
	}
	if err := s.store.AddCheckIn(ctx, c); err != nil {
		metrics.RecordRejection(TriggerCheckIn, rejectReason(err))
		return model.CheckIn{}, fmt.Errorf("submit check-in for %s: %w", c.ProjectID, err)
	}

	metrics.RecordSubmission(TriggerCheckIn)
	s.afterSubmit(ctx, c.ProjectID, TriggerCheckIn)
	return c, nil
}

// ReportRisk records a new risk against a project and schedules a recompute.
func (s *Service) ReportRisk(ctx context.Context, r model.Risk) (model.Risk, error) {
	now := s.clock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.Status == "" {
		r.Status = model.RiskOpen
	}
	r.CreatedAt, r.UpdatedAt = now, now

	if err := r.Validate(); err != nil {
		metrics.RecordRejection(TriggerRisk, "invalid")
		return model.Risk{}, err
	}
	if err := s.store.AddRisk(ctx, r); err != nil {
		metrics.RecordRejection(TriggerRisk, rejectReason(err))
		return model.Risk{}, fmt.Errorf("report risk for %s: %w", r.ProjectID, err)
	}

	metrics.RecordSubmission(TriggerRisk)
	s.afterSubmit(ctx, r.ProjectID, TriggerRisk)
	return r, nil
}

// UpdateRiskStatus opens or resolves a risk and schedules a recompute of its
// project.
func (s *Service) UpdateRiskStatus(ctx context.Context, riskID, status string) (model.Risk, error) {
	st, err := model.ParseRiskStatus(status)
	if err != nil {
		return model.Risk{}, err
	}
	r, err := s.store.UpdateRiskStatus(ctx, riskID, st, s.clock())
	if err != nil {
		return model.Risk{}, fmt.Errorf("update risk %s: %w", riskID, err)
	}

	metrics.RecordSubmission(TriggerRiskStatus)
	s.afterSubmit(ctx, r.ProjectID, TriggerRiskStatus)
	return r, nil
}

// afterSubmit hands the project to the workers, or recomputes inline when the
// pipeline is not running or is saturated. Failures here never undo the
// stored record.
func (s *Service) afterSubmit(ctx context.Context, projectID, trigger string) {
	if s.running() {
		err := s.RequestRecompute(ctx, projectID, trigger)
		if err == nil {
			return
		}
		s.logger.Warn(ctx, "recompute not queued, running inline",
			logger.String("project_id", projectID),
			logger.Error(err),
		)
	}
	if _, err := s.Recompute(ctx, projectID, trigger); err != nil {
		s.logger.Error(ctx, "inline recompute failed",
			logger.String("project_id", projectID),
			logger.String("trigger", trigger),
			logger.Error(err),
		)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, repository.ErrNotFound):
		return "unknown_project"
	default:
		return "store"
	}
}
