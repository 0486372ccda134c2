package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pulse/internal/adapters/events"
	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/health"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Recomputation is the outcome of recalculating one project.
type Recomputation struct {
	ProjectID  string
	OldScore   int
	OldStatus  model.Status
	Result     health.Result
	ComputedAt time.Time
}

// Changed reports whether the score or the status moved.
func (r Recomputation) Changed() bool {
	return r.OldScore != r.Result.Score || r.OldStatus != r.Result.Status
}

// Recompute recalculates and persists a project's health. Calls for the same
// project are serialized so the stored score always reflects the latest read.
func (s *Service) Recompute(ctx context.Context, projectID, trigger string) (Recomputation, error) {
	start := time.Now()
	unlock := s.locks.Lock(projectID)
	defer unlock()

	rc, err := s.recompute(ctx, projectID, trigger)
	if err != nil {
		metrics.RecordRecomputeError()
		return Recomputation{}, err
	}
	metrics.RecordRecompute(trigger, float64(time.Since(start).Microseconds())/1000)

	if rc.Changed() {
		s.publish(ctx, rc, trigger)
	}
	return rc, nil
}

func (s *Service) recompute(ctx context.Context, projectID, trigger string) (Recomputation, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return Recomputation{}, fmt.Errorf("load project %s: %w", projectID, err)
	}

	now := s.clock()
	since := now.Add(-s.recentWindow)
	feedbacks, err := s.store.ListFeedback(ctx, projectID, since)
	if err != nil {
		return Recomputation{}, fmt.Errorf("load feedback for %s: %w", projectID, err)
	}
	checkIns, err := s.store.ListCheckIns(ctx, projectID, since)
	if err != nil {
		return Recomputation{}, fmt.Errorf("load check-ins for %s: %w", projectID, err)
	}
	risks, err := s.store.ListRisks(ctx, projectID)
	if err != nil {
		return Recomputation{}, fmt.Errorf("load risks for %s: %w", projectID, err)
	}

	res := s.engine.Compute(health.InputFor(p, feedbacks, checkIns, risks), now)
	if err := s.store.UpdateHealth(ctx, projectID, res.Score, res.Status, now); err != nil {
		return Recomputation{}, fmt.Errorf("store health for %s: %w", projectID, err)
	}

	if p.Status != res.Status {
		metrics.RecordStatusTransition(string(p.Status), string(res.Status))
	}
	s.logger.Debug(ctx, "health recomputed",
		logger.String("project_id", projectID),
		logger.String("trigger", trigger),
		logger.Int("old_score", p.HealthScore),
		logger.Int("score", res.Score),
		logger.String("status", string(res.Status)),
	)

	return Recomputation{
		ProjectID:  projectID,
		OldScore:   p.HealthScore,
		OldStatus:  p.Status,
		Result:     res,
		ComputedAt: now,
	}, nil
}

func (s *Service) publish(ctx context.Context, rc Recomputation, trigger string) {
	e := events.HealthChanged{
		ProjectID:  rc.ProjectID,
		OldScore:   rc.OldScore,
		NewScore:   rc.Result.Score,
		OldStatus:  rc.OldStatus,
		NewStatus:  rc.Result.Status,
		Trigger:    trigger,
		ComputedAt: rc.ComputedAt,
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error(ctx, "failed to publish health change",
			logger.String("project_id", rc.ProjectID),
			logger.Error(err),
		)
	}
}

// RequestRecompute schedules an asynchronous recompute. A project that
// already has one pending is not queued twice. Returns ErrBackpressure when
// the queue or the pending set is full.
func (s *Service) RequestRecompute(ctx context.Context, projectID, trigger string) error {
	s.mu.RLock()
	started := s.started
	d, q := s.deduper, s.queue
	s.mu.RUnlock()

	if !started {
		return fmt.Errorf("recompute %s: service not started", projectID)
	}

	pending, err := d.Mark(ctx, projectID)
	if err != nil {
		return fmt.Errorf("recompute %s: %w: %w", projectID, ErrBackpressure, err)
	}
	if pending {
		metrics.RecordRecomputeCoalesced()
		return nil
	}

	req := model.RecomputeRequest{ProjectID: projectID, Trigger: trigger, RequestedAt: s.clock()}
	if err := q.Enqueue(ctx, req); err != nil {
		d.Clear(ctx, projectID)
		return fmt.Errorf("recompute %s: %w: %w", projectID, ErrBackpressure, err)
	}
	return nil
}

// process is the worker entry point. The pending mark is cleared before the
// read so submissions landing mid-recompute queue a fresh pass.
func (s *Service) process(ctx context.Context, r model.RecomputeRequest) error {
	s.deduper.Clear(ctx, r.ProjectID)
	_, err := s.Recompute(ctx, r.ProjectID, r.Trigger)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug(ctx, "dropping recompute of deleted project",
			logger.String("project_id", r.ProjectID))
		return nil
	}
	return err
}

// RecalculateAll recomputes every project synchronously and reports each
// outcome. Projects that fail are logged and omitted; their errors are joined.
func (s *Service) RecalculateAll(ctx context.Context) ([]Recomputation, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Recomputation, 0, len(projects))
	var errs []error
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rc, err := s.Recompute(ctx, p.ID, TriggerBulk)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rc)
	}

	s.logger.Info(ctx, "recalculated all projects",
		logger.Int("projects", len(projects)),
		logger.Int("updated", len(out)),
		logger.Int("failed", len(projects)-len(out)),
	)
	return out, errors.Join(errs...)
}
