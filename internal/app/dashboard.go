package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/metrics"
)

// ProjectRef names a project in dashboard lists.
type ProjectRef struct {
	ID          string
	Name        string
	HealthScore int
	Status      model.Status
}

// Dashboard summarizes the portfolio.
type Dashboard struct {
	TotalProjects    int
	ByStatus         map[model.Status]int
	MissingCheckIns  []ProjectRef // no check-in within the configured window; Completed excluded
	HighRiskProjects []ProjectRef // at least one open High risk
	GeneratedAt      time.Time
}

// Dashboard builds the portfolio summary and refreshes the status gauges.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	now := s.clock()
	d := Dashboard{
		TotalProjects:    len(projects),
		ByStatus:         make(map[model.Status]int, len(model.Statuses)),
		MissingCheckIns:  []ProjectRef{},
		HighRiskProjects: []ProjectRef{},
		GeneratedAt:      now,
	}
	for _, st := range model.Statuses {
		d.ByStatus[st] = 0
	}

	checkInSince := now.Add(-s.missingCheckInWindow)
	for _, p := range projects {
		d.ByStatus[p.Status]++
		ref := ProjectRef{ID: p.ID, Name: p.Name, HealthScore: p.HealthScore, Status: p.Status}

		if p.Status != model.StatusCompleted {
			cs, err := s.store.ListCheckIns(ctx, p.ID, checkInSince)
			if err != nil {
				return Dashboard{}, fmt.Errorf("check-ins for %s: %w", p.ID, err)
			}
			if len(cs) == 0 {
				d.MissingCheckIns = append(d.MissingCheckIns, ref)
			}
		}

		risks, err := s.store.ListRisks(ctx, p.ID)
		if err != nil {
			return Dashboard{}, fmt.Errorf("risks for %s: %w", p.ID, err)
		}
		for _, r := range risks {
			if r.Status == model.RiskOpen && r.Severity == model.SeverityHigh {
				d.HighRiskProjects = append(d.HighRiskProjects, ref)
				break
			}
		}
	}

	for st, n := range d.ByStatus {
		metrics.UpdateProjectsByStatus(string(st), n)
	}
	metrics.UpdateTotalProjects(d.TotalProjects)
	return d, nil
}
