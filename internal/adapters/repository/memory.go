package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/metrics"
)

// MemoryStore is an in-process Store. Projects are indexed by a treap so
// watchlist reads and position lookups stay O(log n).
type MemoryStore struct {
	mu       sync.RWMutex
	root     *node
	projects map[string]model.Project

	feedback      map[string][]model.Feedback
	feedbackWeeks map[weekKey]struct{}
	checkIns      map[string][]model.CheckIn
	checkInWeeks  map[weekKey]struct{}

	risks          map[string]model.Risk
	risksByProject map[string][]string
}

// weekKey identifies one author's submission slot for a project.
type weekKey struct {
	projectID string
	authorID  string
	week      int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:       make(map[string]model.Project),
		feedback:       make(map[string][]model.Feedback),
		feedbackWeeks:  make(map[weekKey]struct{}),
		checkIns:       make(map[string][]model.CheckIn),
		checkInWeeks:   make(map[weekKey]struct{}),
		risks:          make(map[string]model.Risk),
		risksByProject: make(map[string][]string),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func cloneProject(p model.Project) model.Project {
	p.EmployeeIDs = slices.Clone(p.EmployeeIDs)
	return p
}

func (s *MemoryStore) CreateProject(_ context.Context, p model.Project) error {
	defer observe("create_project", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[p.ID]; ok {
		return ErrDuplicate
	}
	s.projects[p.ID] = cloneProject(p)
	s.root = insert(s.root, p.ID, p.HealthScore)
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, ErrNotFound
	}
	return cloneProject(p), nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]model.Project, error) {
	defer observe("list_projects", time.Now())

	s.mu.RLock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, cloneProject(p))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Project) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, p model.Project) error {
	defer observe("update_project", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.StartDate = p.StartDate
	cur.EndDate = p.EndDate
	cur.ClientID = p.ClientID
	cur.EmployeeIDs = slices.Clone(p.EmployeeIDs)
	cur.UpdatedAt = p.UpdatedAt
	s.projects[p.ID] = cur
	return nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	defer observe("delete_project", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	s.root = deleteNode(s.root, id, p.HealthScore)
	delete(s.projects, id)

	for _, f := range s.feedback[id] {
		delete(s.feedbackWeeks, weekKey{id, f.ClientID, f.WeekStart.Unix()})
	}
	delete(s.feedback, id)
	for _, c := range s.checkIns[id] {
		delete(s.checkInWeeks, weekKey{id, c.EmployeeID, c.WeekStart.Unix()})
	}
	delete(s.checkIns, id)
	for _, rid := range s.risksByProject[id] {
		delete(s.risks, rid)
	}
	delete(s.risksByProject, id)
	return nil
}

func (s *MemoryStore) UpdateHealth(_ context.Context, id string, score int, status model.Status, at time.Time) error {
	defer observe("update_health", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	if p.HealthScore != score {
		s.root = deleteNode(s.root, id, p.HealthScore)
		s.root = insert(s.root, id, score)
	}
	p.HealthScore = score
	p.Status = status
	p.UpdatedAt = at
	s.projects[id] = p
	return nil
}

func (s *MemoryStore) AddFeedback(_ context.Context, f model.Feedback) error {
	defer observe("add_feedback", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[f.ProjectID]; !ok {
		return ErrNotFound
	}
	key := weekKey{f.ProjectID, f.ClientID, f.WeekStart.Unix()}
	if _, ok := s.feedbackWeeks[key]; ok {
		return ErrDuplicate
	}
	s.feedbackWeeks[key] = struct{}{}
	s.feedback[f.ProjectID] = append(s.feedback[f.ProjectID], f)
	return nil
}

func (s *MemoryStore) ListFeedback(_ context.Context, projectID string, since time.Time) ([]model.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Feedback
	for _, f := range s.feedback[projectID] {
		if !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Feedback) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AddCheckIn(_ context.Context, c model.CheckIn) error {
	defer observe("add_checkin", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[c.ProjectID]; !ok {
		return ErrNotFound
	}
	key := weekKey{c.ProjectID, c.EmployeeID, c.WeekStart.Unix()}
	if _, ok := s.checkInWeeks[key]; ok {
		return ErrDuplicate
	}
	s.checkInWeeks[key] = struct{}{}
	s.checkIns[c.ProjectID] = append(s.checkIns[c.ProjectID], c)
	return nil
}

func (s *MemoryStore) ListCheckIns(_ context.Context, projectID string, since time.Time) ([]model.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CheckIn
	for _, c := range s.checkIns[projectID] {
		if !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b model.CheckIn) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AddRisk(_ context.Context, r model.Risk) error {
	defer observe("add_risk", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[r.ProjectID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.risks[r.ID]; ok {
		return ErrDuplicate
	}
	s.risks[r.ID] = r
	s.risksByProject[r.ProjectID] = append(s.risksByProject[r.ProjectID], r.ID)
	return nil
}

func (s *MemoryStore) GetRisk(_ context.Context, id string) (model.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.risks[id]
	if !ok {
		return model.Risk{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListRisks(_ context.Context, projectID string) ([]model.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.risksByProject[projectID]
	out := make([]model.Risk, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.risks[id])
	}
	return out, nil
}

func (s *MemoryStore) UpdateRiskStatus(_ context.Context, id string, status model.RiskStatus, at time.Time) (model.Risk, error) {
	defer observe("update_risk", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.risks[id]
	if !ok {
		return model.Risk{}, ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	s.risks[id] = r
	return r, nil
}

func (s *MemoryStore) Watchlist(_ context.Context, n int) ([]WatchEntry, error) {
	defer observe("watchlist", time.Now())

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, len(s.projects)))
	collect(s.root, n, &ids)

	out := make([]WatchEntry, len(ids))
	for i, id := range ids {
		p := s.projects[id]
		out[i] = WatchEntry{
			Position:    i + 1,
			ProjectID:   id,
			Name:        p.Name,
			HealthScore: p.HealthScore,
			Status:      p.Status,
		}
	}
	return out, nil
}

func (s *MemoryStore) Position(_ context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return 0, ErrNotFound
	}
	return position(s.root, id, p.HealthScore), nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
