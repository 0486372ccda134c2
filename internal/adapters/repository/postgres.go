package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/pulse/internal/domain/model"
)

// Postgres error codes the store translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const projectColumns = `id, name, description, start_date, end_date, status, health_score,
	client_id, employee_ids, created_at, updated_at`

const feedbackColumns = `id, project_id, client_id, week_start, satisfaction_rating,
	communication_rating, comments, issue_flagged, created_at`

const checkInColumns = `id, project_id, employee_id, week_start, progress_summary, blockers,
	confidence_level, completion_percentage, created_at`

const riskColumns = `id, project_id, employee_id, title, severity, mitigation_plan, status,
	created_at, updated_at`

// PostgresStore is a Store backed by PostgreSQL through lib/pq. The schema
// is created by AutoMigrate.
type PostgresStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, queryTimeout: defaultQueryTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// translate maps driver errors onto the package sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (model.Project, error) {
	var p model.Project
	var status string
	var employees pq.StringArray
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &status,
		&p.HealthScore, &p.ClientID, &employees, &p.CreatedAt, &p.UpdatedAt)
	p.Status = model.Status(status)
	p.EmployeeIDs = []string(employees)
	return p, err
}

// employeeArray binds a nil slice as an empty array; the column is NOT NULL.
func employeeArray(ids []string) pq.StringArray {
	if ids == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ids)
}

func scanRisk(row scanner) (model.Risk, error) {
	var r model.Risk
	var severity, status string
	err := row.Scan(&r.ID, &r.ProjectID, &r.EmployeeID, &r.Title, &severity,
		&r.MitigationPlan, &status, &r.CreatedAt, &r.UpdatedAt)
	r.Severity = model.Severity(severity)
	r.Status = model.RiskStatus(status)
	return r, err
}

func (s *PostgresStore) CreateProject(ctx context.Context, p model.Project) error {
	defer observe("create_project", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Description, p.StartDate, p.EndDate, string(p.Status), p.HealthScore,
		p.ClientID, employeeArray(p.EmployeeIDs), p.CreatedAt, p.UpdatedAt)
	return translate("create project", err)
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p model.Project) error {
	defer observe("update_project", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = $2, description = $3, start_date = $4, end_date = $5,
		        client_id = $6, employee_ids = $7, updated_at = $8
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.StartDate, p.EndDate, p.ClientID,
		employeeArray(p.EmployeeIDs), p.UpdatedAt)
	if err != nil {
		return translate("update project", err)
	}
	return affected("update project", res)
}

// DeleteProject removes a project; its records go with it through the
// cascading foreign keys.
func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	defer observe("delete_project", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return translate("delete project", err)
	}
	return affected("delete project", res)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (model.Project, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return model.Project{}, translate("get project", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	defer observe("list_projects", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, translate("list projects", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, translate("scan project", err)
		}
		out = append(out, p)
	}
	return out, translate("list projects", rows.Err())
}

func (s *PostgresStore) UpdateHealth(ctx context.Context, id string, score int, status model.Status, at time.Time) error {
	defer observe("update_health", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET health_score = $2, status = $3, updated_at = $4 WHERE id = $1`,
		id, score, string(status), at)
	if err != nil {
		return translate("update health", err)
	}
	return affected("update health", res)
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddFeedback(ctx context.Context, f model.Feedback) error {
	defer observe("add_feedback", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_feedback (`+feedbackColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.ProjectID, f.ClientID, f.WeekStart, f.SatisfactionRating,
		f.CommunicationRating, f.Comments, f.IssueFlagged, f.CreatedAt)
	return translate("add feedback", err)
}

func (s *PostgresStore) ListFeedback(ctx context.Context, projectID string, since time.Time) ([]model.Feedback, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM client_feedback
		 WHERE project_id = $1 AND created_at >= $2 ORDER BY created_at ASC`,
		projectID, since)
	if err != nil {
		return nil, translate("list feedback", err)
	}
	defer rows.Close()

	var out []model.Feedback
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.ClientID, &f.WeekStart, &f.SatisfactionRating,
			&f.CommunicationRating, &f.Comments, &f.IssueFlagged, &f.CreatedAt); err != nil {
			return nil, translate("scan feedback", err)
		}
		out = append(out, f)
	}
	return out, translate("list feedback", rows.Err())
}

func (s *PostgresStore) AddCheckIn(ctx context.Context, c model.CheckIn) error {
	defer observe("add_checkin", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO employee_checkins (`+checkInColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.ProjectID, c.EmployeeID, c.WeekStart, c.ProgressSummary, c.Blockers,
		c.ConfidenceLevel, c.CompletionPercentage, c.CreatedAt)
	return translate("add check-in", err)
}

func (s *PostgresStore) ListCheckIns(ctx context.Context, projectID string, since time.Time) ([]model.CheckIn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkInColumns+` FROM employee_checkins
		 WHERE project_id = $1 AND created_at >= $2 ORDER BY created_at ASC`,
		projectID, since)
	if err != nil {
		return nil, translate("list check-ins", err)
	}
	defer rows.Close()

	var out []model.CheckIn
	for rows.Next() {
		var c model.CheckIn
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.EmployeeID, &c.WeekStart, &c.ProgressSummary,
			&c.Blockers, &c.ConfidenceLevel, &c.CompletionPercentage, &c.CreatedAt); err != nil {
			return nil, translate("scan check-in", err)
		}
		out = append(out, c)
	}
	return out, translate("list check-ins", rows.Err())
}

func (s *PostgresStore) AddRisk(ctx context.Context, r model.Risk) error {
	defer observe("add_risk", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO risks (`+riskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ProjectID, r.EmployeeID, r.Title, string(r.Severity), r.MitigationPlan,
		string(r.Status), r.CreatedAt, r.UpdatedAt)
	return translate("add risk", err)
}

func (s *PostgresStore) GetRisk(ctx context.Context, id string) (model.Risk, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := scanRisk(s.db.QueryRowContext(ctx, `SELECT `+riskColumns+` FROM risks WHERE id = $1`, id))
	if err != nil {
		return model.Risk{}, translate("get risk", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRisks(ctx context.Context, projectID string) ([]model.Risk, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+riskColumns+` FROM risks WHERE project_id = $1 ORDER BY created_at ASC, id ASC`,
		projectID)
	if err != nil {
		return nil, translate("list risks", err)
	}
	defer rows.Close()

	var out []model.Risk
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return nil, translate("scan risk", err)
		}
		out = append(out, r)
	}
	return out, translate("list risks", rows.Err())
}

func (s *PostgresStore) UpdateRiskStatus(ctx context.Context, id string, status model.RiskStatus, at time.Time) (model.Risk, error) {
	defer observe("update_risk", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := scanRisk(s.db.QueryRowContext(ctx,
		`UPDATE risks SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+riskColumns,
		id, string(status), at))
	if err != nil {
		return model.Risk{}, translate("update risk status", err)
	}
	return r, nil
}

func (s *PostgresStore) Watchlist(ctx context.Context, n int) ([]WatchEntry, error) {
	defer observe("watchlist", time.Now())
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, health_score, status FROM projects
		 ORDER BY health_score ASC, id ASC LIMIT $1`, n)
	if err != nil {
		return nil, translate("watchlist", err)
	}
	defer rows.Close()

	var out []WatchEntry
	for rows.Next() {
		e := WatchEntry{Position: len(out) + 1}
		var status string
		if err := rows.Scan(&e.ProjectID, &e.Name, &e.HealthScore, &status); err != nil {
			return nil, translate("scan watchlist", err)
		}
		e.Status = model.Status(status)
		out = append(out, e)
	}
	return out, translate("watchlist", rows.Err())
}

func (s *PostgresStore) Position(ctx context.Context, id string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var pos int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 + (SELECT COUNT(*) FROM projects q
		             WHERE (q.health_score, q.id) < (p.health_score, p.id))
		 FROM projects p WHERE p.id = $1`, id).Scan(&pos)
	if err != nil {
		return 0, translate("position", err)
	}
	return pos, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, translate("count", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
