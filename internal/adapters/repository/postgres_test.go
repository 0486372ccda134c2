package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
)

func newMockStore(t *testing.T) (*repository.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewPostgresStore(db, repository.WithQueryTimeout(time.Second)), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

var projectCols = []string{"id", "name", "description", "start_date", "end_date", "status",
	"health_score", "client_id", "employee_ids", "created_at", "updated_at"}

func TestPostgresCreateProject(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	p := project("p1", 100, 0)

	mock.ExpectExec("INSERT INTO projects").
		WithArgs(p.ID, p.Name, p.Description, p.StartDate, p.EndDate, string(p.Status), p.HealthScore,
			p.ClientID, sqlmock.AnyArg(), p.CreatedAt, p.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO projects").
		WillReturnError(&pq.Error{Code: "23505"})

	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := s.CreateProject(ctx, p); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("second CreateProject = %v, want ErrDuplicate", err)
	}
	expectationsMet(t, mock)
}

// arrayLiteral matches a bound array by its Postgres text form.
type arrayLiteral string

func (a arrayLiteral) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && s == string(a)
}

func TestPostgresProjectEmployeeArray(t *testing.T) {
	Convey("Given a project without employees", t, func() {
		s, mock := newMockStore(t)
		ctx := context.Background()
		p := project("p1", 100, 0)
		p.EmployeeIDs = nil

		Convey("When it is inserted", func() {
			mock.ExpectExec("INSERT INTO projects").
				WithArgs(p.ID, p.Name, p.Description, p.StartDate, p.EndDate, string(p.Status), p.HealthScore,
					p.ClientID, arrayLiteral("{}"), p.CreatedAt, p.UpdatedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Convey("Then an empty array is bound instead of NULL", func() {
				So(s.CreateProject(ctx, p), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When it is updated", func() {
			mock.ExpectExec("UPDATE projects SET name").
				WithArgs(p.ID, p.Name, p.Description, p.StartDate, p.EndDate, p.ClientID,
					arrayLiteral("{}"), p.UpdatedAt).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Convey("Then an empty array is bound instead of NULL", func() {
				So(s.UpdateProject(ctx, p), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When employees are set", func() {
			p.EmployeeIDs = []string{"e1", "e2"}
			mock.ExpectExec("INSERT INTO projects").
				WithArgs(p.ID, p.Name, p.Description, p.StartDate, p.EndDate, string(p.Status), p.HealthScore,
					p.ClientID, arrayLiteral(`{"e1","e2"}`), p.CreatedAt, p.UpdatedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Convey("Then they are bound as an array literal", func() {
				So(s.CreateProject(ctx, p), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})
	})
}

func TestPostgresUpdateAndDeleteProject(t *testing.T) {
	Convey("Given a postgres store", t, func() {
		s, mock := newMockStore(t)
		ctx := context.Background()

		Convey("When updating a missing project", func() {
			mock.ExpectExec("UPDATE projects SET name").WillReturnResult(sqlmock.NewResult(0, 0))

			Convey("Then ErrNotFound is returned", func() {
				So(s.UpdateProject(ctx, project("missing", 100, 0)), ShouldEqual, repository.ErrNotFound)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When deleting projects", func() {
			mock.ExpectExec("DELETE FROM projects WHERE id = \\$1").
				WithArgs("p1").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("DELETE FROM projects WHERE id = \\$1").
				WithArgs("missing").
				WillReturnResult(sqlmock.NewResult(0, 0))

			Convey("Then existing rows are removed and missing ones are not found", func() {
				So(s.DeleteProject(ctx, "p1"), ShouldBeNil)
				So(s.DeleteProject(ctx, "missing"), ShouldEqual, repository.ErrNotFound)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})
	})
}

func TestPostgresGetProject(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	p := project("p1", 72, 0)
	p.EmployeeIDs = []string{"e1", "e2"}

	mock.ExpectQuery("SELECT (.+) FROM projects WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(projectCols).AddRow(
			p.ID, p.Name, p.Description, p.StartDate, p.EndDate, string(p.Status),
			p.HealthScore, p.ClientID, "{e1,e2}", p.CreatedAt, p.UpdatedAt))
	mock.ExpectQuery("SELECT (.+) FROM projects WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := s.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.HealthScore != 72 || got.Status != model.StatusAtRisk {
		t.Errorf("got score %d status %q", got.HealthScore, got.Status)
	}
	if len(got.EmployeeIDs) != 2 || got.EmployeeIDs[1] != "e2" {
		t.Errorf("employee ids = %v", got.EmployeeIDs)
	}

	if _, err := s.GetProject(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetProject(missing) = %v, want ErrNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresUpdateHealth(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	at := epoch.Add(time.Hour)

	mock.ExpectExec("UPDATE projects SET health_score").
		WithArgs("p1", 64, string(model.StatusAtRisk), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE projects SET health_score").
		WithArgs("missing", 64, string(model.StatusAtRisk), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.UpdateHealth(ctx, "p1", 64, model.StatusAtRisk, at); err != nil {
		t.Fatalf("UpdateHealth: %v", err)
	}
	if err := s.UpdateHealth(ctx, "missing", 64, model.StatusAtRisk, at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("UpdateHealth(missing) = %v, want ErrNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresAddFeedback(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	f := model.Feedback{ID: "f1", ProjectID: "p1", ClientID: "c1", WeekStart: epoch,
		SatisfactionRating: 5, CommunicationRating: 4, CreatedAt: epoch}

	mock.ExpectExec("INSERT INTO client_feedback").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO client_feedback").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("INSERT INTO client_feedback").WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectExec("INSERT INTO client_feedback").WillReturnError(errors.New("connection reset"))

	if err := s.AddFeedback(ctx, f); err != nil {
		t.Fatalf("AddFeedback: %v", err)
	}
	if err := s.AddFeedback(ctx, f); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("duplicate week = %v, want ErrDuplicate", err)
	}
	if err := s.AddFeedback(ctx, f); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown project = %v, want ErrNotFound", err)
	}
	err := s.AddFeedback(ctx, f)
	if err == nil || errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("driver failure = %v, want wrapped driver error", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresListRecentRecords(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	since := epoch.AddDate(0, 0, -28)

	mock.ExpectQuery("SELECT (.+) FROM client_feedback").
		WithArgs("p1", since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "client_id", "week_start",
			"satisfaction_rating", "communication_rating", "comments", "issue_flagged", "created_at"}).
			AddRow("f1", "p1", "c1", epoch, 4, 5, "", true, epoch))

	mock.ExpectQuery("SELECT (.+) FROM employee_checkins").
		WithArgs("p1", since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "employee_id", "week_start",
			"progress_summary", "blockers", "confidence_level", "completion_percentage", "created_at"}).
			AddRow("c1", "p1", "e1", epoch, "shipping", "", 3, 62.5, epoch).
			AddRow("c2", "p1", "e2", epoch, "testing", "env", 4, 70.0, epoch))

	fs, err := s.ListFeedback(ctx, "p1", since)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(fs) != 1 || !fs[0].IssueFlagged || fs[0].SatisfactionRating != 4 {
		t.Errorf("feedback = %+v", fs)
	}

	cs, err := s.ListCheckIns(ctx, "p1", since)
	if err != nil {
		t.Fatalf("ListCheckIns: %v", err)
	}
	if len(cs) != 2 || cs[0].CompletionPercentage != 62.5 || cs[1].ConfidenceLevel != 4 {
		t.Errorf("check-ins = %+v", cs)
	}
	expectationsMet(t, mock)
}

func TestPostgresRisks(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	riskCols := []string{"id", "project_id", "employee_id", "title", "severity",
		"mitigation_plan", "status", "created_at", "updated_at"}
	at := epoch.Add(time.Hour)

	mock.ExpectExec("INSERT INTO risks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE risks SET status").
		WithArgs("r1", string(model.RiskResolved), at).
		WillReturnRows(sqlmock.NewRows(riskCols).
			AddRow("r1", "p1", "e1", "vendor", "High", "escalate", "Resolved", epoch, at))
	mock.ExpectQuery("UPDATE risks SET status").
		WithArgs("missing", string(model.RiskResolved), at).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM risks WHERE project_id").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(riskCols).
			AddRow("r1", "p1", "e1", "vendor", "High", "escalate", "Resolved", epoch, at))

	err := s.AddRisk(ctx, model.Risk{ID: "r1", ProjectID: "p1", Title: "vendor",
		Severity: model.SeverityHigh, MitigationPlan: "escalate", Status: model.RiskOpen})
	if err != nil {
		t.Fatalf("AddRisk: %v", err)
	}

	r, err := s.UpdateRiskStatus(ctx, "r1", model.RiskResolved, at)
	if err != nil {
		t.Fatalf("UpdateRiskStatus: %v", err)
	}
	if r.Status != model.RiskResolved || r.Severity != model.SeverityHigh {
		t.Errorf("risk = %+v", r)
	}
	if _, err := s.UpdateRiskStatus(ctx, "missing", model.RiskResolved, at); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdateRiskStatus(missing) = %v, want ErrNotFound", err)
	}

	list, err := s.ListRisks(ctx, "p1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListRisks = %v, %v", list, err)
	}
	expectationsMet(t, mock)
}

func TestPostgresWatchlist(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name, health_score, status FROM projects").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "health_score", "status"}).
			AddRow("p2", "Beta", 41, "Critical").
			AddRow("p1", "Alpha", 77, "At Risk"))
	mock.ExpectQuery("SELECT 1 \\+ \\(SELECT COUNT").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM projects").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	if _, err := s.Watchlist(ctx, 0); !errors.Is(err, repository.ErrInvalidLimit) {
		t.Errorf("Watchlist(0) = %v, want ErrInvalidLimit", err)
	}

	list, err := s.Watchlist(ctx, 2)
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}
	if len(list) != 2 || list[0].ProjectID != "p2" || list[0].Position != 1 || list[1].Position != 2 {
		t.Errorf("watchlist = %+v", list)
	}
	if list[0].Status != model.StatusCritical {
		t.Errorf("status = %q", list[0].Status)
	}

	pos, err := s.Position(ctx, "p1")
	if err != nil || pos != 2 {
		t.Errorf("Position = %d, %v", pos, err)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}
	expectationsMet(t, mock)
}
