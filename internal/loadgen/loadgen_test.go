package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/http/api"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/health"
	"github.com/okian/pulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

func TestGeneratePlan(t *testing.T) {
	Convey("Given a batch of generated plans", t, func() {
		var plans []Plan
		for i := 0; i < 200; i++ {
			plans = append(plans, generatePlan(i, fmt.Sprintf("p-%d", i), now))
		}

		Convey("Then every plan is acceptable to the API", func() {
			for _, p := range plans {
				start, err := time.Parse(dateLayout, p.StartDate)
				So(err, ShouldBeNil)
				end, err := time.Parse(dateLayout, p.EndDate)
				So(err, ShouldBeNil)
				So(end.After(start), ShouldBeTrue)

				for _, f := range p.Feedback {
					So(f.SatisfactionRating, ShouldBeBetweenOrEqual, 1, 5)
					So(f.CommunicationRating, ShouldBeBetweenOrEqual, 1, 5)
					So(f.ClientID, ShouldNotBeBlank)
				}
				for _, c := range p.CheckIns {
					So(c.ConfidenceLevel, ShouldBeBetweenOrEqual, 1, 5)
					So(c.CompletionPercentage, ShouldBeBetweenOrEqual, 0, 100)
					So(c.ProgressSummary, ShouldNotBeBlank)
				}
				_, err = p.Input(now)
				So(err, ShouldBeNil)
			}
		})

		Convey("Then profiles shape the records", func() {
			for _, p := range plans {
				switch p.Profile {
				case profileQuiet:
					So(p.Feedback, ShouldBeEmpty)
					So(p.CheckIns, ShouldBeEmpty)
					So(p.Risks, ShouldBeEmpty)
				case profileFinished:
					end, _ := time.Parse(dateLayout, p.EndDate)
					So(end.Before(now), ShouldBeTrue)
					for _, c := range p.CheckIns {
						So(c.CompletionPercentage, ShouldBeGreaterThanOrEqualTo, 95)
					}
				case profileCritical:
					So(p.Risks, ShouldNotBeEmpty)
					for _, r := range p.Risks {
						So(r.Severity, ShouldEqual, "High")
					}
				case profileHealthy:
					So(p.Risks, ShouldBeEmpty)
				}
			}
		})
	})
}

func TestPlanInput(t *testing.T) {
	Convey("Given a finished plan", t, func() {
		plan := Plan{
			ProjectID: "p1",
			StartDate: "2025-01-01",
			EndDate:   "2025-03-01",
			Feedback:  []FeedbackPlan{{ClientID: "c1", SatisfactionRating: 5, CommunicationRating: 5}},
			CheckIns:  []CheckInPlan{{EmployeeID: "e1", ConfidenceLevel: 5, CompletionPercentage: 100}},
			Risks:     []RiskPlan{{Title: "t", Severity: "Medium", MitigationPlan: "m", Status: "Resolved"}},
			Replay:    true,
		}

		Convey("When it is scored at the time the records were accepted", func() {
			in, err := plan.Input(now)
			So(err, ShouldBeNil)
			res := health.Compute(in, now)

			Convey("Then the replayed feedback is not counted and the project is complete", func() {
				So(in.Feedbacks, ShouldHaveLength, 1)
				So(res.Details.OpenRisks.Medium, ShouldEqual, 0)
				So(string(res.Status), ShouldEqual, "Completed")
			})
		})

		Convey("When a risk severity is unknown", func() {
			plan.Risks[0].Severity = "extreme"
			_, err := plan.Input(now)

			Convey("Then conversion fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestCompareScores(t *testing.T) {
	Convey("Given a quiet plan", t, func() {
		plan := Plan{ProjectID: "p1", Profile: profileQuiet, StartDate: "2025-02-12", EndDate: "2025-05-12"}

		Convey("When the served score matches the local engine", func() {
			out, err := compareScores([]Plan{plan}, []Score{{ProjectID: "p1", HealthScore: 85, Status: "On Track", ComputedAt: now}}, health.RecentWindow)

			Convey("Then nothing is reported", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When the served score differs", func() {
			out, err := compareScores([]Plan{plan}, []Score{{ProjectID: "p1", HealthScore: 40, Status: "Critical", ComputedAt: now}}, health.RecentWindow)

			Convey("Then the mismatch carries both sides", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].ServedScore, ShouldEqual, 40)
				So(out[0].ExpectedScore, ShouldEqual, 85)
				So(out[0].Profile, ShouldEqual, profileQuiet)
			})
		})

		Convey("When a score belongs to no plan", func() {
			_, err := compareScores([]Plan{plan}, []Score{{ProjectID: "other", ComputedAt: now}}, health.RecentWindow)

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestVerifyWatchlistConsistency(t *testing.T) {
	Convey("Given served scores", t, func() {
		scores := []Score{{ProjectID: "a", HealthScore: 40}, {ProjectID: "b", HealthScore: 70}}

		Convey("Then an ordered watchlist headed by the lowest score passes", func() {
			wl := []WatchEntry{{Position: 1, ProjectID: "a", HealthScore: 40}, {Position: 2, ProjectID: "b", HealthScore: 70}}
			So(verifyWatchlistConsistency(scores, wl), ShouldBeNil)
		})

		Convey("Then an unsorted watchlist fails", func() {
			wl := []WatchEntry{{Position: 1, ProjectID: "b", HealthScore: 70}, {Position: 2, ProjectID: "a", HealthScore: 40}}
			So(verifyWatchlistConsistency(scores, wl), ShouldNotBeNil)
		})

		Convey("Then a gap in positions fails", func() {
			wl := []WatchEntry{{Position: 1, ProjectID: "a", HealthScore: 40}, {Position: 3, ProjectID: "b", HealthScore: 70}}
			So(verifyWatchlistConsistency(scores, wl), ShouldNotBeNil)
		})

		Convey("Then a head above a generated score fails", func() {
			wl := []WatchEntry{{Position: 1, ProjectID: "b", HealthScore: 70}}
			So(verifyWatchlistConsistency(scores, wl), ShouldNotBeNil)
		})

		Convey("Then an empty watchlist fails", func() {
			So(verifyWatchlistConsistency(scores, nil), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running pulse server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		srv := httptest.NewServer(api.NewServer(svc, svc, 100).Router())
		defer srv.Close()

		out := filepath.Join(t.TempDir(), "plans", "plans.json")
		cfg := &Config{
			BaseURL:    srv.URL,
			Projects:   30,
			Workers:    4,
			Timeout:    5 * time.Second,
			OutputFile: out,
		}

		Convey("When a load run completes", func() {
			stats, err := Run(ctx, cfg)
			So(err, ShouldBeNil)

			raw, readErr := os.ReadFile(out)
			So(readErr, ShouldBeNil)
			var plans []Plan
			So(json.Unmarshal(raw, &plans), ShouldBeNil)

			replays := 0
			for _, p := range plans {
				if p.Replay && len(p.Feedback) > 0 {
					replays++
				}
			}

			Convey("Then every project was created, scored and matched", func() {
				So(plans, ShouldHaveLength, 30)
				So(stats.ProjectsCreated, ShouldEqual, 30)
				So(stats.ScoresRetrieved, ShouldEqual, 30)
				So(stats.ScoreMismatches, ShouldEqual, 0)
				So(stats.RecordsFailed, ShouldEqual, 0)
				So(stats.RecordsDuplicate, ShouldEqual, replays)
				So(stats.WatchlistEntries, ShouldEqual, 10)
			})
		})

		Convey("When the server is unreachable", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			_, err := Run(ctx, cfg)

			Convey("Then the health check fails the run", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})
}
