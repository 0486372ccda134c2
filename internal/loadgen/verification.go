package loadgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/pulse/internal/domain/health"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

// ErrScoreMismatch is returned when a served score differs from the local
// computation over the same records.
var ErrScoreMismatch = errors.New("served score differs from local computation")

// Input rebuilds the engine input the server should hold for this plan,
// assuming every record was accepted at the given time. The replayed
// feedback is never stored and is not included.
func (p Plan) Input(at time.Time) (health.Input, error) {
	var in health.Input
	var err error
	if in.Timeline.Start, err = time.Parse(dateLayout, p.StartDate); err != nil {
		return in, fmt.Errorf("start date: %w", err)
	}
	if in.Timeline.End, err = time.Parse(dateLayout, p.EndDate); err != nil {
		return in, fmt.Errorf("end date: %w", err)
	}
	for _, f := range p.Feedback {
		in.Feedbacks = append(in.Feedbacks, health.Feedback{
			SatisfactionRating: f.SatisfactionRating,
			IssueFlagged:       f.IssueFlagged,
			CreatedAt:          at,
		})
	}
	for _, c := range p.CheckIns {
		in.CheckIns = append(in.CheckIns, health.CheckIn{
			ConfidenceLevel:      c.ConfidenceLevel,
			CompletionPercentage: c.CompletionPercentage,
			CreatedAt:            at,
		})
	}
	for _, r := range p.Risks {
		sev, err := model.ParseSeverity(r.Severity)
		if err != nil {
			return in, err
		}
		st, err := model.ParseRiskStatus(r.Status)
		if err != nil {
			return in, err
		}
		in.Risks = append(in.Risks, health.Risk{Severity: sev, Status: st})
	}
	return in, nil
}

// Mismatch describes one project whose served score disagreed with the
// local engine.
type Mismatch struct {
	ProjectID      string
	Profile        string
	ServedScore    int
	ServedStatus   string
	ExpectedScore  int
	ExpectedStatus string
}

// compareScores recomputes every served score locally.
func compareScores(plans []Plan, scores []Score, window time.Duration) ([]Mismatch, error) {
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byID[p.ProjectID] = p
	}

	engine := health.NewEngine(health.WithRecentWindow(window))
	var out []Mismatch
	for _, sc := range scores {
		plan, ok := byID[sc.ProjectID]
		if !ok {
			return nil, fmt.Errorf("score for unknown project %s", sc.ProjectID)
		}
		in, err := plan.Input(sc.ComputedAt)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", sc.ProjectID, err)
		}
		want := engine.Compute(in, sc.ComputedAt)
		if want.Score != sc.HealthScore || string(want.Status) != sc.Status {
			out = append(out, Mismatch{
				ProjectID:      sc.ProjectID,
				Profile:        plan.Profile,
				ServedScore:    sc.HealthScore,
				ServedStatus:   sc.Status,
				ExpectedScore:  want.Score,
				ExpectedStatus: string(want.Status),
			})
		}
	}
	return out, nil
}

// verifyWatchlistConsistency checks ordering and that no generated project
// scored below the head of the watchlist.
func verifyWatchlistConsistency(scores []Score, watchlist []WatchEntry) error {
	if len(watchlist) == 0 {
		return fmt.Errorf("empty watchlist")
	}

	for i, e := range watchlist {
		if e.Position != i+1 {
			return fmt.Errorf("watchlist entry %d has position %d", i, e.Position)
		}
		if i > 0 && e.HealthScore < watchlist[i-1].HealthScore {
			return fmt.Errorf("watchlist not properly sorted: entry %d scores below entry %d", i, i-1)
		}
	}

	head := watchlist[0]
	for _, sc := range scores {
		if sc.HealthScore < head.HealthScore {
			return fmt.Errorf("project %s (score %d) is missing ahead of watchlist head %s (score %d)",
				sc.ProjectID, sc.HealthScore, head.ProjectID, head.HealthScore)
		}
	}
	return nil
}

// verifyResults checks served scores and the watchlist. Score mismatches
// fail the run; watchlist drift is only reported since other clients may
// be writing concurrently.
func verifyResults(ctx context.Context, config *Config, plans []Plan, scores []Score, watchlist []WatchEntry, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying results")

	if len(scores) == 0 {
		return fmt.Errorf("no scores to verify")
	}

	mismatches, err := compareScores(plans, scores, config.window())
	if err != nil {
		return err
	}
	stats.ScoreMismatches = len(mismatches)

	for i, m := range mismatches {
		if !config.Verbose && i > 0 {
			break
		}
		log.Warn(ctx, "score mismatch",
			logger.String("project_id", m.ProjectID),
			logger.String("profile", m.Profile),
			logger.Int("served", m.ServedScore),
			logger.String("servedStatus", m.ServedStatus),
			logger.Int("expected", m.ExpectedScore),
			logger.String("expectedStatus", m.ExpectedStatus))
	}

	if len(watchlist) > 0 {
		if err := verifyWatchlistConsistency(scores, watchlist); err != nil {
			log.Warn(ctx, "watchlist consistency warning", logger.Error(err))
		} else {
			log.Info(ctx, "watchlist consistency verified")
		}
	}

	if len(mismatches) > 0 {
		return fmt.Errorf("%d of %d projects: %w", len(mismatches), len(scores), ErrScoreMismatch)
	}
	log.Info(ctx, "result verification completed")
	return nil
}

// statusCounts tallies served statuses for the summary.
func statusCounts(scores []Score) map[string]int {
	out := make(map[string]int, 4)
	for _, sc := range scores {
		out[sc.Status]++
	}
	return out
}
