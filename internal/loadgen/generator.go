package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	day                = 24 * time.Hour
	dateLayout         = "2006-01-02"
)

// Project profiles. Each one biases ratings, progress and risks toward a
// health band so a run covers every status.
const (
	profileHealthy  = "healthy"
	profileStrained = "strained"
	profileCritical = "critical"
	profileFinished = "finished"
	profileQuiet    = "quiet"
	profileMixed    = "mixed"
)

var profiles = []string{
	profileHealthy,
	profileHealthy,
	profileStrained,
	profileCritical,
	profileFinished,
	profileQuiet,
	profileMixed,
	profileMixed,
}

type ratingRange struct{ lo, hi int }

var ratingRanges = map[string]ratingRange{
	profileHealthy:  {4, 5},
	profileStrained: {2, 4},
	profileCritical: {1, 2},
	profileFinished: {3, 5},
	profileMixed:    {1, 5},
}

var flagChance = map[string]float64{
	profileStrained: 0.2,
	profileCritical: 0.5,
	profileFinished: 0.05,
	profileMixed:    0.1,
}

const replayChance = 0.1

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randInt returns a random int in [lo, hi].
func randInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	return lo + int(n.Int64())
}

func uniform(lo, hi float64) float64 { return lo + getRandomFloat()*(hi-lo) }

func chance(p float64) bool { return getRandomFloat() < p }

// generatePlans creates cfg.Projects plans with unique project IDs.
func generatePlans(ctx context.Context, config *Config, now time.Time, stats *Stats) ([]Plan, error) {
	logger.Get().Info(ctx, "generating project plans", logger.Int("projects", config.Projects))

	plans := make([]Plan, config.Projects)

	type planResult struct {
		index int
		plan  Plan
		err   error
	}

	resultChan := make(chan planResult, config.Projects)

	workerCount := max(1, min(config.Workers, config.Projects))
	perWorker := config.Projects / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.Projects
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- planResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- planResult{index: i, plan: generatePlan(i, uuid.NewString(), now)}
				}
			}
		}(start, end)
	}

	for i := 0; i < config.Projects; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during plan generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate plan %d: %w", result.index, result.err)
			}
			plans[result.index] = result.plan
		}
	}

	stats.ProjectsGenerated = len(plans)
	logger.Get().Info(ctx, "generated plans successfully", logger.Int("count", len(plans)))
	return plans, nil
}

// generatePlan builds one project around now using a randomly drawn profile.
func generatePlan(index int, id string, now time.Time) Plan {
	profile := profiles[randInt(0, len(profiles)-1)]
	today := now.UTC().Truncate(day)

	var start, end time.Time
	if profile == profileFinished {
		end = today.Add(-time.Duration(randInt(1, 30)) * day)
		start = end.Add(-time.Duration(randInt(30, 180)) * day)
	} else {
		start = today.Add(-time.Duration(randInt(10, 120)) * day)
		end = start.Add(time.Duration(randInt(30, 240)) * day)
	}

	plan := Plan{
		ProjectID: id,
		Name:      "load-" + strconv.Itoa(index),
		Profile:   profile,
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}
	if profile == profileQuiet {
		return plan
	}

	rr := ratingRanges[profile]
	for i := randInt(1, 4); i > 0; i-- {
		plan.Feedback = append(plan.Feedback, FeedbackPlan{
			ClientID:            "client-" + uuid.NewString()[:8],
			SatisfactionRating:  randInt(rr.lo, rr.hi),
			CommunicationRating: randInt(rr.lo, rr.hi),
			IssueFlagged:        chance(flagChance[profile]),
		})
	}

	expected := clamp(100*float64(now.Sub(start))/float64(end.Sub(start)), 0, 100)
	for i := randInt(1, 4); i > 0; i-- {
		plan.CheckIns = append(plan.CheckIns, CheckInPlan{
			EmployeeID:           "emp-" + uuid.NewString()[:8],
			ProgressSummary:      "synthetic progress",
			ConfidenceLevel:      randInt(rr.lo, rr.hi),
			CompletionPercentage: completionFor(profile, expected),
		})
	}

	plan.Risks = risksFor(profile)
	plan.Replay = chance(replayChance)
	return plan
}

func completionFor(profile string, expected float64) float64 {
	var v float64
	switch profile {
	case profileHealthy:
		v = expected + uniform(0, 10)
	case profileStrained:
		v = expected - uniform(10, 25)
	case profileCritical:
		v = expected - uniform(25, 50)
	case profileFinished:
		v = uniform(95, 100)
	default:
		v = uniform(0, 100)
	}
	return math.Round(clamp(v, 0, 100)*10) / 10
}

func risksFor(profile string) []RiskPlan {
	risk := func(sev, status string) RiskPlan {
		return RiskPlan{
			Title:          sev + " risk",
			Severity:       sev,
			MitigationPlan: "monitor",
			Status:         status,
		}
	}

	switch profile {
	case profileStrained:
		out := []RiskPlan{risk("Medium", "Open")}
		if chance(0.5) {
			out = append(out, risk("Low", "Open"))
		}
		return out
	case profileCritical:
		var out []RiskPlan
		for i := randInt(1, 3); i > 0; i-- {
			out = append(out, risk("High", "Open"))
		}
		return out
	case profileFinished:
		return []RiskPlan{risk("Medium", "Resolved")}
	case profileMixed:
		severities := []string{"Low", "Medium", "High"}
		statuses := []string{"Open", "Resolved"}
		var out []RiskPlan
		for i := randInt(0, 3); i > 0; i-- {
			out = append(out, risk(severities[randInt(0, 2)], statuses[randInt(0, 1)]))
		}
		return out
	default:
		return nil
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
