// Package health computes a project's composite health score from recent
// client feedback, employee check-ins, timeline progress and open risks.
//
// The calculation is a pure function of its input and the supplied clock
// value: there is no internal state, so an Engine may be shared freely.
package health

import (
	"math"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// RecentWindow bounds which feedback and check-ins are considered current.
const RecentWindow = 28 * 24 * time.Hour

// Factor weights; they sum to 1.0.
const (
	weightSatisfaction = 0.30
	weightConfidence   = 0.25
	weightTimeline     = 0.25
	weightRisk         = 0.20
)

// Neutral sub-scores used when a stream has no recent data.
const (
	defaultSatisfactionScore = 75
	defaultConfidenceScore   = 70
)

// Scoring constants.
const (
	maxScore            = 100
	ratingScale         = 5
	behindPenaltyFactor = 2.0
	aheadBonusFactor    = 0.5

	penaltyHighRisk   = 10
	penaltyMediumRisk = 5
	penaltyLowRisk    = 2
	penaltyFlagged    = 5
	maxRiskPenalty    = 30

	completionThreshold = 95
)

// Status thresholds on the final score.
const (
	ThresholdOnTrack = 80
	ThresholdAtRisk  = 60
)

const day = 24 * time.Hour

// Timeline is the planned start and end of a project.
type Timeline struct {
	Start time.Time
	End   time.Time
}

// Feedback is the part of a client feedback record the engine reads.
type Feedback struct {
	SatisfactionRating int
	IssueFlagged       bool
	CreatedAt          time.Time
}

// CheckIn is the part of an employee check-in the engine reads.
type CheckIn struct {
	ConfidenceLevel      int
	CompletionPercentage float64
	CreatedAt            time.Time
}

// Risk is the part of a risk report the engine reads.
type Risk struct {
	Severity model.Severity
	Status   model.RiskStatus
}

// Input holds everything the engine scores. Any collection may be empty.
type Input struct {
	Timeline  Timeline
	Feedbacks []Feedback
	CheckIns  []CheckIn
	Risks     []Risk
}

// Breakdown reports the weighted contribution of each factor, each rounded
// on its own. Their sum may differ from Result.Score by a point or two.
type Breakdown struct {
	ClientSatisfaction  int `json:"clientSatisfaction"`
	EmployeeConfidence  int `json:"employeeConfidence"`
	TimelinePerformance int `json:"timelinePerformance"`
	RiskFactor          int `json:"riskFactor"`
}

// SubScores are the unweighted factor scores on a 0-100 scale.
type SubScores struct {
	ClientSatisfaction  float64 `json:"clientSatisfaction"`
	EmployeeConfidence  float64 `json:"employeeConfidence"`
	TimelinePerformance float64 `json:"timelinePerformance"`
	RiskFactor          float64 `json:"riskFactor"`
}

// RiskCounts tallies open risks by severity.
type RiskCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Details carries the intermediate values behind a score.
type Details struct {
	AvgSatisfaction  float64    `json:"avgSatisfaction"` // 0 when no recent feedback
	AvgConfidence    float64    `json:"avgConfidence"`   // 0 when no recent check-ins
	ExpectedProgress int        `json:"expectedProgress"`
	ActualProgress   int        `json:"actualProgress"`
	FlaggedIssues    int        `json:"flaggedIssues"`
	OpenRisks        RiskCounts `json:"openRisks"`
	RecentFeedbacks  int        `json:"recentFeedbacks"`
	RecentCheckIns   int        `json:"recentCheckIns"`
}

// Result is the outcome of one health calculation.
type Result struct {
	Score     int          `json:"score"`
	Status    model.Status `json:"status"`
	Breakdown Breakdown    `json:"breakdown"`
	SubScores SubScores    `json:"subScores"`
	Details   Details      `json:"details"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecentWindow overrides the trailing window for feedback and check-ins.
// Non-positive values are ignored.
func WithRecentWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.window = window
		}
	}
}

// Engine evaluates health scores. The zero value is not usable; use NewEngine.
type Engine struct {
	window time.Duration
}

// NewEngine creates an engine using RecentWindow unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{window: RecentWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window returns the trailing window the engine filters records with.
func (e *Engine) Window() time.Duration { return e.window }

var defaultEngine = NewEngine()

// Compute scores in with the default engine.
func Compute(in Input, now time.Time) Result {
	return defaultEngine.Compute(in, now)
}

// Compute scores in as of now.
func (e *Engine) Compute(in Input, now time.Time) Result {
	cutoff := now.Add(-e.window)
	feedbacks := recentFeedbacks(in.Feedbacks, cutoff)
	checkIns := recentCheckIns(in.CheckIns, cutoff)

	var d Details
	d.RecentFeedbacks = len(feedbacks)
	d.RecentCheckIns = len(checkIns)

	satisfaction := float64(defaultSatisfactionScore)
	if len(feedbacks) > 0 {
		d.AvgSatisfaction = meanRating(feedbacks)
		satisfaction = d.AvgSatisfaction / ratingScale * 100
	}

	confidence := float64(defaultConfidenceScore)
	if len(checkIns) > 0 {
		d.AvgConfidence = meanConfidence(checkIns)
		confidence = d.AvgConfidence / ratingScale * 100
	}

	expected := expectedProgress(in.Timeline, now)
	actual := expected
	if len(checkIns) > 0 {
		actual = meanCompletion(checkIns)
	}
	timeline := timelineScore(actual - expected)

	d.OpenRisks = countOpenRisks(in.Risks)
	for _, f := range feedbacks {
		if f.IssueFlagged {
			d.FlaggedIssues++
		}
	}
	risk := float64(maxScore - riskPenalty(d.OpenRisks, d.FlaggedIssues))

	d.ExpectedProgress = roundHalfUp(expected)
	d.ActualProgress = roundHalfUp(actual)

	weighted := satisfaction*weightSatisfaction +
		confidence*weightConfidence +
		timeline*weightTimeline +
		risk*weightRisk
	score := clampInt(roundHalfUp(weighted), 0, maxScore)

	return Result{
		Score:  score,
		Status: deriveStatus(score, actual, in.Timeline.End, now),
		Breakdown: Breakdown{
			ClientSatisfaction:  roundHalfUp(satisfaction * weightSatisfaction),
			EmployeeConfidence:  roundHalfUp(confidence * weightConfidence),
			TimelinePerformance: roundHalfUp(timeline * weightTimeline),
			RiskFactor:          roundHalfUp(risk * weightRisk),
		},
		SubScores: SubScores{
			ClientSatisfaction:  satisfaction,
			EmployeeConfidence:  confidence,
			TimelinePerformance: timeline,
			RiskFactor:          risk,
		},
		Details: d,
	}
}

// StatusFromScore maps a score to a status without the completion check.
func StatusFromScore(score int) model.Status {
	switch {
	case score >= ThresholdOnTrack:
		return model.StatusOnTrack
	case score >= ThresholdAtRisk:
		return model.StatusAtRisk
	default:
		return model.StatusCritical
	}
}

// deriveStatus reports Completed for a project past its end date with
// near-full completion, whatever its score.
func deriveStatus(score int, actualProgress float64, end, now time.Time) model.Status {
	if !now.Before(end) && actualProgress >= completionThreshold {
		return model.StatusCompleted
	}
	return StatusFromScore(score)
}

// expectedProgress is the linear time-based projection, 0-100.
func expectedProgress(tl Timeline, now time.Time) float64 {
	total := math.Max(1, days(tl.End.Sub(tl.Start)))
	elapsed := math.Max(0, days(now.Sub(tl.Start)))
	return math.Min(100, elapsed/total*100)
}

// timelineScore penalizes slip twice as hard as it rewards being ahead.
func timelineScore(diff float64) float64 {
	switch {
	case diff < 0:
		return math.Max(0, maxScore+diff*behindPenaltyFactor)
	case diff > 0:
		return math.Min(maxScore, maxScore+diff*aheadBonusFactor)
	default:
		return maxScore
	}
}

func riskPenalty(open RiskCounts, flagged int) int {
	p := open.High*penaltyHighRisk +
		open.Medium*penaltyMediumRisk +
		open.Low*penaltyLowRisk +
		flagged*penaltyFlagged
	return min(p, maxRiskPenalty)
}

func countOpenRisks(risks []Risk) RiskCounts {
	var c RiskCounts
	for _, r := range risks {
		if r.Status != model.RiskOpen {
			continue
		}
		switch r.Severity {
		case model.SeverityHigh:
			c.High++
		case model.SeverityMedium:
			c.Medium++
		case model.SeverityLow:
			c.Low++
		}
	}
	return c
}
