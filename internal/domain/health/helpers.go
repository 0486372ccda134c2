package health

import (
	"math"
	"time"
)

func recentFeedbacks(in []Feedback, cutoff time.Time) []Feedback {
	out := make([]Feedback, 0, len(in))
	for _, f := range in {
		if !f.CreatedAt.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out
}

func recentCheckIns(in []CheckIn, cutoff time.Time) []CheckIn {
	out := make([]CheckIn, 0, len(in))
	for _, c := range in {
		if !c.CreatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// The mean helpers expect a non-empty slice.

func meanRating(fs []Feedback) float64 {
	var sum float64
	for _, f := range fs {
		sum += float64(f.SatisfactionRating)
	}
	return sum / float64(len(fs))
}

func meanConfidence(cs []CheckIn) float64 {
	var sum float64
	for _, c := range cs {
		sum += float64(c.ConfidenceLevel)
	}
	return sum / float64(len(cs))
}

func meanCompletion(cs []CheckIn) float64 {
	var sum float64
	for _, c := range cs {
		sum += c.CompletionPercentage
	}
	return sum / float64(len(cs))
}

// days converts a duration to fractional days.
func days(d time.Duration) float64 {
	return float64(d) / float64(day)
}

// roundHalfUp rounds x to the nearest integer, with halves going toward +Inf.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
