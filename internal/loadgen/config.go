// Package loadgen drives a running pulse server with synthetic projects and
// checks the scores it serves against the local health engine.
package loadgen

import (
	"time"

	"github.com/okian/pulse/internal/domain/health"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Projects   int           // Number of projects to generate
	TopN       int           // Watchlist entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Window     time.Duration // Recent window the server scores with
	OutputFile string        // Where generated plans are written; empty skips
	Verbose    bool          // Log every mismatch
}

func (c *Config) window() time.Duration {
	if c.Window <= 0 {
		return health.RecentWindow
	}
	return c.Window
}

// Plan is one generated project and everything submitted for it. The
// nested record types marshal to the API request bodies.
type Plan struct {
	ProjectID string         `json:"projectId"`
	Name      string         `json:"name"`
	Profile   string         `json:"profile"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Feedback  []FeedbackPlan `json:"feedback"`
	CheckIns  []CheckInPlan  `json:"checkIns"`
	Risks     []RiskPlan     `json:"risks"`
	Replay    bool           `json:"replay"` // resubmit the first feedback to provoke a conflict
}

// FeedbackPlan is a client feedback submission.
type FeedbackPlan struct {
	ClientID            string `json:"clientId"`
	SatisfactionRating  int    `json:"satisfactionRating"`
	CommunicationRating int    `json:"communicationRating"`
	IssueFlagged        bool   `json:"issueFlagged"`
}

// CheckInPlan is an employee check-in submission.
type CheckInPlan struct {
	EmployeeID           string  `json:"employeeId"`
	ProgressSummary      string  `json:"progressSummary"`
	ConfidenceLevel      int     `json:"confidenceLevel"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// RiskPlan is a risk report.
type RiskPlan struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	MitigationPlan string `json:"mitigationPlan"`
	Status         string `json:"status,omitempty"`
}

// Score is what the service returned for one project.
type Score struct {
	ProjectID   string           `json:"projectId"`
	HealthScore int              `json:"healthScore"`
	Status      string           `json:"status"`
	Breakdown   health.Breakdown `json:"breakdown"`
	Details     health.Details   `json:"details"`
	ComputedAt  time.Time        `json:"computedAt"`
}

// WatchEntry is one row of the served watchlist.
type WatchEntry struct {
	Position    int    `json:"position"`
	ProjectID   string `json:"projectId"`
	HealthScore int    `json:"healthScore"`
	Status      string `json:"status"`
}

// Stats holds run statistics.
type Stats struct {
	ProjectsGenerated int
	ProjectsCreated   int
	RecordsSubmitted  int
	RecordsAccepted   int
	RecordsDuplicate  int
	RecordsFailed     int
	ScoresRetrieved   int
	ScoreMismatches   int
	WatchlistEntries  int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
