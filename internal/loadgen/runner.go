package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Defaults applied to zero-valued Config fields.
const (
	defaultProjects = 100
	defaultTopN     = 10
	defaultTimeout  = 30 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Projects <= 0 {
		c.Projects = defaultProjects
	}
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * workerChannelMultiplier
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Run executes a complete load run against config.BaseURL.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	config.applyDefaults()
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting pulse load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("projects", config.Projects),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate plans
	plans, err := generatePlans(ctx, config, stats.StartTime, stats)
	if err != nil {
		return stats, fmt.Errorf("plan generation failed: %w", err)
	}
	if config.OutputFile != "" {
		if err := savePlansToFile(ctx, config.OutputFile, plans); err != nil {
			log.Warn(ctx, "failed to save plans to file", logger.Error(err))
		}
	}

	// Step 3: Create projects and submit records concurrently
	if err := submitPlans(ctx, config, plans, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	// Step 4: Recalculate and read back every score
	scores, err := fetchScores(ctx, config, plans, stats)
	if err != nil {
		return stats, fmt.Errorf("score retrieval failed: %w", err)
	}

	// Step 5: Read the watchlist
	watchlist, err := fetchWatchlist(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("watchlist retrieval failed: %w", err)
	}

	// Step 6: Verify results
	verifyErr := verifyResults(ctx, config, plans, scores, watchlist, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats, scores)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	log.Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.BaseURL, config.Timeout)
	if _, err := client.Get(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("failed to reach service: %w", err)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePlansToFile writes the generated plans as indented JSON.
func savePlansToFile(ctx context.Context, filename string, plans []Plan) error {
	if len(plans) == 0 {
		return fmt.Errorf("no plans to save")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plans: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "plans saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats, scores []Score) {
	var acceptRate, recordsPerSecond float64

	if stats.RecordsSubmitted > 0 {
		acceptRate = float64(stats.RecordsAccepted) / float64(stats.RecordsSubmitted) * 100
	}
	if stats.Duration > 0 {
		recordsPerSecond = float64(stats.RecordsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("projectsGenerated", stats.ProjectsGenerated),
		logger.Int("projectsCreated", stats.ProjectsCreated),
		logger.Int("recordsSubmitted", stats.RecordsSubmitted),
		logger.Int("recordsAccepted", stats.RecordsAccepted),
		logger.Int("recordsDuplicate", stats.RecordsDuplicate),
		logger.Int("recordsFailed", stats.RecordsFailed),
		logger.Int("scoresRetrieved", stats.ScoresRetrieved),
		logger.Int("scoreMismatches", stats.ScoreMismatches),
		logger.Int("watchlistEntries", stats.WatchlistEntries),
		logger.Any("statuses", statusCounts(scores)),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("recordsPerSecond", recordsPerSecond))
}
