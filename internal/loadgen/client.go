package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// Submission outcomes.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

const workerChannelMultiplier = 2

// HTTPClient wraps http.Client with a base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends a request and decodes a 2xx JSON body into out when out is
// non-nil. The status code is returned whenever a response arrived.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) (int, error) {
	return c.do(ctx, http.MethodPost, path, body, out)
}

type createProjectBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// submitPlans creates every project and posts its records using a worker pool.
func submitPlans(ctx context.Context, config *Config, plans []Plan, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting plans", logger.Int("projects", len(plans)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	var created, submitted, accepted, duplicate, failed int64

	planChan := make(chan Plan, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range planChan {
				if ctx.Err() != nil {
					return
				}
				if _, err := client.Post(ctx, "/projects", createProjectBody{
					ID:        plan.ProjectID,
					Name:      plan.Name,
					StartDate: plan.StartDate,
					EndDate:   plan.EndDate,
				}, nil); err != nil {
					log.Warn(ctx, "project creation failed", logger.String("project_id", plan.ProjectID), logger.Error(err))
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&created, 1)

				for _, rec := range planRecords(plan) {
					atomic.AddInt64(&submitted, 1)
					switch submitRecord(ctx, client, rec) {
					case resultAccepted:
						atomic.AddInt64(&accepted, 1)
					case resultDuplicate:
						atomic.AddInt64(&duplicate, 1)
					default:
						atomic.AddInt64(&failed, 1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(planChan)
		for _, plan := range plans {
			select {
			case <-ctx.Done():
				return
			case planChan <- plan:
			}
		}
	}()

	wg.Wait()

	stats.ProjectsCreated = int(atomic.LoadInt64(&created))
	stats.RecordsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.RecordsAccepted = int(atomic.LoadInt64(&accepted))
	stats.RecordsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.RecordsFailed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "submission completed",
		logger.Int("projectsCreated", stats.ProjectsCreated),
		logger.Int("accepted", stats.RecordsAccepted),
		logger.Int("duplicate", stats.RecordsDuplicate),
		logger.Int("failed", stats.RecordsFailed))

	return ctx.Err()
}

type record struct {
	path string
	body any
}

// planRecords lists the submissions for a plan in posting order. A replayed
// feedback is appended last so it always conflicts.
func planRecords(plan Plan) []record {
	base := "/projects/" + plan.ProjectID
	var out []record
	for _, f := range plan.Feedback {
		out = append(out, record{base + "/feedback", f})
	}
	for _, c := range plan.CheckIns {
		out = append(out, record{base + "/checkins", c})
	}
	for _, r := range plan.Risks {
		out = append(out, record{base + "/risks", r})
	}
	if plan.Replay && len(plan.Feedback) > 0 {
		out = append(out, record{base + "/feedback", plan.Feedback[0]})
	}
	return out
}

func submitRecord(ctx context.Context, client *HTTPClient, rec record) string {
	code, err := client.Post(ctx, rec.path, rec.body, nil)
	switch {
	case err == nil:
		return resultAccepted
	case code == http.StatusConflict:
		return resultDuplicate
	default:
		return resultFailed
	}
}

// fetchScores forces a synchronous recalculation of every created project
// and collects the results.
func fetchScores(ctx context.Context, config *Config, plans []Plan, stats *Stats) ([]Score, error) {
	log := logger.Get()
	log.Info(ctx, "retrieving scores", logger.Int("projects", len(plans)))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	var (
		mu     sync.Mutex
		scores = make([]Score, 0, len(plans))
		wg     sync.WaitGroup
	)

	planChan := make(chan Plan, config.Workers*workerChannelMultiplier)
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for plan := range planChan {
				var sc Score
				if _, err := client.Post(ctx, "/projects/"+plan.ProjectID+"/calculate-health", nil, &sc); err != nil {
					if config.Verbose {
						log.Warn(ctx, "score retrieval failed", logger.String("project_id", plan.ProjectID), logger.Error(err))
					}
					continue
				}
				mu.Lock()
				scores = append(scores, sc)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(planChan)
		for _, plan := range plans {
			select {
			case <-ctx.Done():
				return
			case planChan <- plan:
			}
		}
	}()

	wg.Wait()

	stats.ScoresRetrieved = len(scores)
	log.Info(ctx, "scores retrieved", logger.Int("count", len(scores)))
	return scores, ctx.Err()
}

// fetchWatchlist reads the topN projects most in need of attention.
func fetchWatchlist(ctx context.Context, config *Config, stats *Stats) ([]WatchEntry, error) {
	client := newHTTPClient(config.BaseURL, config.Timeout)

	var entries []WatchEntry
	if _, err := client.Get(ctx, "/watchlist?limit="+strconv.Itoa(config.TopN), &entries); err != nil {
		return nil, err
	}
	stats.WatchlistEntries = len(entries)
	return entries, nil
}
