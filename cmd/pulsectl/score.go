package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/pulse/internal/domain/health"
	"github.com/okian/pulse/internal/domain/model"
)

const dayDuration = 24 * time.Hour

// scenario is the YAML shape accepted by `pulsectl score`.
type scenario struct {
	Now     string `yaml:"now"`
	Project struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"project"`
	Feedback []struct {
		Satisfaction int    `yaml:"satisfaction"`
		IssueFlagged bool   `yaml:"issue_flagged"`
		At           string `yaml:"at"`
	} `yaml:"feedback"`
	CheckIns []struct {
		Confidence int     `yaml:"confidence"`
		Completion float64 `yaml:"completion"`
		At         string  `yaml:"at"`
	} `yaml:"checkins"`
	Risks []struct {
		Severity string `yaml:"severity"`
		Status   string `yaml:"status"`
	} `yaml:"risks"`
}

type scoreOpts struct {
	input      string
	now        string
	windowDays int
	outputFmt  string
}

func newScoreCmd() *cobra.Command {
	var opts scoreOpts

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a project scenario described in YAML",
		Long: `Reads a scenario (project timeline, feedback, check-ins and risks) and
prints the health result the service would compute for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Scenario YAML file, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.now, "now", "", "Evaluation time, RFC3339 (default: scenario now, else current time)")
	cmd.Flags().IntVar(&opts.windowDays, "window-days", 28, "Trailing window for feedback and check-ins")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "json", "Output format: json or text")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runScore(out io.Writer, opts scoreOpts) error {
	if opts.windowDays <= 0 {
		return errors.New("--window-days must be positive")
	}

	raw, err := readInput(opts.input)
	if err != nil {
		return err
	}
	var sc scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}

	in, err := sc.toInput()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	switch {
	case opts.now != "":
		if now, err = time.Parse(time.RFC3339, opts.now); err != nil {
			return fmt.Errorf("--now: %w", err)
		}
	case sc.Now != "":
		if now, err = parseTime("now", sc.Now); err != nil {
			return err
		}
	}

	engine := health.NewEngine(health.WithRecentWindow(time.Duration(opts.windowDays) * dayDuration))
	res := engine.Compute(in, now)

	switch opts.outputFmt {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text":
		return renderText(out, res)
	default:
		return fmt.Errorf("unknown output format %q", opts.outputFmt)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return b, nil
}

func (sc scenario) toInput() (health.Input, error) {
	var in health.Input
	var err error

	if in.Timeline.Start, err = parseTime("project.start", sc.Project.Start); err != nil {
		return in, err
	}
	if in.Timeline.End, err = parseTime("project.end", sc.Project.End); err != nil {
		return in, err
	}

	for i, f := range sc.Feedback {
		at, err := parseTime(fmt.Sprintf("feedback[%d].at", i), f.At)
		if err != nil {
			return in, err
		}
		in.Feedbacks = append(in.Feedbacks, health.Feedback{
			SatisfactionRating: f.Satisfaction,
			IssueFlagged:       f.IssueFlagged,
			CreatedAt:          at,
		})
	}
	for i, c := range sc.CheckIns {
		at, err := parseTime(fmt.Sprintf("checkins[%d].at", i), c.At)
		if err != nil {
			return in, err
		}
		in.CheckIns = append(in.CheckIns, health.CheckIn{
			ConfidenceLevel:      c.Confidence,
			CompletionPercentage: c.Completion,
			CreatedAt:            at,
		})
	}
	for i, r := range sc.Risks {
		sev, err := model.ParseSeverity(r.Severity)
		if err != nil {
			return in, fmt.Errorf("risks[%d]: %w", i, err)
		}
		st, err := model.ParseRiskStatus(r.Status)
		if err != nil {
			return in, fmt.Errorf("risks[%d]: %w", i, err)
		}
		in.Risks = append(in.Risks, health.Risk{Severity: sev, Status: st})
	}
	return in, nil
}

func parseTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: want YYYY-MM-DD or RFC3339, got %q", field, s)
	}
	return t.UTC(), nil
}

func renderText(out io.Writer, res health.Result) error {
	_, err := fmt.Fprintf(out, `score:     %d (%s)
breakdown: satisfaction %d, confidence %d, timeline %d, risk %d
progress:  expected %d%%, actual %d%%
recent:    %d feedback, %d check-ins, %d flagged
open risks: high %d, medium %d, low %d
`,
		res.Score, res.Status,
		res.Breakdown.ClientSatisfaction, res.Breakdown.EmployeeConfidence,
		res.Breakdown.TimelinePerformance, res.Breakdown.RiskFactor,
		res.Details.ExpectedProgress, res.Details.ActualProgress,
		res.Details.RecentFeedbacks, res.Details.RecentCheckIns, res.Details.FlaggedIssues,
		res.Details.OpenRisks.High, res.Details.OpenRisks.Medium, res.Details.OpenRisks.Low,
	)
	return err
}
