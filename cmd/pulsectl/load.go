package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/pulse/internal/loadgen"
	"github.com/okian/pulse/pkg/logger"
)

const defaultLoadTimeout = 10 * time.Minute

func newLoadCmd() *cobra.Command {
	var (
		cfg        loadgen.Config
		windowDays int
		runTimeout time.Duration
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drive a running server with synthetic projects and verify its scores",
		Long: `Creates projects with generated feedback, check-ins and risks, forces a
recalculation of each one and compares the served scores with a local
computation. Exits non-zero when any score differs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			if windowDays <= 0 {
				return fmt.Errorf("--window-days must be positive")
			}
			cfg.Window = time.Duration(windowDays) * dayDuration

			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			stats, err := loadgen.Run(ctx, &cfg)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "projects %d/%d created, %d scored, %d mismatched; records %d accepted, %d duplicate, %d failed in %s\n",
					stats.ProjectsCreated, stats.ProjectsGenerated, stats.ScoresRetrieved, stats.ScoreMismatches,
					stats.RecordsAccepted, stats.RecordsDuplicate, stats.RecordsFailed, stats.Duration.Round(time.Millisecond))
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.Projects, "projects", 100, "Number of projects to generate")
	f.IntVar(&cfg.TopN, "top", 10, "Watchlist entries to fetch")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	f.DurationVar(&runTimeout, "run-timeout", defaultLoadTimeout, "Overall run deadline")
	f.IntVar(&windowDays, "window-days", 28, "Recent window the server scores with")
	f.StringVar(&cfg.OutputFile, "output", "", "Write generated plans to this JSON file")
	f.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every mismatch and failed retrieval")

	return cmd
}
