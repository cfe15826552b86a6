package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/eaanalyzer/internal/analytics"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/models"
	"github.com/rewired-gh/eaanalyzer/internal/report"
	"github.com/rewired-gh/eaanalyzer/internal/storage"
)

type reportOptions struct {
	offline bool
	format  string
	from    string
	to      string
	timeout time.Duration
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute the analytics once and print them",
		Long: `Fetch deals for the configured filters, compute every metric once and print
the result. With --offline the deals are read from the local history database
instead of the bridge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Read deals from the local database instead of the bridge")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.from, "from", "", "Start date YYYY-MM-DD (default from config)")
	cmd.Flags().StringVar(&opts.to, "to", "", "End date YYYY-MM-DD, inclusive (default now)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall deadline for fetching deals")
	return cmd
}

func runReport(ctx context.Context, root *rootOptions, opts *reportOptions) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, loc, err := loadConfig(root)
	if err != nil {
		return err
	}
	defer logger.Sync()

	now := time.Now().In(loc)
	criteria, err := reportCriteria(cfg.Criteria(now), opts, loc)
	if err != nil {
		return err
	}
	from, to := criteria.FetchWindow(now)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var deals []models.Deal
	source := "bridge"
	if opts.offline {
		source = "storage"
		store, err := storage.New(cfg.Storage.MaxSnapshots, cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		deals, err = store.LoadDeals(from, to)
		if err != nil {
			return err
		}
	} else {
		deals, err = newBridgeClient(cfg, loc).FetchDeals(ctx, from, to)
		if err != nil {
			return err
		}
	}
	logger.Debug("Loaded %d deals from %s", len(deals), source)

	snap := analytics.Compute(deals, criteria)
	return report.Write(os.Stdout, report.New(snap, criteria, len(deals), source, now), format)
}

// reportCriteria overrides the configured date window with --from/--to.
func reportCriteria(c models.FilterCriteria, opts *reportOptions, loc *time.Location) (models.FilterCriteria, error) {
	if opts.from != "" {
		t, err := time.ParseInLocation(time.DateOnly, opts.from, loc)
		if err != nil {
			return c, fmt.Errorf("invalid --from: %w", err)
		}
		c.DateFrom = t
	}
	if opts.to != "" {
		t, err := time.ParseInLocation(time.DateOnly, opts.to, loc)
		if err != nil {
			return c, fmt.Errorf("invalid --to: %w", err)
		}
		c.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
