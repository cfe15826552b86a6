package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/eaanalyzer/internal/config"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/mt5"
)

type rootOptions struct {
	configPath string
}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "eaanalyzer",
		Short:         "Trade analytics for MT5 Expert Advisors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")

	cmd.AddCommand(
		newServeCmd(opts),
		newReportCmd(opts),
	)
	return cmd
}

// loadConfig reads and validates configuration and initializes logging.
func loadConfig(opts *rootOptions) (*config.Config, *time.Location, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if opts.configPath != "" {
		logger.Info("Configuration loaded from %s", opts.configPath)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid mt5.timezone: %w", err)
	}
	return cfg, loc, nil
}

func newBridgeClient(cfg *config.Config, loc *time.Location) *mt5.Client {
	return mt5.NewClient(
		cfg.MT5.BaseURL,
		cfg.MT5.Timeout,
		mt5.ClientConfig{
			MaxRetries:          cfg.MT5.MaxRetries,
			RetryDelayBase:      cfg.MT5.RetryDelayBase,
			MaxIdleConns:        cfg.MT5.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MT5.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.MT5.IdleConnTimeout,
			Location:            loc,
		},
	)
}
