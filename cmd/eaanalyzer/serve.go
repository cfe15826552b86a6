package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/eaanalyzer/internal/api"
	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/metrics"
	"github.com/rewired-gh/eaanalyzer/internal/scheduler"
	"github.com/rewired-gh/eaanalyzer/internal/storage"
	"github.com/rewired-gh/eaanalyzer/internal/stream"
	"github.com/rewired-gh/eaanalyzer/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the live dashboard: periodic resync, HTTP API and notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	cfg, loc, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	now := func() time.Time { return time.Now().In(loc) }
	bridge := newBridgeClient(cfg, loc)
	mets := metrics.New()

	dashCfg := dashboard.Config{
		Criteria:      cfg.Criteria(now()),
		Observer:      mets,
		Now:           now,
		// the configured window ends "now" until a client sets filters
		RollingDateTo: true,
	}

	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage.MaxSnapshots, cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		dashCfg.Store = store
	} else {
		logger.Debug("Snapshot history disabled")
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
		dashCfg.Notifier = telegramClient
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	dash := dashboard.New(bridge, dashCfg)
	dash.Subscribe(mets.ObserveView)

	hub := stream.NewHub(cfg.Server.AllowedOrigins)
	go hub.Run()
	defer hub.Stop()
	dash.Subscribe(func(v dashboard.View) { hub.BroadcastSnapshot(v) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.MT5.AutoConnect {
		if err := bridge.Connect(ctx); err != nil {
			logger.Warn("Terminal connect failed, continuing: %v", err)
		}
	}

	logger.Debug("Running initial refresh")
	if _, err := dash.Refresh(ctx, dashboard.TriggerStartup); err != nil {
		logger.Warn("Initial refresh failed, dashboard starts empty: %v", err)
	}

	sched := scheduler.New(ctx, dash)
	criteria := dash.Criteria()
	if err := sched.Start(criteria.ResyncInterval()); err != nil {
		logger.Fatal("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()
	dash.OnIntervalChange(func(d time.Duration) {
		if err := sched.Reschedule(d); err != nil {
			logger.Error("Failed to reschedule resync: %v", err)
		}
	})

	if store != nil {
		if err := sched.AddDaily("@hourly", func() {
			if err := store.RotateSnapshots(); err != nil {
				logger.Warn("Failed to rotate snapshots: %v", err)
			}
		}); err != nil {
			logger.Fatal("Failed to schedule snapshot rotation: %v", err)
		}
	}

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, dash.Current)
		if cfg.Telegram.SummaryCron != "" {
			if err := sched.AddDaily(cfg.Telegram.SummaryCron, func() {
				if err := telegramClient.SendSummary(dash.Current()); err != nil {
					logger.Warn("Failed to send daily summary: %v", err)
				}
			}); err != nil {
				logger.Fatal("Failed to schedule daily summary: %v", err)
			}
			logger.Info("Daily summary scheduled (%s)", cfg.Telegram.SummaryCron)
		}
	}

	var server *api.Server
	if cfg.Server.Enabled {
		deps := api.Dependencies{
			Dashboard: dash,
			Terminal:  bridge,
			Stream:    http.HandlerFunc(hub.ServeWS),
			Metrics:   mets.Handler(),
		}
		if store != nil {
			deps.History = store
		}
		server = api.NewServer(deps, api.Options{
			ListenAddr:     cfg.Server.ListenAddr,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})
		server.Start()
	}

	logger.Info("Dashboard running (resync every %v, window from %s)",
		criteria.ResyncInterval(),
		criteria.DateFrom.Format(time.DateOnly))

	<-sigChan
	logger.Info("Shutdown signal received, cleaning up...")
	cancel()

	if server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown: %v", err)
		}
	}

	logger.Info("Service stopped")
	return nil
}
