// Package scheduler runs the periodic dashboard resync and auxiliary cron jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
)

// Refresher is the dashboard operation driven by the timer.
type Refresher interface {
	Refresh(ctx context.Context, trigger dashboard.Trigger) (*dashboard.View, error)
}

// Scheduler manages the resync entry and any extra cron jobs.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	refresher Refresher

	mu        sync.Mutex
	refreshID cron.EntryID
	interval  time.Duration

	// held for the duration of a resync, across entry swaps
	resyncMu sync.Mutex
}

// New creates a Scheduler. Jobs run with ctx, and cron skips a tick while
// the previous run of the same entry is still in progress. Resync ticks are
// also skipped while any earlier resync runs, including one started by an
// entry that Reschedule has since replaced.
func New(ctx context.Context, refresher Refresher) *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		ctx: ctx,
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		refresher: refresher,
	}
}

// Start registers the resync entry and starts the cron loop.
func (s *Scheduler) Start(interval time.Duration) error {
	if err := s.Reschedule(interval); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Scheduler started (resync every %v)", interval)
	return nil
}

// Reschedule replaces the resync entry with one firing every interval.
// Sub-second intervals are rounded up to one second by cron.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("resync interval must be positive, got %v", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshID != 0 && interval == s.interval {
		return nil
	}

	id, err := s.cron.AddFunc("@every "+interval.String(), s.resync)
	if err != nil {
		return fmt.Errorf("register resync job: %w", err)
	}
	if s.refreshID != 0 {
		s.cron.Remove(s.refreshID)
		logger.Info("Resync interval changed from %v to %v", s.interval, interval)
	}
	s.refreshID = id
	s.interval = interval
	return nil
}

// Interval returns the current resync interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// AddDaily registers fn on a standard five-field cron spec or descriptor
// such as "0 18 * * 1-5" or "@hourly".
func (s *Scheduler) AddDaily(spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("register job %q: %w", spec, err)
	}
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) resync() {
	if s.ctx.Err() != nil {
		return
	}
	if !s.resyncMu.TryLock() {
		logger.Debug("Previous resync still running, skipping tick")
		return
	}
	defer s.resyncMu.Unlock()
	logger.Debug("Starting scheduled resync")
	if _, err := s.refresher.Refresh(s.ctx, dashboard.TriggerTimer); err != nil {
		logger.Debug("Scheduled resync failed: %v", err)
	}
}

// cronLogger routes cron's own messages to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
