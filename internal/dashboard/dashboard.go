// Package dashboard owns the live dashboard state: the active filter
// criteria, the last fetched deals and the snapshot derived from them.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rewired-gh/eaanalyzer/internal/analytics"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Trigger names what caused a refresh.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerTimer   Trigger = "timer"
	TriggerFilter  Trigger = "filter"
	TriggerManual  Trigger = "manual"
)

// Refresh outcomes reported to the RefreshObserver.
const (
	ResultApplied = "applied"
	ResultStale   = "stale"
	ResultError   = "error"
)

// Fetcher retrieves deals for a date window.
type Fetcher interface {
	FetchDeals(ctx context.Context, from, to time.Time) ([]models.Deal, error)
}

// Store persists fetched deals and snapshot summaries.
type Store interface {
	UpsertDeals(deals []models.Deal) error
	AddSnapshot(sum *models.SnapshotSummary) error
}

// Notifier is told about the first failure of a streak and about recovery.
type Notifier interface {
	SendError(err error) error
	SendRecovery(failures int) error
}

// RefreshObserver receives the outcome of every refresh attempt.
type RefreshObserver interface {
	ObserveRefresh(trigger Trigger, result string, elapsed time.Duration)
}

// Config configures a Service. Store, Notifier and Observer are optional.
type Config struct {
	Criteria models.FilterCriteria
	Store    Store
	Notifier Notifier
	Observer RefreshObserver
	// Now defaults to time.Now.
	Now func() time.Time
	// RollingDateTo moves Criteria.DateTo to the current time on every
	// refresh until SetCriteria is called.
	RollingDateTo bool
}

// View is a consistent copy of the dashboard state.
type View struct {
	Snapshot     analytics.Snapshot    `json:"snapshot"`
	Criteria     models.FilterCriteria `json:"criteria"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Error        string                `json:"error,omitempty"`
	Trigger      Trigger               `json:"trigger"`
	DealsFetched int                   `json:"deals_fetched"`
}

// Summary is the persisted headline of the view.
func (v View) Summary() models.SnapshotSummary {
	g := v.Snapshot.General
	sum := models.SnapshotSummary{
		ComputedAt:    v.UpdatedAt,
		Trigger:       string(v.Trigger),
		DateFrom:      v.Criteria.DateFrom,
		DateTo:        v.Criteria.DateTo,
		DealsFetched:  v.DealsFetched,
		TotalTrades:   g.TotalTrades,
		NetProfit:     g.NetProfit,
		ProfitFactor:  g.ProfitFactor,
		WinRate:       g.WinRate,
		MaxWinStreak:  g.MaxWinStreak,
		MaxLossStreak: g.MaxLossStreak,
	}
	if v.Snapshot.TopEA != nil {
		sum.TopEA = v.Snapshot.TopEA.EAID
	}
	return sum
}

// Service serializes refreshes and filter changes. Every trigger claims a
// sequence number; a result is applied only if no later trigger has
// already applied one.
type Service struct {
	fetcher  Fetcher
	store    Store
	notifier Notifier
	observer RefreshObserver
	now      func() time.Time

	mu                  sync.Mutex
	criteria            models.FilterCriteria
	rolling             bool
	rawDeals            []models.Deal
	rawWindow           *models.FilterCriteria
	snapshot            analytics.Snapshot
	lastErr             error
	updatedAt           time.Time
	trigger             Trigger
	seq                 uint64
	appliedSeq          uint64
	consecutiveFailures int
	listeners           []func(View)
	intervalListeners   []func(time.Duration)
}

// New creates a Service with an empty snapshot for cfg.Criteria.
func New(fetcher Fetcher, cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	criteria := cfg.Criteria.Normalize()
	return &Service{
		fetcher:  fetcher,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		observer: cfg.Observer,
		now:      now,
		criteria: criteria,
		rolling:  cfg.RollingDateTo,
		rawDeals: []models.Deal{},
		snapshot: analytics.Compute(nil, criteria),
	}
}

// Current returns a copy of the dashboard state.
func (s *Service) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Criteria returns the active filter criteria.
func (s *Service) Criteria() models.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Subscribe registers fn to run after each applied snapshot.
func (s *Service) Subscribe(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// OnIntervalChange registers fn to run when the resync interval changes.
func (s *Service) OnIntervalChange(fn func(time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervalListeners = append(s.intervalListeners, fn)
}

// Refresh fetches the active window and applies the derived snapshot.
// On failure the previous snapshot is kept and the error is recorded.
func (s *Service) Refresh(ctx context.Context, trigger Trigger) (*View, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	criteria := s.criteria
	if s.rolling {
		criteria.DateTo = s.now()
	}
	s.mu.Unlock()

	return s.fetchAndApply(ctx, seq, criteria, trigger)
}

// SetCriteria replaces the filter criteria and stops a rolling DateTo.
// When the retained deals were fetched for the same date window the snapshot
// is re-derived from them; otherwise, including while that window's fetch
// failed or is still running, it refetches.
func (s *Service) SetCriteria(ctx context.Context, c models.FilterCriteria) (*View, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}

	s.mu.Lock()
	prev := s.criteria
	s.criteria = c
	s.rolling = false
	s.seq++
	seq := s.seq
	sameWindow := s.rawWindow != nil && s.rawWindow.SameWindow(c)
	var intervalListeners []func(time.Duration)
	if prev.ResyncInterval() != c.ResyncInterval() {
		intervalListeners = slices.Clone(s.intervalListeners)
	}
	s.mu.Unlock()

	for _, fn := range intervalListeners {
		fn(c.ResyncInterval())
	}

	if !sameWindow {
		logger.Debug("Date window changed to %s..%s, refetching",
			c.DateFrom.Format(analytics.DateLayout), c.DateTo.Format(analytics.DateLayout))
		return s.fetchAndApply(ctx, seq, c, TriggerFilter)
	}

	start := time.Now()
	s.mu.Lock()
	if seq < s.appliedSeq {
		s.mu.Unlock()
		s.observe(TriggerFilter, ResultStale, time.Since(start))
		view := s.Current()
		return &view, nil
	}
	snapshot := analytics.Compute(s.rawDeals, c)
	view, listeners := s.applyLocked(seq, snapshot, TriggerFilter, false)
	s.mu.Unlock()

	logger.Debug("Recomputed snapshot from %d retained deals (%d after filters)",
		view.DealsFetched, view.Snapshot.General.TotalTrades)
	s.observe(TriggerFilter, ResultApplied, time.Since(start))
	s.persist(view, nil)
	notify(listeners, view)
	return &view, nil
}

func (s *Service) fetchAndApply(ctx context.Context, seq uint64, criteria models.FilterCriteria, trigger Trigger) (*View, error) {
	start := time.Now()
	from, to := criteria.FetchWindow(s.now())

	deals, err := s.fetcher.FetchDeals(ctx, from, to)
	if err != nil {
		err = fmt.Errorf("failed to fetch deals: %w", err)
		logger.Error("Refresh (%s) failed: %v", trigger, err)
		s.recordFailure(seq, err)
		s.observe(trigger, ResultError, time.Since(start))
		return nil, err
	}
	s.recordSuccess()

	s.mu.Lock()
	if applied := s.appliedSeq; seq < applied || !s.wantsWindowLocked(criteria) {
		s.mu.Unlock()
		logger.Info("Discarding stale %s result (seq %d, applied %d)", trigger, seq, applied)
		s.observe(trigger, ResultStale, time.Since(start))
		view := s.Current()
		return &view, nil
	}
	if s.rolling {
		s.criteria.DateTo = criteria.DateTo
	}
	// Filters may have changed during the fetch; the window has not.
	snapshot := analytics.Compute(deals, s.criteria)
	window := criteria
	s.rawDeals = deals
	s.rawWindow = &window
	view, listeners := s.applyLocked(seq, snapshot, trigger, true)
	s.mu.Unlock()

	logger.Info("Refresh (%s) applied: %d deals fetched, %d trades after filters, net %.2f",
		trigger, len(deals), view.Snapshot.General.TotalTrades, view.Snapshot.General.NetProfit)
	s.observe(trigger, ResultApplied, time.Since(start))
	s.persist(view, deals)
	notify(listeners, view)
	return &view, nil
}

// wantsWindowLocked reports whether deals fetched for c still match the
// active date window. A rolling window only pins DateFrom.
func (s *Service) wantsWindowLocked(c models.FilterCriteria) bool {
	if s.rolling {
		return s.criteria.DateFrom.Equal(c.DateFrom)
	}
	return s.criteria.SameWindow(c)
}

// applyLocked installs snapshot. Only fresh deals clear the last fetch error;
// a recompute from retained deals keeps it visible.
func (s *Service) applyLocked(seq uint64, snapshot analytics.Snapshot, trigger Trigger, fetched bool) (View, []func(View)) {
	s.appliedSeq = seq
	s.snapshot = snapshot
	if fetched {
		s.lastErr = nil
	}
	s.updatedAt = s.now()
	s.trigger = trigger
	return s.viewLocked(), slices.Clone(s.listeners)
}

func (s *Service) viewLocked() View {
	v := View{
		Snapshot:     s.snapshot,
		Criteria:     s.criteria,
		UpdatedAt:    s.updatedAt,
		Trigger:      s.trigger,
		DealsFetched: len(s.rawDeals),
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	return v
}

func (s *Service) recordFailure(seq uint64, err error) {
	s.mu.Lock()
	if seq >= s.appliedSeq {
		s.lastErr = err
	}
	s.consecutiveFailures++
	first := s.consecutiveFailures == 1
	s.mu.Unlock()

	if first && s.notifier != nil {
		if sendErr := s.notifier.SendError(err); sendErr != nil {
			logger.Warn("Failed to send error notification: %v", sendErr)
		}
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	failures := s.consecutiveFailures
	s.consecutiveFailures = 0
	s.mu.Unlock()

	if failures > 0 {
		logger.Info("Bridge recovered after %d failed refreshes", failures)
		if s.notifier != nil {
			if sendErr := s.notifier.SendRecovery(failures); sendErr != nil {
				logger.Warn("Failed to send recovery notification: %v", sendErr)
			}
		}
	}
}

func (s *Service) persist(view View, deals []models.Deal) {
	if s.store == nil {
		return
	}
	if len(deals) > 0 {
		if err := s.store.UpsertDeals(deals); err != nil {
			logger.Warn("Failed to persist deals: %v", err)
		}
	}
	sum := view.Summary()
	if err := s.store.AddSnapshot(&sum); err != nil {
		logger.Warn("Failed to persist snapshot summary: %v", err)
	}
}

func (s *Service) observe(trigger Trigger, result string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveRefresh(trigger, result, elapsed)
	}
}

func notify(listeners []func(View), view View) {
	for _, fn := range listeners {
		fn(view)
	}
}
