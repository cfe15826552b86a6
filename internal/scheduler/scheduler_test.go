package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
)

type countingRefresher struct {
	calls    atomic.Int32
	triggers chan dashboard.Trigger
}

func (r *countingRefresher) Refresh(_ context.Context, trigger dashboard.Trigger) (*dashboard.View, error) {
	r.calls.Add(1)
	select {
	case r.triggers <- trigger:
	default:
	}
	return &dashboard.View{}, nil
}

func entryDelay(t *testing.T, s *Scheduler) time.Duration {
	t.Helper()
	entry := s.cron.Entry(s.refreshID)
	require.True(t, entry.Valid())
	sched, ok := entry.Schedule.(cron.ConstantDelaySchedule)
	require.True(t, ok)
	return sched.Delay
}

func TestStart_RunsTimerRefresh(t *testing.T) {
	r := &countingRefresher{triggers: make(chan dashboard.Trigger, 1)}
	s := New(context.Background(), r)
	require.NoError(t, s.Start(time.Second))
	defer s.Stop()

	select {
	case trig := <-r.triggers:
		assert.Equal(t, dashboard.TriggerTimer, trig)
	case <-time.After(3 * time.Second):
		t.Fatal("resync did not fire")
	}
}

func TestReschedule_ReplacesEntry(t *testing.T) {
	s := New(context.Background(), &countingRefresher{})
	require.NoError(t, s.Reschedule(time.Minute))
	first := s.refreshID
	assert.Equal(t, time.Minute, entryDelay(t, s))

	require.NoError(t, s.Reschedule(5*time.Minute))
	assert.NotEqual(t, first, s.refreshID)
	assert.Equal(t, 5*time.Minute, entryDelay(t, s))
	assert.Equal(t, 5*time.Minute, s.Interval())
	assert.Len(t, s.cron.Entries(), 1)
	assert.False(t, s.cron.Entry(first).Valid())
}

func TestReschedule_SameIntervalKeepsEntry(t *testing.T) {
	s := New(context.Background(), &countingRefresher{})
	require.NoError(t, s.Reschedule(time.Minute))
	id := s.refreshID

	require.NoError(t, s.Reschedule(time.Minute))
	assert.Equal(t, id, s.refreshID)
}

func TestReschedule_RejectsNonPositive(t *testing.T) {
	s := New(context.Background(), &countingRefresher{})
	assert.Error(t, s.Reschedule(0))
	assert.Error(t, s.Reschedule(-time.Second))
}

func TestAddDaily(t *testing.T) {
	s := New(context.Background(), &countingRefresher{})
	assert.NoError(t, s.AddDaily("0 18 * * 1-5", func() {}))
	assert.NoError(t, s.AddDaily("@hourly", func() {}))
	assert.Error(t, s.AddDaily("not a cron spec", func() {}))
	assert.Len(t, s.cron.Entries(), 2)
}

func TestResync_SkippedAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &countingRefresher{}
	s := New(ctx, r)
	cancel()

	s.resync()
	assert.Equal(t, int32(0), r.calls.Load())
}

type blockingRefresher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (r *blockingRefresher) Refresh(_ context.Context, _ dashboard.Trigger) (*dashboard.View, error) {
	if r.calls.Add(1) == 1 {
		close(r.started)
		<-r.release
	}
	return &dashboard.View{}, nil
}

func TestResync_SkipsWhileRunningAcrossReschedule(t *testing.T) {
	r := &blockingRefresher{started: make(chan struct{}), release: make(chan struct{})}
	s := New(context.Background(), r)
	require.NoError(t, s.Reschedule(time.Minute))

	done := make(chan struct{})
	go func() {
		s.resync()
		close(done)
	}()
	<-r.started

	// The replacement entry fires while the old entry's run is in flight.
	require.NoError(t, s.Reschedule(5*time.Minute))
	s.resync()
	assert.Equal(t, int32(1), r.calls.Load())

	close(r.release)
	<-done
	s.resync()
	assert.Equal(t, int32(2), r.calls.Load())
}
