package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nikether/stream-status/icecast"
	"github.com/nikether/stream-status/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type funcSource func(ctx context.Context) (*status.Report, error)

func (f funcSource) Fetch(ctx context.Context) (*status.Report, error) { return f(ctx) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reportWithTitle(title string) *status.Report {
	titleCopy := title
	return &status.Report{
		Status: &icecast.StreamStatus{
			IsOnline:         true,
			Mount:            "/stream",
			CurrentlyPlaying: &titleCopy,
		},
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func newTestPoller(source Source) *Poller {
	return New(Options{Source: source, Logger: discardLogger()})
}

func TestRefreshPrimesHistory(t *testing.T) {
	p := newTestPoller(funcSource(func(context.Context) (*status.Report, error) {
		return reportWithTitle("NTO – Trauma"), nil
	}))

	require.NoError(t, p.Refresh(context.Background()))

	snapshot := p.Snapshot()
	require.NotNil(t, snapshot.Status)
	assert.True(t, snapshot.Status.IsOnline)
	assert.Nil(t, snapshot.Error)
	require.Len(t, snapshot.History, 1)
	assert.Equal(t, "NTO – Trauma", snapshot.History[0].DisplayTitle)
	assert.NotEmpty(t, snapshot.History[0].ID)
}

func TestHistoryDeduplicatesConsecutiveTitles(t *testing.T) {
	titles := []string{"A", "A", "B"}
	var index atomic.Int32
	p := newTestPoller(funcSource(func(context.Context) (*status.Report, error) {
		i := index.Add(1) - 1
		return reportWithTitle(titles[i]), nil
	}))

	for range titles {
		require.NoError(t, p.Refresh(context.Background()))
	}

	snapshot := p.Snapshot()
	require.Len(t, snapshot.History, 2)
	assert.Equal(t, "B", snapshot.History[0].DisplayTitle)
	assert.Equal(t, "A", snapshot.History[1].DisplayTitle)
}

func TestHistoryReplacesDuplicateTitleAndCaps(t *testing.T) {
	titles := []string{"A", "B", "C", "A"}
	var index atomic.Int32
	p := newTestPoller(funcSource(func(context.Context) (*status.Report, error) {
		i := index.Add(1) - 1
		return reportWithTitle(titles[i]), nil
	}))
	for range titles {
		require.NoError(t, p.Refresh(context.Background()))
	}

	snapshot := p.Snapshot()
	// "A" moved back to the front instead of appearing twice.
	require.Len(t, snapshot.History, 3)
	assert.Equal(t, "A", snapshot.History[0].DisplayTitle)
	assert.Equal(t, "C", snapshot.History[1].DisplayTitle)
	assert.Equal(t, "B", snapshot.History[2].DisplayTitle)

	t.Run("capped at the limit", func(t *testing.T) {
		var n atomic.Int32
		p := newTestPoller(funcSource(func(context.Context) (*status.Report, error) {
			return reportWithTitle(string(rune('A' + n.Add(1)))), nil
		}))
		for i := 0; i < DefaultHistoryLimit+3; i++ {
			require.NoError(t, p.Refresh(context.Background()))
		}
		assert.Len(t, p.Snapshot().History, DefaultHistoryLimit)
	})
}

func TestFetchErrorKeepsStaleData(t *testing.T) {
	var fail atomic.Bool
	p := newTestPoller(funcSource(func(context.Context) (*status.Report, error) {
		if fail.Load() {
			return nil, errors.New("upstream request failed")
		}
		return reportWithTitle("NTO – Trauma"), nil
	}))

	require.NoError(t, p.Refresh(context.Background()))
	fail.Store(true)
	require.Error(t, p.Refresh(context.Background()))

	snapshot := p.Snapshot()
	require.NotNil(t, snapshot.Status, "stale status must survive a failed poll")
	assert.True(t, snapshot.Status.IsOnline)
	require.NotNil(t, snapshot.Error)
	assert.Equal(t, "upstream request failed", *snapshot.Error)
	assert.Len(t, snapshot.History, 1)

	fail.Store(false)
	require.NoError(t, p.Refresh(context.Background()))
	assert.Nil(t, p.Snapshot().Error)
}

func TestDeriveDisplayTitleFallbacks(t *testing.T) {
	artist := "NTO"
	title := "Trauma"

	t.Run("artist and title joined", func(t *testing.T) {
		st := &icecast.StreamStatus{Track: &icecast.TrackInfo{Artist: &artist, Title: &title}}
		got := deriveDisplayTitle(st)
		require.NotNil(t, got)
		assert.Equal(t, "NTO – Trauma", *got)
	})

	t.Run("title only", func(t *testing.T) {
		st := &icecast.StreamStatus{Track: &icecast.TrackInfo{Title: &title}}
		got := deriveDisplayTitle(st)
		require.NotNil(t, got)
		assert.Equal(t, "Trauma", *got)
	})

	t.Run("nothing known", func(t *testing.T) {
		assert.Nil(t, deriveDisplayTitle(&icecast.StreamStatus{}))
	})

	t.Run("blank now-playing ignored", func(t *testing.T) {
		blank := "   "
		st := &icecast.StreamStatus{CurrentlyPlaying: &blank, Track: &icecast.TrackInfo{Title: &title}}
		got := deriveDisplayTitle(st)
		require.NotNil(t, got)
		assert.Equal(t, "Trauma", *got)
	})
}

func TestSilentFetchDoesNotToggleIndicators(t *testing.T) {
	release := make(chan struct{})
	var entered atomic.Bool
	var fail atomic.Bool
	fail.Store(true)
	p := newTestPoller(funcSource(func(ctx context.Context) (*status.Report, error) {
		if fail.Load() {
			return nil, errors.New("upstream request failed")
		}
		entered.Store(true)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return reportWithTitle("NTO – Trauma"), nil
	}))

	// The initial fetch fails, so the poller has no data yet.
	require.Error(t, p.Refresh(context.Background()))
	fail.Store(false)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.fetch(context.Background(), true)
	}()
	require.Eventually(t, entered.Load, time.Second, time.Millisecond)

	snapshot := p.Snapshot()
	assert.False(t, snapshot.IsLoading, "a silent poll must not show the loading state")
	assert.False(t, snapshot.IsRefreshing)

	close(release)
	wg.Wait()
}

func TestTransitionHookFiresOnFlips(t *testing.T) {
	var online atomic.Bool
	online.Store(true)

	var mu sync.Mutex
	var transitions []bool

	source := funcSource(func(context.Context) (*status.Report, error) {
		report := reportWithTitle("NTO – Trauma")
		report.Status.IsOnline = online.Load()
		return report, nil
	})
	p := New(Options{
		Source: source,
		Logger: discardLogger(),
		OnTransition: func(isOnline bool, _ *icecast.StreamStatus) {
			mu.Lock()
			transitions = append(transitions, isOnline)
			mu.Unlock()
		},
	})

	require.NoError(t, p.Refresh(context.Background()))
	require.NoError(t, p.Refresh(context.Background())) // same state, no alert
	online.Store(false)
	require.NoError(t, p.Refresh(context.Background()))
	online.Store(true)
	require.NoError(t, p.Refresh(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false, true}, transitions)
}

func TestStartStopLeavesNothingRunning(t *testing.T) {
	var calls atomic.Int32
	p := New(Options{
		Source: funcSource(func(context.Context) (*status.Report, error) {
			calls.Add(1)
			return reportWithTitle("NTO – Trauma"), nil
		}),
		Interval: 10 * time.Millisecond,
		Logger:   discardLogger(),
	})

	p.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()

	// A second Stop is a no-op.
	p.Stop()
}

func TestDisabledIntervalOnlyFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	p := New(Options{
		Source: funcSource(func(context.Context) (*status.Report, error) {
			calls.Add(1)
			return reportWithTitle("NTO – Trauma"), nil
		}),
		Interval: 0,
		Logger:   discardLogger(),
	})

	p.Start()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	p.Stop()
}

func TestRefreshObservesCallerContext(t *testing.T) {
	p := newTestPoller(funcSource(func(ctx context.Context) (*status.Report, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := p.Refresh(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(started), time.Second)
}
