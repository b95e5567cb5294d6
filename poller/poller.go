// Package poller keeps the latest normalized stream status fresh by polling
// on a fixed cadence, and derives a deduplicated "now playing" history from
// successive snapshots.
package poller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikether/stream-status/icecast"
	"github.com/nikether/stream-status/logger"
	sentryhelper "github.com/nikether/stream-status/sentry_helper"
	"github.com/nikether/stream-status/status"
)

// DefaultHistoryLimit caps the derived track history.
const DefaultHistoryLimit = 8

// DefaultInterval is the cadence of silent background polls.
const DefaultInterval = 45 * time.Second

// Source produces status reports. Implemented by status.Client and by
// EndpointSource for polling over HTTP.
type Source interface {
	Fetch(ctx context.Context) (*status.Report, error)
}

// HistoryEntry is one row of the derived "now playing" timeline.
type HistoryEntry struct {
	ID             string               `json:"id"`
	DisplayTitle   string               `json:"displayTitle"`
	TrackTitle     *string              `json:"trackTitle"`
	TrackArtist    *string              `json:"trackArtist"`
	ArtworkURL     *string              `json:"artworkUrl"`
	StartedAt      string               `json:"startedAt"`
	Listeners      *float64             `json:"listeners"`
	Bitrate        *float64             `json:"bitrate"`
	StatusSnapshot icecast.StreamStatus `json:"statusSnapshot"`
}

// Snapshot is the externally visible poller state.
type Snapshot struct {
	Status       *icecast.StreamStatus `json:"status"`
	UpdatedAt    *string               `json:"updatedAt"`
	History      []HistoryEntry        `json:"history"`
	IsLoading    bool                  `json:"isLoading"`
	IsRefreshing bool                  `json:"isRefreshing"`
	Error        *string               `json:"error"`
}

// Options configures a Poller.
type Options struct {
	Source Source
	// Interval between silent polls; zero or negative disables polling so
	// only the initial fetch and manual refreshes run.
	Interval time.Duration
	// FetchTimeout bounds each individual fetch.
	FetchTimeout time.Duration
	HistoryLimit int
	Logger       *slog.Logger
	Sentry       *sentryhelper.SentryHelper
	// OnTransition fires when the stream flips between online and
	// offline, outside the poller's lock.
	OnTransition func(online bool, snapshot *icecast.StreamStatus)
}

// Poller owns one mutable slot of current status, history and error state.
// State is mutated only by its own fetch completions; overlapping fetches
// (a manual refresh racing a scheduled poll) are not serialized and the
// last writer wins.
type Poller struct {
	source       Source
	interval     time.Duration
	fetchTimeout time.Duration
	historyLimit int
	logger       *slog.Logger
	sentry       *sentryhelper.SentryHelper
	onTransition func(online bool, snapshot *icecast.StreamStatus)

	mu                 sync.RWMutex
	report             *status.Report
	history            []HistoryEntry
	lastTitle          *string
	errMsg             *string
	initialDone        bool
	foregroundInFlight int
	wasOnline          *bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a Poller. Call Start to begin polling.
func New(opts Options) *Poller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sentry == nil {
		opts.Sentry = sentryhelper.NewSentryHelper(false, opts.Logger)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:       opts.Source,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		historyLimit: opts.HistoryLimit,
		logger:       opts.Logger,
		sentry:       opts.Sentry,
		onTransition: opts.OnTransition,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start launches the poll loop: one foreground fetch immediately, then
// silent fetches on the configured interval.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

// Stop cancels any in-flight fetch and waits for the loop to exit. After
// Stop returns no timer keeps firing.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		<-p.done
	})
}

// Refresh performs a foreground fetch, like the initial one. Safe to call
// while a silent poll is in flight; the last response to land wins.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.fetch(ctx, false)
}

// Snapshot returns a copy of the current poller state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := Snapshot{
		IsLoading:    !p.initialDone && p.foregroundInFlight > 0,
		IsRefreshing: p.initialDone && p.foregroundInFlight > 0,
	}
	if p.report != nil {
		if p.report.Status != nil {
			statusCopy := *p.report.Status
			snapshot.Status = &statusCopy
		}
		updatedAt := p.report.UpdatedAt
		snapshot.UpdatedAt = &updatedAt
	}
	if p.errMsg != nil {
		errCopy := *p.errMsg
		snapshot.Error = &errCopy
	}
	snapshot.History = make([]HistoryEntry, len(p.history))
	copy(snapshot.History, p.history)
	return snapshot
}

func (p *Poller) run() {
	defer close(p.done)

	if err := p.fetch(p.ctx, false); err != nil {
		logger.LogPollEvent(p.logger, slog.LevelWarn, "Initial status fetch failed", false,
			slog.String("error", err.Error()))
	}

	if p.interval <= 0 {
		<-p.ctx.Done()
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.fetch(p.ctx, true); err != nil {
				// Silent polls swallow errors into the error state;
				// the cadence continues.
				logger.LogPollEvent(p.logger, slog.LevelDebug, "Silent status poll failed", true,
					slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Poller) fetch(ctx context.Context, silent bool) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	// Only foreground fetches drive the loading and refreshing indicators;
	// silent polls keep the UI flags untouched.
	if !silent {
		p.mu.Lock()
		p.foregroundInFlight++
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			p.foregroundInFlight--
			p.mu.Unlock()
		}()
	}

	report, err := p.source.Fetch(fetchCtx)
	if err != nil {
		pollCyclesTotal.WithLabelValues("error").Inc()
		p.sentry.CaptureCategorizedError(err, "poll", "")
		p.mu.Lock()
		message := err.Error()
		p.errMsg = &message
		// Prior status data stays in place: stale-but-present beats an
		// empty dashboard.
		p.mu.Unlock()
		return err
	}

	pollCyclesTotal.WithLabelValues("success").Inc()

	var transition func()
	p.mu.Lock()
	p.report = report
	p.errMsg = nil
	p.initialDone = true
	p.applyHistoryLocked(report)
	if report.Status != nil {
		online := report.Status.IsOnline
		if p.wasOnline == nil || *p.wasOnline != online {
			p.wasOnline = &online
			if p.onTransition != nil {
				statusCopy := *report.Status
				transition = func() { p.onTransition(online, &statusCopy) }
			}
		}
	}
	historySize.Set(float64(len(p.history)))
	p.mu.Unlock()

	if transition != nil {
		transition()
	}
	return nil
}

// applyHistoryLocked prepends a new history entry when the display title
// changed, removing any older entry with the same title and capping the
// list. The very first observed title seeds the list immediately so the
// timeline is never empty after a successful poll.
func (p *Poller) applyHistoryLocked(report *status.Report) {
	st := report.Status
	if st == nil {
		return
	}

	displayTitle := deriveDisplayTitle(st)
	if displayTitle == nil {
		return
	}
	if p.lastTitle != nil && *p.lastTitle == *displayTitle {
		return
	}

	entry := HistoryEntry{
		ID:             uuid.NewString(),
		DisplayTitle:   *displayTitle,
		StartedAt:      report.UpdatedAt,
		Listeners:      st.Listeners,
		Bitrate:        st.Bitrate,
		StatusSnapshot: *st,
	}
	if st.Track != nil {
		entry.TrackTitle = st.Track.Title
		entry.TrackArtist = st.Track.Artist
		entry.ArtworkURL = st.Track.ArtworkURL
	}

	next := make([]HistoryEntry, 0, len(p.history)+1)
	next = append(next, entry)
	for _, existing := range p.history {
		if existing.DisplayTitle == *displayTitle {
			continue
		}
		next = append(next, existing)
	}
	if len(next) > p.historyLimit {
		next = next[:p.historyLimit]
	}
	p.history = next
	p.lastTitle = displayTitle
}

// deriveDisplayTitle prefers the upstream now-playing label, then the
// joined artist–title pair, then the bare track title.
func deriveDisplayTitle(st *icecast.StreamStatus) *string {
	if st.CurrentlyPlaying != nil {
		if trimmed := strings.TrimSpace(*st.CurrentlyPlaying); trimmed != "" {
			return &trimmed
		}
	}
	if st.Track == nil {
		return nil
	}
	var parts []string
	if st.Track.Artist != nil && strings.TrimSpace(*st.Track.Artist) != "" {
		parts = append(parts, strings.TrimSpace(*st.Track.Artist))
	}
	if st.Track.Title != nil && strings.TrimSpace(*st.Track.Title) != "" {
		parts = append(parts, strings.TrimSpace(*st.Track.Title))
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, " – ")
	return &joined
}
