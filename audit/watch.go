package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vieweraudit/backend/channel"
	"github.com/vieweraudit/backend/telemetry"
)

// defaultWatchInterval is how often the watcher re-runs the most recent
// analysis while active.
const defaultWatchInterval = 30 * time.Second

// Watcher periodically re-analyzes one channel so a displayed result stays
// fresh. It is a convenience poll, not part of the core contract: a failed
// cycle is logged and swallowed, and the previous result stays visible.
type Watcher struct {
	svc      *Service
	interval time.Duration

	mu       sync.RWMutex
	cancel   context.CancelFunc
	platform channel.Platform
	login    string
	last     *Analysis
	lastErr  error
}

// NewWatcher returns an idle watcher. An interval <= 0 uses the default.
func NewWatcher(svc *Service, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watcher{svc: svc, interval: interval}
}

// Watch starts (or retargets) the periodic re-analysis of one channel. The
// first cycle runs immediately; later cycles tick at the configured
// interval until Stop or ctx cancellation.
func (w *Watcher) Watch(ctx context.Context, platform channel.Platform, identifier string) {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.platform = platform
	w.login = identifier
	w.mu.Unlock()

	telemetry.SetWatchActive(true)
	go w.run(wctx, platform, identifier)
}

func (w *Watcher) run(ctx context.Context, platform channel.Platform, identifier string) {
	slog.Info("watch starting", slog.String("platform", string(platform)), slog.String("channel", identifier), slog.Duration("interval", w.interval))
	w.cycle(ctx, platform, identifier)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped", slog.String("channel", identifier))
			return
		case <-ticker.C:
			w.cycle(ctx, platform, identifier)
		}
	}
}

func (w *Watcher) cycle(ctx context.Context, platform channel.Platform, identifier string) {
	if telemetry.WatchCycles != nil {
		telemetry.WatchCycles.Inc()
	}
	analysis, err := w.svc.AnalyzeChannel(ctx, platform, identifier)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		// Swallowed: a stale result beats a flapping one.
		slog.Warn("watch cycle failed", slog.String("channel", identifier), slog.Any("err", err))
		w.lastErr = err
		return
	}
	w.last = analysis
	w.lastErr = nil
}

// Stop halts the periodic re-analysis. The latest result stays readable.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
		telemetry.SetWatchActive(false)
	}
}

// Active reports whether a watch loop is running and for which target.
func (w *Watcher) Active() (bool, channel.Platform, string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cancel != nil, w.platform, w.login
}

// Latest returns the most recent successful analysis (nil if none yet) and
// the error from the most recent failed cycle, if any.
func (w *Watcher) Latest() (*Analysis, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last, w.lastErr
}
