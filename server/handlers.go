package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vieweraudit/backend/audit"
	"github.com/vieweraudit/backend/channel"
)

// Handlers holds dependencies for all HTTP handlers. ctx is the process
// lifetime context; watch loops started from a request are bound to it
// rather than to the request.
type Handlers struct {
	ctx     context.Context
	svc     *audit.Service
	watcher *audit.Watcher
	started time.Time
}

// NewHandlers creates a Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, svc *audit.Service, watcher *audit.Watcher) *Handlers {
	return &Handlers{ctx: ctx, svc: svc, watcher: watcher, started: time.Now()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses and a stable JSON
// error shape.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	msg := "upstream request failed"
	switch {
	case errors.Is(err, channel.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, channel.ErrNotFound):
		status, msg = http.StatusNotFound, "channel not found"
	case channel.IsAuth(err):
		status, msg = http.StatusBadGateway, "upstream authentication failed"
	case channel.IsTimeout(err):
		status, msg = http.StatusGatewayTimeout, "upstream timed out, try again"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func platformQuery(r *http.Request) (channel.Platform, error) {
	return channel.ParsePlatform(r.URL.Query().Get("platform"))
}

// HandleAnalyze runs one full channel analysis.
// GET /analyze?platform=twitch|kick&channel=<handle or URL>
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	platform, err := platformQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	analysis, err := h.svc.AnalyzeChannel(r.Context(), platform, r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// HandleSearch searches one platform.
// GET /search?platform=twitch|kick&q=<query>&limit=10
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	platform, err := platformQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := parseIntQuery(r, "limit", 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	recs, err := h.svc.SearchChannels(r.Context(), platform, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": recs})
}

// HandleSearchAll searches every platform, best effort.
// GET /search/all?q=<query>&limit=5
func (h *Handlers) HandleSearchAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, channel.ErrValidation)
		return
	}
	limit := parseIntQuery(r, "limit", 5)
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	recs := h.svc.SearchAllPlatforms(r.Context(), q, limit)
	if recs == nil {
		recs = []channel.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": recs})
}

// HandleTrending resolves the curated trending list for one platform.
// GET /trending?platform=twitch|kick&limit=5
func (h *Handlers) HandleTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	platform, err := platformQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := h.svc.TrendingChannels(r.Context(), platform, parseIntQuery(r, "limit", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": recs})
}

// HandleWatch starts (POST) or stops (DELETE) the periodic re-analysis of
// one channel.
// POST /watch?platform=twitch|kick&channel=<handle>
func (h *Handlers) HandleWatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		platform, err := platformQuery(r)
		if err != nil {
			writeError(w, err)
			return
		}
		login, err := channel.ValidateLogin(r.URL.Query().Get("channel"))
		if err != nil {
			writeError(w, err)
			return
		}
		// The watcher outlives this request; it stops via DELETE or
		// process shutdown, not via the request context.
		h.watcher.Watch(h.ctx, platform, login)
		writeJSON(w, http.StatusAccepted, map[string]string{"watching": login, "platform": string(platform)})
	case http.MethodDelete:
		h.watcher.Stop()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus reports uptime, watcher state, and the latest watched
// analysis if one exists.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	active, platform, login := h.watcher.Active()
	latest, lastErr := h.watcher.Latest()
	status := map[string]any{
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"watch": map[string]any{
			"active":   active,
			"platform": string(platform),
			"channel":  login,
		},
	}
	if latest != nil {
		status["latest"] = latest
	}
	if lastErr != nil {
		status["last_watch_error"] = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleHealthz is a liveness probe.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
