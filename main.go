// Command backend is the main entrypoint for the viewer-audit API.
// It:
//   - Loads configuration and initializes structured logging.
//   - Builds the Twitch and Kick platform clients and the scoring engine.
//   - Exposes the HTTP API: /analyze, /search, /search/all, /trending,
//     /watch, /status, /healthz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vieweraudit/backend/audit"
	"github.com/vieweraudit/backend/config"
	"github.com/vieweraudit/backend/estimate"
	"github.com/vieweraudit/backend/kickapi"
	"github.com/vieweraudit/backend/score"
	"github.com/vieweraudit/backend/server"
	"github.com/vieweraudit/backend/telemetry"
	"github.com/vieweraudit/backend/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("viewer-audit", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	if err := cfg.ValidateTwitchReady(); err != nil {
		slog.Warn("twitch lookups unavailable until credentials are set", slog.Any("err", err))
	}

	tokens := &twitchapi.TokenSource{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		AuthURL:      cfg.TwitchAuthURL,
	}
	twitch := &twitchapi.Client{
		Tokens:   tokens,
		ClientID: cfg.TwitchClientID,
		BaseURL:  cfg.TwitchAPIURL,
	}
	kick := &kickapi.Client{
		BaseURL:  cfg.KickAPIURL,
		ProxyURL: cfg.KickProxyURL,
		Timeouts: kickapi.Timeouts{
			DirectSearch:  cfg.KickDirectSearchTimeout,
			DirectChannel: cfg.KickDirectChannelTimeout,
			Proxy:         cfg.KickProxyTimeout,
			Bulk:          cfg.KickBulkTimeout,
		},
	}

	// Best-effort: warm the Twitch app token so the first /analyze doesn't
	// pay for the exchange.
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		ctx2, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		if tok, err := tokens.Get(ctx2); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			masked := "***" + tok[len(tok)-6:]
			slog.Info("twitch app token acquired", slog.String("tail", masked))
		}
		cancel()
	}

	svc := audit.NewService(twitch, kick, estimate.New(nil), score.NewEngine(score.DefaultConfig()),
		audit.WithAnalyzeTimeout(cfg.AnalyzeTimeout))
	watcher := audit.NewWatcher(svc, cfg.WatchInterval)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	go func() {
		if err := server.Start(ctx, svc, watcher, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	watcher.Stop()
	slog.Info("shutting down")
}
