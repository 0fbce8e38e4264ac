// Package audit orchestrates a channel analysis: it fetches channel
// metadata and a chat estimate concurrently, joins them into a metrics
// record, and scores the result. It is the public contract consumed by the
// HTTP layer and any other downstream UI.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/vieweraudit/backend/channel"
	"github.com/vieweraudit/backend/estimate"
	"github.com/vieweraudit/backend/score"
	"github.com/vieweraudit/backend/telemetry"
)

// defaultAnalyzeTimeout is the outer budget for a whole analysis,
// independent of the per-tier budgets inside the fetch chains.
const defaultAnalyzeTimeout = 15 * time.Second

// PlatformClient is what the orchestrator needs from each platform.
type PlatformClient interface {
	SearchChannels(ctx context.Context, query string, limit int) ([]channel.Record, error)
	GetChannel(ctx context.Context, login string) (*channel.Record, error)
}

// Analysis is the result of one analyze call.
type Analysis struct {
	Channel     channel.Record  `json:"channel"`
	Metrics     channel.Metrics `json:"metrics"`
	Score       score.Result    `json:"scoreResult"`
	TimestampMs int64           `json:"timestampMs"`
}

// Service composes the platform clients, the chat estimator, and the
// scoring engine. Every analysis builds fresh records; the only state the
// service shares across requests lives inside the Twitch token cache.
type Service struct {
	clients        map[channel.Platform]PlatformClient
	estimator      *estimate.Estimator
	engine         *score.Engine
	analyzeTimeout time.Duration
	now            func() time.Time

	trending map[channel.Platform][]string
}

// Option tweaks a Service.
type Option func(*Service)

// WithAnalyzeTimeout overrides the outer analysis budget.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.analyzeTimeout = d
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTrending overrides the per-platform trending channel lists.
func WithTrending(lists map[channel.Platform][]string) Option {
	return func(s *Service) { s.trending = lists }
}

// NewService wires the orchestrator. Pass nil for the estimator or engine
// to get the defaults.
func NewService(twitch, kick PlatformClient, est *estimate.Estimator, engine *score.Engine, opts ...Option) *Service {
	if est == nil {
		est = estimate.New(nil)
	}
	if engine == nil {
		engine = score.NewEngine(score.DefaultConfig())
	}
	s := &Service{
		clients: map[channel.Platform]PlatformClient{
			channel.PlatformTwitch: twitch,
			channel.PlatformKick:   kick,
		},
		estimator:      est,
		engine:         engine,
		analyzeTimeout: defaultAnalyzeTimeout,
		now:            time.Now,
		trending: map[channel.Platform][]string{
			channel.PlatformTwitch: {"pokimane", "xqc", "shroud", "ninja", "timthetatman"},
			channel.PlatformKick:   {"trainwreckstv", "adinfinitum", "destiny", "hasanabi", "pokelawls"},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) client(platform channel.Platform) (PlatformClient, error) {
	c, ok := s.clients[platform]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: platform %q not configured", channel.ErrValidation, platform)
	}
	return c, nil
}

// resolveIdentifier accepts a plain handle, an @handle, or a pasted channel
// URL for the requested platform, and validates the resulting login before
// any network call.
func resolveIdentifier(platform channel.Platform, identifier string) (string, error) {
	if p, login, ok := channel.ParseURL(identifier); ok {
		if p != platform {
			return "", fmt.Errorf("%w: URL is for %s, not %s", channel.ErrValidation, p, platform)
		}
		identifier = login
	}
	return channel.ValidateLogin(identifier)
}

// AnalyzeChannel fetches the channel and its chat estimate concurrently,
// derives the combined metrics, and scores them. Either branch failing
// fails the whole call; there is no partial-result mode.
func (s *Service) AnalyzeChannel(ctx context.Context, platform channel.Platform, identifier string) (*Analysis, error) {
	client, err := s.client(platform)
	if err != nil {
		return nil, err
	}
	login, err := resolveIdentifier(platform, identifier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.analyzeTimeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "audit", "analyze-channel",
		telemetry.PlatformAttr(string(platform)), telemetry.ChannelAttr(login))
	defer span.End()

	if telemetry.AnalysesStarted != nil {
		telemetry.AnalysesStarted.Inc()
	}
	start := s.now()

	var (
		rec  *channel.Record
		chat channel.ChatEstimate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := client.GetChannel(gctx, login)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	g.Go(func() error {
		// The estimate needs the live viewer count, so this branch
		// performs its own channel fetch and stays independent of the
		// metadata branch.
		r, err := client.GetChannel(gctx, login)
		if err != nil {
			return err
		}
		chat = s.estimator.Estimate(platform, r.Viewers)
		return nil
	})
	if err := g.Wait(); err != nil {
		if telemetry.AnalysesFailed != nil {
			telemetry.AnalysesFailed.Inc()
		}
		telemetry.RecordError(span, err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !channel.IsTimeout(err) {
			return nil, &channel.TimeoutError{Op: "analyze " + login, Budget: s.analyzeTimeout}
		}
		return nil, err
	}

	now := s.now()
	metrics := channel.BuildMetrics(rec, &chat, now)
	result := s.engine.Score(metrics)

	if telemetry.AnalysesSucceeded != nil {
		telemetry.AnalysesSucceeded.Inc()
	}
	telemetry.SetLastScore(result.Score)
	if telemetry.AnalysisDuration != nil {
		telemetry.AnalysisDuration.Observe(now.Sub(start).Seconds())
	}

	return &Analysis{
		Channel:     *rec,
		Metrics:     metrics,
		Score:       result,
		TimestampMs: now.UnixMilli(),
	}, nil
}

// SearchChannels searches one platform.
func (s *Service) SearchChannels(ctx context.Context, platform channel.Platform, query string, limit int) ([]channel.Record, error) {
	client, err := s.client(platform)
	if err != nil {
		return nil, err
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query", channel.ErrValidation)
	}
	telemetry.CountSearch(string(platform))
	ctx, span := telemetry.StartSpan(ctx, "audit", "search-channels", telemetry.PlatformAttr(string(platform)))
	defer span.End()
	recs, err := client.SearchChannels(ctx, query, limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return recs, nil
}

// SearchAllPlatforms is a best-effort union: each platform is searched
// concurrently and a platform's failure only shrinks the result set.
func (s *Service) SearchAllPlatforms(ctx context.Context, query string, limitPerPlatform int) []channel.Record {
	p := pool.NewWithResults[[]channel.Record]().WithContext(ctx)
	for _, platform := range channel.Platforms {
		platform := platform
		p.Go(func(ctx context.Context) ([]channel.Record, error) {
			recs, err := s.SearchChannels(ctx, platform, query, limitPerPlatform)
			if err != nil {
				slog.Warn("platform search failed in union", slog.String("platform", string(platform)), slog.Any("err", err))
				return nil, nil
			}
			return recs, nil
		})
	}
	groups, _ := p.Wait()
	var out []channel.Record
	for _, recs := range groups {
		out = append(out, recs...)
	}
	return out
}

// TrendingChannels resolves a fixed list of well-known logins for a
// platform, skipping any that fail.
func (s *Service) TrendingChannels(ctx context.Context, platform channel.Platform, limit int) ([]channel.Record, error) {
	client, err := s.client(platform)
	if err != nil {
		return nil, err
	}
	logins := s.trending[platform]
	if limit > 0 && limit < len(logins) {
		logins = logins[:limit]
	}
	out := make([]channel.Record, 0, len(logins))
	for _, login := range logins {
		rec, err := client.GetChannel(ctx, login)
		if err != nil {
			slog.Debug("trending channel lookup failed", slog.String("login", login), slog.Any("err", err))
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}
