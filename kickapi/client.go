// Package kickapi fetches Kick channel data through a resilient chain of
// transports. Kick exposes no stable authenticated API and behaves
// inconsistently across network environments (CORS policy, rate limiting),
// so every lookup walks an ordered list of tiers - direct call, relay
// proxy, degraded bulk listing, static popularity fallback - stopping at
// the first success. Precision degrades down the chain; availability
// improves.
package kickapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vieweraudit/backend/channel"
	"github.com/vieweraudit/backend/telemetry"
)

const (
	defaultBaseURL  = "https://kick.com/api/v1"
	defaultProxyURL = "https://api.allorigins.win/raw"
	bulkPageSize    = 100
	browserUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Timeouts are the per-tier budgets. A tier whose transport never settles
// still advances once its budget elapses.
type Timeouts struct {
	DirectSearch  time.Duration
	DirectChannel time.Duration
	Proxy         time.Duration
	Bulk          time.Duration
}

// DefaultTimeouts returns the tuned per-tier budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		DirectSearch:  5 * time.Second,
		DirectChannel: 8 * time.Second,
		Proxy:         8 * time.Second,
		Bulk:          6 * time.Second,
	}
}

// Client fetches Kick channels. The zero value plus defaults from
// DefaultTimeouts and DefaultPopularChannels is usable.
type Client struct {
	BaseURL    string // defaults to the public Kick API
	ProxyURL   string // URL-relay service echoing the target's JSON body
	HTTPClient *http.Client
	Timeouts   Timeouts
	Popular    []string // curated handles for the last-resort search tier
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func (c *Client) proxyURL() string {
	if c.ProxyURL != "" {
		return c.ProxyURL
	}
	return defaultProxyURL
}

func (c *Client) timeouts() Timeouts {
	t := c.Timeouts
	d := DefaultTimeouts()
	if t.DirectSearch <= 0 {
		t.DirectSearch = d.DirectSearch
	}
	if t.DirectChannel <= 0 {
		t.DirectChannel = d.DirectChannel
	}
	if t.Proxy <= 0 {
		t.Proxy = d.Proxy
	}
	if t.Bulk <= 0 {
		t.Bulk = d.Bulk
	}
	return t
}

func (c *Client) popular() []string {
	if len(c.Popular) > 0 {
		return c.Popular
	}
	return DefaultPopularChannels
}

// fetchJSON performs one time-bounded GET and returns the validated JSON
// body. Transport failures and non-2xx statuses become UpstreamError; an
// elapsed budget becomes TimeoutError so the caller can advance the chain.
func (c *Client) fetchJSON(ctx context.Context, op, rawURL string, budget time.Duration) (gjson.Result, error) {
	tctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return gjson.Result{}, &channel.UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUA)

	start := time.Now()
	resp, err := c.http().Do(req)
	telemetry.ObserveUpstream(string(channel.PlatformKick), time.Since(start))
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return gjson.Result{}, &channel.TimeoutError{Op: op, Budget: budget}
		}
		return gjson.Result{}, &channel.UpstreamError{Op: op, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, &channel.UpstreamError{Op: op, Err: fmt.Errorf("status %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return gjson.Result{}, &channel.TimeoutError{Op: op, Budget: budget}
		}
		return gjson.Result{}, &channel.UpstreamError{Op: op, Err: err}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &channel.UpstreamError{Op: op, Err: errors.New("response is not valid JSON")}
	}
	return gjson.ParseBytes(body), nil
}

// relay wraps a target URL in the proxy-relay form.
func (c *Client) relay(target string) string {
	return c.proxyURL() + "?url=" + url.QueryEscape(target)
}

// searchTier is one strategy in the search chain.
type searchTier struct {
	name string
	run  func(ctx context.Context, query string, limit int) ([]channel.Record, error)
}

// SearchChannels walks the search chain until a tier succeeds. Only when
// every tier, including the static popularity fallback, is exhausted does
// it reject - with the last meaningful error.
func (c *Client) SearchChannels(ctx context.Context, query string, limit int) ([]channel.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	tiers := []searchTier{
		{"direct", c.searchDirect},
		{"proxy", c.searchProxy},
		{"bulk", c.searchBulk},
		{"popular", c.searchPopular},
	}
	var lastErr error
	for _, tier := range tiers {
		recs, err := tier.run(ctx, query, limit)
		if err != nil {
			slog.Debug("kick search tier failed", slog.String("tier", tier.name), slog.Any("err", err))
			if lastErr == nil || !errors.Is(err, errNoPopularMatch) {
				lastErr = err
			}
			continue
		}
		telemetry.CountFallbackTier("kick_search", tier.name)
		return recs, nil
	}
	return nil, fmt.Errorf("kick search exhausted all tiers: %w", lastErr)
}

func (c *Client) searchURL(query string, limit int) string {
	return fmt.Sprintf("%s/channels?search=%s&limit=%d", c.baseURL(), url.QueryEscape(query), limit)
}

func (c *Client) searchDirect(ctx context.Context, query string, limit int) ([]channel.Record, error) {
	raw, err := c.fetchJSON(ctx, "kick search direct", c.searchURL(query, limit), c.timeouts().DirectSearch)
	if err != nil {
		return nil, err
	}
	return searchResults(raw)
}

func (c *Client) searchProxy(ctx context.Context, query string, limit int) ([]channel.Record, error) {
	raw, err := c.fetchJSON(ctx, "kick search proxy", c.relay(c.searchURL(query, limit)), c.timeouts().Proxy)
	if err != nil {
		return nil, err
	}
	return searchResults(raw)
}

func searchResults(raw gjson.Result) ([]channel.Record, error) {
	data := raw.Get("data")
	if !data.IsArray() {
		return nil, &channel.UpstreamError{Op: "kick search", Err: errors.New("unexpected response structure")}
	}
	recs := normalizeList(data)
	if recs == nil {
		recs = []channel.Record{}
	}
	return recs, nil
}

// searchBulk fetches a large unfiltered listing and filters client-side by
// case-insensitive substring on the handle. An empty match advances the
// chain rather than returning an empty result.
func (c *Client) searchBulk(ctx context.Context, query string, limit int) ([]channel.Record, error) {
	listURL := fmt.Sprintf("%s/channels?limit=%d", c.baseURL(), bulkPageSize)
	raw, err := c.fetchJSON(ctx, "kick search bulk", listURL, c.timeouts().Bulk)
	if err != nil {
		return nil, err
	}
	data := raw.Get("data")
	if !data.IsArray() {
		return nil, &channel.UpstreamError{Op: "kick search bulk", Err: errors.New("unexpected response structure")}
	}
	q := strings.ToLower(query)
	var matched []channel.Record
	for _, rec := range normalizeList(data) {
		if strings.Contains(strings.ToLower(rec.Login), q) {
			matched = append(matched, rec)
			if len(matched) == limit {
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, &channel.UpstreamError{Op: "kick search bulk", Err: errors.New("no listing entry matched query")}
	}
	return matched, nil
}

// channelTier is one strategy in the single-channel chain.
type channelTier struct {
	name string
	run  func(ctx context.Context, login string) (*channel.Record, error)
}

// GetChannel resolves one handle: direct call first, relay proxy second.
func (c *Client) GetChannel(ctx context.Context, login string) (*channel.Record, error) {
	tiers := []channelTier{
		{"direct", c.channelDirect},
		{"proxy", c.channelProxy},
	}
	var lastErr error
	for _, tier := range tiers {
		rec, err := tier.run(ctx, login)
		if err != nil {
			// A definitive not-found is terminal; only transport-level
			// failures advance the chain.
			if errors.Is(err, channel.ErrNotFound) {
				return nil, err
			}
			slog.Debug("kick channel tier failed", slog.String("tier", tier.name), slog.Any("err", err))
			lastErr = err
			continue
		}
		telemetry.CountFallbackTier("kick_channel", tier.name)
		return rec, nil
	}
	return nil, fmt.Errorf("kick channel lookup exhausted all tiers: %w", lastErr)
}

func (c *Client) channelURL(login string) string {
	return fmt.Sprintf("%s/channels/%s", c.baseURL(), url.PathEscape(login))
}

func (c *Client) channelDirect(ctx context.Context, login string) (*channel.Record, error) {
	raw, err := c.fetchJSON(ctx, "kick channel direct", c.channelURL(login), c.timeouts().DirectChannel)
	if err != nil {
		return nil, err
	}
	return normalizeChannel(raw)
}

func (c *Client) channelProxy(ctx context.Context, login string) (*channel.Record, error) {
	raw, err := c.fetchJSON(ctx, "kick channel proxy", c.relay(c.channelURL(login)), c.timeouts().Proxy)
	if err != nil {
		return nil, err
	}
	return normalizeChannel(raw)
}
