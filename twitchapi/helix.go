package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vieweraudit/backend/channel"
	"github.com/vieweraudit/backend/telemetry"
)

const defaultBaseURL = "https://api.twitch.tv/helix"

// Client resolves Twitch channels through Helix using an app access token.
// Twitch has a stable authenticated API, so no fallback chain is needed;
// the one concession to rate limits is batching live viewer counts for a
// whole search result set into a single streams call.
type Client struct {
	Tokens     *TokenSource
	ClientID   string
	BaseURL    string // defaults to the Helix endpoint
	HTTPClient *http.Client
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

// get performs an authenticated Helix GET and decodes the JSON body into out.
// Transport failures, non-2xx statuses, and non-JSON bodies all come back as
// UpstreamError.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	tok, err := c.Tokens.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)

	start := time.Now()
	resp, err := c.http().Do(req)
	telemetry.ObserveUpstream(string(channel.PlatformTwitch), time.Since(start))
	if err != nil {
		return &channel.UpstreamError{Op: "helix " + path, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &channel.UpstreamError{Op: "helix " + path, Err: fmt.Errorf("status %s", resp.Status)}
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "application/json" {
		return &channel.UpstreamError{Op: "helix " + path, Err: fmt.Errorf("unexpected content type %q", mt)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &channel.UpstreamError{Op: "helix " + path, Err: err}
	}
	return nil
}

type searchChannelEntry struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	BroadcasterLogin string `json:"broadcaster_login"`
	Title            string `json:"title"`
	GameName         string `json:"game_name"`
	IsLive           bool   `json:"is_live"`
	StartedAt        string `json:"started_at"`
	ThumbnailURL     string `json:"thumbnail_url"`
}

type streamEntry struct {
	UserLogin   string `json:"user_login"`
	ViewerCount int    `json:"viewer_count"`
	Title       string `json:"title"`
	GameName    string `json:"game_name"`
	StartedAt   string `json:"started_at"`
}

type userEntry struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
}

// SearchChannels searches channels by query and fills in live viewer counts
// for the whole result set with one batched streams lookup.
func (c *Client) SearchChannels(ctx context.Context, query string, limit int) ([]channel.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("first", fmt.Sprintf("%d", limit))
	var body struct {
		Data []searchChannelEntry `json:"data"`
	}
	if err := c.get(ctx, "/search/channels", q, &body); err != nil {
		return nil, err
	}

	var liveLogins []string
	for _, e := range body.Data {
		if e.IsLive {
			liveLogins = append(liveLogins, e.BroadcasterLogin)
		}
	}
	viewers, err := c.liveViewers(ctx, liveLogins)
	if err != nil {
		return nil, err
	}

	out := make([]channel.Record, 0, len(body.Data))
	for _, e := range body.Data {
		rec := channel.Record{
			ID:       e.ID,
			Name:     e.DisplayName,
			Login:    e.BroadcasterLogin,
			Platform: channel.PlatformTwitch,
			Title:    e.Title,
			Game:     e.GameName,
			Avatar:   e.ThumbnailURL,
			IsLive:   e.IsLive,
		}
		if e.IsLive {
			rec.Viewers = viewers[strings.ToLower(e.BroadcasterLogin)]
			rec.StartedAt = parseTimestamp(e.StartedAt)
		}
		out = append(out, rec)
	}
	return out, nil
}

// liveViewers fetches viewer counts for up to 100 logins in one call and
// keys the result by lower-cased login for joining against search entries.
func (c *Client) liveViewers(ctx context.Context, logins []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(logins) == 0 {
		return counts, nil
	}
	q := url.Values{}
	for _, l := range logins {
		q.Add("user_login", l)
	}
	var body struct {
		Data []streamEntry `json:"data"`
	}
	if err := c.get(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}
	for _, s := range body.Data {
		counts[strings.ToLower(s.UserLogin)] = s.ViewerCount
	}
	return counts, nil
}

// GetChannel resolves a login to a full channel record. The stream and
// follower lookups may each fail independently without failing the whole
// call; they default to offline and zero.
func (c *Client) GetChannel(ctx context.Context, login string) (*channel.Record, error) {
	q := url.Values{}
	q.Set("login", login)
	var users struct {
		Data []userEntry `json:"data"`
	}
	if err := c.get(ctx, "/users", q, &users); err != nil {
		return nil, err
	}
	if len(users.Data) == 0 {
		return nil, fmt.Errorf("%w: twitch login %q", channel.ErrNotFound, login)
	}
	user := users.Data[0]

	var stream *streamEntry
	sq := url.Values{}
	sq.Set("user_login", login)
	var streams struct {
		Data []streamEntry `json:"data"`
	}
	if err := c.get(ctx, "/streams", sq, &streams); err != nil {
		slog.Warn("stream lookup failed, treating channel as offline", slog.String("login", login), slog.Any("err", err))
	} else if len(streams.Data) > 0 {
		stream = &streams.Data[0]
	}

	followers := c.followerCount(ctx, user.ID)

	rec := &channel.Record{
		ID:        user.ID,
		Name:      user.DisplayName,
		Login:     user.Login,
		Platform:  channel.PlatformTwitch,
		Title:     user.Description,
		Followers: followers,
		Avatar:    user.ProfileImageURL,
	}
	if stream != nil {
		rec.Title = stream.Title
		rec.Game = stream.GameName
		rec.Viewers = stream.ViewerCount
		rec.IsLive = true
		rec.StartedAt = parseTimestamp(stream.StartedAt)
	}
	return rec, nil
}

// followerCount is best-effort: the followers endpoint needs a scope some
// app tokens lack, so failures just default to zero.
func (c *Client) followerCount(ctx context.Context, broadcasterID string) int {
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	var body struct {
		Total int `json:"total"`
	}
	if err := c.get(ctx, "/channels/followers", q, &body); err != nil {
		slog.Warn("follower count lookup failed", slog.String("broadcaster_id", broadcasterID), slog.Any("err", err))
		return 0
	}
	return body.Total
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
