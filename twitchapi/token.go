// Package twitchapi talks to the Twitch Helix API: app token acquisition,
// channel search with batched live-viewer lookups, and single-channel
// resolution including follower counts.
package twitchapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vieweraudit/backend/channel"
	"github.com/vieweraudit/backend/telemetry"
)

const defaultAuthURL = "https://id.twitch.tv/oauth2/token"

// expiryBuffer guards against clock skew and exchange latency: tokens are
// considered expired one minute early.
const expiryBuffer = time.Minute

// TokenSource fetches and caches an app access (client credentials) token.
// The cached token is process-wide state: reads are cheap, and a refresh
// replaces it wholesale under the write lock. Concurrent refreshes converge
// to equivalent tokens, so the read-check-then-refresh race is benign.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	AuthURL      string // defaults to the Twitch OAuth endpoint
	HTTPClient   *http.Client
	Now          func() time.Time // injectable clock for tests

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func (ts *TokenSource) now() time.Time {
	if ts.Now != nil {
		return ts.Now()
	}
	return time.Now()
}

// Get returns a valid token, refreshing only when the cached one is missing
// or past the buffered expiry. A cache hit performs no network call.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		tok := ts.token
		ts.mu.RUnlock()
		return tok, nil
	}
	ts.mu.RUnlock()
	return ts.refresh(ctx)
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		return ts.token, nil
	}
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", &channel.AuthError{Status: "missing credentials", Body: "client id/secret not configured"}
	}
	form := url.Values{}
	form.Set("client_id", ts.ClientID)
	form.Set("client_secret", ts.ClientSecret)
	form.Set("grant_type", "client_credentials")
	authURL := ts.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hc := ts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", &channel.AuthError{Status: "exchange failed", Body: err.Error()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", &channel.AuthError{Status: resp.Status, Body: string(b)}
	}
	var at struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&at); err != nil {
		return "", &channel.AuthError{Status: "malformed token response", Body: err.Error()}
	}
	if at.AccessToken == "" {
		return "", &channel.AuthError{Status: "malformed token response", Body: "empty access_token"}
	}
	ts.token = at.AccessToken
	ts.expiresAt = ts.now().Add(time.Duration(at.ExpiresIn)*time.Second - expiryBuffer)
	telemetry.CountTokenRefresh()
	return ts.token, nil
}

// Invalidate drops the cached token so the next Get performs an exchange.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()
}
