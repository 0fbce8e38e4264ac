// Package config loads environment variables and provides a typed Config
// used across the service. It applies sensible defaults so the binary can
// run locally with minimal setup; only the Twitch credentials have no
// default. Use ValidateTwitchReady when Twitch lookups are required.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Twitch (client-credentials app token)
	TwitchClientID     string
	TwitchClientSecret string
	TwitchAuthURL      string
	TwitchAPIURL       string

	// Kick (unauthenticated, fetched through the fallback chain)
	KickAPIURL   string
	KickProxyURL string

	// Per-tier budgets for the Kick fetch chain
	KickDirectSearchTimeout  time.Duration
	KickDirectChannelTimeout time.Duration
	KickProxyTimeout         time.Duration
	KickBulkTimeout          time.Duration

	// Orchestration
	AnalyzeTimeout time.Duration
	WatchInterval  time.Duration

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. Missing Twitch
// credentials don't fail the load; Twitch lookups will fail at call time
// instead, and Kick remains fully usable.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchAuthURL = os.Getenv("TWITCH_AUTH_URL")
	cfg.TwitchAPIURL = os.Getenv("TWITCH_API_URL")

	cfg.KickAPIURL = os.Getenv("KICK_API_URL")
	cfg.KickProxyURL = os.Getenv("KICK_PROXY_URL")

	var err error
	if cfg.KickDirectSearchTimeout, err = durationEnv("KICK_DIRECT_SEARCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.KickDirectChannelTimeout, err = durationEnv("KICK_DIRECT_CHANNEL_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.KickProxyTimeout, err = durationEnv("KICK_PROXY_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.KickBulkTimeout, err = durationEnv("KICK_BULK_TIMEOUT", 6*time.Second); err != nil {
		return nil, err
	}
	if cfg.AnalyzeTimeout, err = durationEnv("ANALYZE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.WatchInterval, err = durationEnv("WATCH_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateTwitchReady checks the fields required for Twitch lookups.
func (c *Config) ValidateTwitchReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
