// Package channel defines the canonical, platform-agnostic channel records
// produced by the platform clients and consumed by the scoring engine, plus
// the error taxonomy and identifier validation shared across the service.
package channel

import (
	"fmt"
	"time"
)

// Platform identifies the upstream streaming platform a record came from.
type Platform string

const (
	PlatformTwitch Platform = "twitch"
	PlatformKick   Platform = "kick"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{PlatformTwitch, PlatformKick}

// ParsePlatform validates a platform string from an API query or config.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformTwitch, PlatformKick:
		return Platform(s), nil
	}
	return "", fmt.Errorf("%w: unknown platform %q", ErrValidation, s)
}

// Record is the canonical channel shape. Numeric fields default to zero
// rather than being absent, so downstream scoring never sees a missing
// value. Viewers is zero whenever IsLive is false.
type Record struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Login     string     `json:"login"`
	Platform  Platform   `json:"platform"`
	Title     string     `json:"title"`
	Game      string     `json:"game"`
	Viewers   int        `json:"viewers"`
	Followers int        `json:"followers"`
	Avatar    string     `json:"avatar"`
	IsLive    bool       `json:"isLive"`
	StartedAt *time.Time `json:"startedAt"`
}

// ChatEstimate is a synthetic chat-engagement measurement. Neither platform
// exposes a chat census API, so Chatters and MessageCount are estimates and
// must not be treated as ground truth.
type ChatEstimate struct {
	Chatters     int     `json:"chatters"`
	ChatRate     float64 `json:"chatRate"`
	MessageCount float64 `json:"messageCount"`
}

// Metrics joins a Record's numeric fields with a ChatEstimate and the ratios
// derived from them. Built once per analysis and immutable afterwards.
type Metrics struct {
	Viewers               int     `json:"viewers"`
	Chatters              int     `json:"chatters"`
	Followers             int     `json:"followers"`
	ChatRate              float64 `json:"chatRate"`
	MessageCount          float64 `json:"messageCount"`
	StreamDuration        int64   `json:"streamDuration"` // seconds since stream start, 0 when offline
	ViewerToChatterRatio  float64 `json:"viewerToChatterRatio"`
	FollowerToViewerRatio float64 `json:"followerToViewerRatio"`
}

// BuildMetrics derives the combined metrics record at the given instant.
func BuildMetrics(rec *Record, chat *ChatEstimate, now time.Time) Metrics {
	m := Metrics{
		Viewers:      rec.Viewers,
		Chatters:     chat.Chatters,
		Followers:    rec.Followers,
		ChatRate:     chat.ChatRate,
		MessageCount: chat.MessageCount,
	}
	if rec.IsLive && rec.StartedAt != nil {
		if d := int64(now.Sub(*rec.StartedAt) / time.Second); d > 0 {
			m.StreamDuration = d
		}
	}
	if rec.Viewers > 0 {
		m.ViewerToChatterRatio = float64(rec.Viewers) / float64(max(chat.Chatters, 1))
		m.FollowerToViewerRatio = float64(rec.Followers) / float64(rec.Viewers)
	}
	return m
}
