// Package estimate produces synthetic chat-engagement measurements. Neither
// platform exposes a chat census API, so chatters and message counts are
// approximated from the concurrent viewer count. The sampling is
// deliberately non-deterministic; tests inject a fixed Source.
package estimate

import (
	"math/rand/v2"

	"github.com/vieweraudit/backend/channel"
)

// Source supplies the uniform samples behind the estimates. *rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
}

// Estimator derives chat estimates per platform.
type Estimator struct {
	rng Source
}

// New returns an estimator drawing from src, or from the process-wide
// generator when src is nil.
func New(src Source) *Estimator {
	if src == nil {
		src = defaultSource{}
	}
	return &Estimator{rng: src}
}

type defaultSource struct{}

func (defaultSource) Float64() float64 { return rand.Float64() }

// Estimate produces the chat estimate for a viewer count on the given
// platform. Every call resamples; results are not cached.
func (e *Estimator) Estimate(platform channel.Platform, viewers int) channel.ChatEstimate {
	if platform == channel.PlatformKick {
		return e.kick(viewers)
	}
	return e.twitch(viewers)
}

// twitch samples a single random chatter ratio in [1%, 5%) per call,
// reflecting how widely observed chat participation varies.
func (e *Estimator) twitch(viewers int) channel.ChatEstimate {
	chatters := int(float64(viewers) * (0.01 + e.rng.Float64()*0.04))
	return channel.ChatEstimate{
		Chatters:     chatters,
		ChatRate:     float64(chatters) / float64(max(viewers, 1)),
		MessageCount: float64(chatters) * (10 + e.rng.Float64()*20),
	}
}

// kick uses a fixed ratio per viewer-count bracket; participation drops as
// streams grow.
func (e *Estimator) kick(viewers int) channel.ChatEstimate {
	var ratio float64
	switch {
	case viewers < 500:
		ratio = 0.15
	case viewers < 2000:
		ratio = 0.10
	case viewers < 10000:
		ratio = 0.05
	default:
		ratio = 0.03
	}
	chatters := int(float64(viewers) * ratio)
	return channel.ChatEstimate{
		Chatters:     chatters,
		ChatRate:     float64(chatters) / float64(max(viewers, 1)),
		MessageCount: float64(chatters) * (15 + e.rng.Float64()*25),
	}
}
