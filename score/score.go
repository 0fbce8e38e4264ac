// Package score implements the botting-likelihood engine: a pure function
// from a channel metrics record to a bounded score with ranked reasons.
// It performs no I/O and never fails; every division guards its denominator.
//
// The thresholds are heuristics tuned against observed streaming data, not
// empirically validated constants. They live on Config so deployments can
// adjust them without code changes.
package score

import (
	"fmt"
	"math"

	"github.com/vieweraudit/backend/channel"
)

// Confidence is a coarse reliability label derived solely from the score's
// own magnitude.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Result is the scoring outcome for one metrics record.
type Result struct {
	Score      int               `json:"score"`
	Confidence Confidence        `json:"confidence"`
	Reasons    []string          `json:"reasons"`
	Details    map[string]string `json:"details"`
}

// Weights are the relative shares of each scoring component.
type Weights struct {
	Engagement    float64
	ViewerPattern float64
	FollowerRatio float64
	ChatActivity  float64
	StreamMetrics float64
}

// RateBand scores an engagement-style rate: the first band whose Below bound
// exceeds the rate wins.
type RateBand struct {
	Below  float64
	Score  float64
	Reason string
}

// ThresholdBand scores a value exceeding a lower bound: the first band whose
// Above bound is crossed wins.
type ThresholdBand struct {
	Above  float64
	Score  float64
	Reason string
}

// EngagementBracket holds the ladder for one viewer-count bracket. Smaller
// streams expect proportionally higher engagement, so each bracket carries
// its own bands. When no band matches, the residual score decays linearly:
// max(0, TailBase - rate*TailSlope).
type EngagementBracket struct {
	MaxViewers int // bracket applies while viewers < MaxViewers; 0 means unbounded
	Bands      []RateBand
	TailBase   float64
	TailSlope  float64
}

// FollowerTier flags a low-follower/high-viewer combination.
type FollowerTier struct {
	MaxFollowers int
	MinViewers   int
	Score        float64
	Reason       string
}

// Config carries every tunable constant of the engine. DefaultConfig
// preserves the values the heuristics were tuned with.
type Config struct {
	Weights Weights

	// Engagement component.
	ZeroEngagementScore  float64
	ZeroEngagementReason string
	Brackets             []EngagementBracket

	// Viewer-pattern component.
	RoundHundredMinViewers int // multiple-of-100 counts above this are suspect
	RoundHundredScore      float64
	RoundHundredReason     string
	RoundFiftyMinViewers   int
	RoundFiftyScore        float64
	RoundFiftyReason       string
	ViewerFollowerBands    []ThresholdBand // viewers / max(followers,1)
	GrowthBands            []ThresholdBand // viewers per hour of uptime

	// Follower-ratio component.
	FollowerTiers                []FollowerTier
	FollowerEngagementMaxPercent float64 // chatters per follower, in percent
	FollowerEngagementMinViewers int
	FollowerEngagementScore      float64
	FollowerEngagementReason     string

	// Chat-activity component.
	ChatRateBands    []RateBand
	MessageRateBands []ThresholdBand // messages per chatter

	// Stream-metrics component.
	ShortStreamViewersPerMinute float64
	ShortStreamMaxDuration      int64 // seconds
	ShortStreamScore            float64
	ShortStreamReason           string

	// Floor overrides for known-bad patterns the weighted sum may
	// under-score, applied after weighting.
	SevereEngagementFloorRate float64
	SevereEngagementFloor     float64
	LowEngagementFloorRate    float64
	LowEngagementFloor        float64
	ZeroChatFloorMinViewers   int
	ZeroChatFloor             float64

	// Output shaping. MaxScore stays below 100 on purpose: the engine
	// never claims certainty.
	MaxScore   int
	MaxReasons int
}

// DefaultConfig returns the engine's tuned constants.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Engagement:    0.35,
			ViewerPattern: 0.25,
			FollowerRatio: 0.20,
			ChatActivity:  0.15,
			StreamMetrics: 0.05,
		},
		ZeroEngagementScore:  95,
		ZeroEngagementReason: "Zero engagement - highly suspicious for any viewer count",
		Brackets: []EngagementBracket{
			{
				// Small streams: 15-25% engagement is normal.
				MaxViewers: 100,
				Bands: []RateBand{
					{Below: 0.05, Score: 85, Reason: "Very low engagement for small stream (< 5%)"},
					{Below: 0.10, Score: 70, Reason: "Below average engagement for small stream (< 10%)"},
					{Below: 0.15, Score: 45, Reason: "Moderate engagement for small stream (< 15%)"},
				},
				TailBase: 30, TailSlope: 100,
			},
			{
				// Medium-small streams: 8-15% is normal.
				MaxViewers: 500,
				Bands: []RateBand{
					{Below: 0.03, Score: 90, Reason: "Extremely low engagement for medium stream (< 3%)"},
					{Below: 0.05, Score: 80, Reason: "Very low engagement for medium stream (< 5%)"},
					{Below: 0.08, Score: 65, Reason: "Below average engagement for medium stream (< 8%)"},
					{Below: 0.12, Score: 40, Reason: "Moderate engagement for medium stream (< 12%)"},
				},
				TailBase: 25, TailSlope: 80,
			},
			{
				// Medium streams: 5-10% is normal.
				MaxViewers: 2000,
				Bands: []RateBand{
					{Below: 0.02, Score: 92, Reason: "Extremely low engagement for large stream (< 2%)"},
					{Below: 0.03, Score: 85, Reason: "Very low engagement for large stream (< 3%)"},
					{Below: 0.05, Score: 75, Reason: "Below average engagement for large stream (< 5%)"},
					{Below: 0.08, Score: 55, Reason: "Moderate engagement for large stream (< 8%)"},
				},
				TailBase: 35, TailSlope: 60,
			},
			{
				// Large streams: 3-7% is normal.
				MaxViewers: 10000,
				Bands: []RateBand{
					{Below: 0.01, Score: 95, Reason: "Extremely low engagement for very large stream (< 1%)"},
					{Below: 0.02, Score: 88, Reason: "Very low engagement for very large stream (< 2%)"},
					{Below: 0.03, Score: 80, Reason: "Below average engagement for very large stream (< 3%)"},
					{Below: 0.05, Score: 65, Reason: "Moderate engagement for very large stream (< 5%)"},
				},
				TailBase: 45, TailSlope: 50,
			},
			{
				// Massive streams: 1-4% is normal.
				MaxViewers: 0,
				Bands: []RateBand{
					{Below: 0.005, Score: 98, Reason: "Extremely low engagement for massive stream (< 0.5%)"},
					{Below: 0.01, Score: 92, Reason: "Very low engagement for massive stream (< 1%)"},
					{Below: 0.02, Score: 85, Reason: "Below average engagement for massive stream (< 2%)"},
					{Below: 0.03, Score: 70, Reason: "Moderate engagement for massive stream (< 3%)"},
				},
				TailBase: 50, TailSlope: 40,
			},
		},

		RoundHundredMinViewers: 500,
		RoundHundredScore:      25,
		RoundHundredReason:     "Suspicious round viewer count (multiple of 100)",
		RoundFiftyMinViewers:   200,
		RoundFiftyScore:        15,
		RoundFiftyReason:       "Suspicious round viewer count (multiple of 50)",
		ViewerFollowerBands: []ThresholdBand{
			{Above: 2.0, Score: 30, Reason: "Extremely high viewer-to-follower ratio (> 200%)"},
			{Above: 1.0, Score: 20, Reason: "Very high viewer-to-follower ratio (> 100%)"},
			{Above: 0.5, Score: 10, Reason: "High viewer-to-follower ratio (> 50%)"},
		},
		GrowthBands: []ThresholdBand{
			{Above: 5000, Score: 20, Reason: "Unrealistic viewer growth rate (> 5000/hour)"},
			{Above: 2000, Score: 15, Reason: "Very high viewer growth rate (> 2000/hour)"},
		},

		FollowerTiers: []FollowerTier{
			{MaxFollowers: 100, MinViewers: 1000, Score: 35, Reason: "Very high viewers with very few followers"},
			{MaxFollowers: 500, MinViewers: 2000, Score: 25, Reason: "High viewers with few followers"},
			{MaxFollowers: 1000, MinViewers: 5000, Score: 20, Reason: "Massive viewers with low follower count"},
		},
		FollowerEngagementMaxPercent: 0.1,
		FollowerEngagementMinViewers: 500,
		FollowerEngagementScore:      15,
		FollowerEngagementReason:     "Extremely low follower engagement (< 0.1%)",

		ChatRateBands: []RateBand{
			{Below: 0.05, Score: 25, Reason: "Extremely low chat activity (< 5% of viewers chatting)"},
			{Below: 0.10, Score: 20, Reason: "Very low chat activity (< 10% of viewers chatting)"},
			{Below: 0.20, Score: 15, Reason: "Low chat activity (< 20% of viewers chatting)"},
		},
		MessageRateBands: []ThresholdBand{
			{Above: 100, Score: 20, Reason: "Suspiciously high messages per chatter (> 100)"},
			{Above: 50, Score: 15, Reason: "Very high messages per chatter (> 50)"},
		},

		ShortStreamViewersPerMinute: 100,
		ShortStreamMaxDuration:      3600,
		ShortStreamScore:            20,
		ShortStreamReason:           "Unrealistic viewer count for stream duration",

		SevereEngagementFloorRate: 0.005,
		SevereEngagementFloor:     85,
		LowEngagementFloorRate:    0.01,
		LowEngagementFloor:        75,
		ZeroChatFloorMinViewers:   100,
		ZeroChatFloor:             90,

		MaxScore:   98,
		MaxReasons: 6,
	}
}

// Engine scores metrics records under a fixed Config.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine using cfg. Use DefaultConfig for the tuned
// constants.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Score evaluates one metrics record. Zero viewers short-circuits to a zero
// score: an offline or empty channel carries no botting risk by convention.
func (e *Engine) Score(m channel.Metrics) Result {
	if m.Viewers == 0 {
		return Result{Score: 0, Confidence: ConfidenceLow, Reasons: []string{"No viewers"}}
	}

	cfg := &e.cfg
	var reasons []string

	engagementRate := float64(m.Chatters) / float64(m.Viewers)
	engagement := e.engagementScore(m.Viewers, engagementRate, &reasons)
	pattern, viewerFollowerRatio := e.viewerPatternScore(m, &reasons)
	follower := e.followerRatioScore(m, &reasons)
	chat := e.chatActivityScore(m, &reasons)
	stream := e.streamMetricsScore(m, &reasons)

	total := engagement*cfg.Weights.Engagement +
		pattern*cfg.Weights.ViewerPattern +
		follower*cfg.Weights.FollowerRatio +
		chat*cfg.Weights.ChatActivity +
		stream*cfg.Weights.StreamMetrics

	// Floor overrides for known-bad patterns.
	if engagementRate < cfg.SevereEngagementFloorRate {
		total = math.Max(total, cfg.SevereEngagementFloor)
	}
	if engagementRate < cfg.LowEngagementFloorRate {
		total = math.Max(total, cfg.LowEngagementFloor)
	}
	if m.Chatters == 0 && m.Viewers > cfg.ZeroChatFloorMinViewers {
		total = math.Max(total, cfg.ZeroChatFloor)
	}

	final := int(math.Round(total))
	if final > cfg.MaxScore {
		final = cfg.MaxScore
	}

	confidence := ConfidenceHigh
	switch {
	case final < 30:
		confidence = ConfidenceLow
	case final < 60:
		confidence = ConfidenceMedium
	}

	if len(reasons) > cfg.MaxReasons {
		reasons = reasons[:cfg.MaxReasons]
	}

	viewersPerHour := "N/A"
	if m.StreamDuration > 0 {
		viewersPerHour = fmt.Sprintf("%d", int(math.Round(float64(m.Viewers)/(float64(m.StreamDuration)/3600))))
	}

	return Result{
		Score:      final,
		Confidence: confidence,
		Reasons:    reasons,
		Details: map[string]string{
			"engagementRate":        fmt.Sprintf("%.2f%%", engagementRate*100),
			"viewerToFollowerRatio": fmt.Sprintf("%.2f", viewerFollowerRatio),
			"chatRate":              fmt.Sprintf("%.2f%%", m.ChatRate*100),
			"viewersPerHour":        viewersPerHour,
		},
	}
}

func (e *Engine) engagementScore(viewers int, rate float64, reasons *[]string) float64 {
	cfg := &e.cfg
	if rate == 0 {
		*reasons = append(*reasons, cfg.ZeroEngagementReason)
		return cfg.ZeroEngagementScore
	}
	for _, br := range cfg.Brackets {
		if br.MaxViewers != 0 && viewers >= br.MaxViewers {
			continue
		}
		for _, b := range br.Bands {
			if rate < b.Below {
				*reasons = append(*reasons, b.Reason)
				return b.Score
			}
		}
		// Healthy engagement: residual decays linearly with the rate.
		return math.Max(0, br.TailBase-rate*br.TailSlope)
	}
	return 0
}

func (e *Engine) viewerPatternScore(m channel.Metrics, reasons *[]string) (float64, float64) {
	cfg := &e.cfg
	var s float64
	ratio := float64(m.Viewers) / float64(max(m.Followers, 1))

	// Round counts hint at fixed bot-package sizes.
	if m.Viewers%100 == 0 && m.Viewers > cfg.RoundHundredMinViewers {
		s += cfg.RoundHundredScore
		*reasons = append(*reasons, cfg.RoundHundredReason)
	} else if m.Viewers%50 == 0 && m.Viewers > cfg.RoundFiftyMinViewers {
		s += cfg.RoundFiftyScore
		*reasons = append(*reasons, cfg.RoundFiftyReason)
	}

	for _, b := range cfg.ViewerFollowerBands {
		if ratio > b.Above {
			s += b.Score
			*reasons = append(*reasons, b.Reason)
			break
		}
	}

	if m.StreamDuration > 0 {
		perHour := float64(m.Viewers) / (float64(m.StreamDuration) / 3600)
		for _, b := range cfg.GrowthBands {
			if perHour > b.Above {
				s += b.Score
				*reasons = append(*reasons, b.Reason)
				break
			}
		}
	}
	return s, ratio
}

func (e *Engine) followerRatioScore(m channel.Metrics, reasons *[]string) float64 {
	cfg := &e.cfg
	var s float64
	for _, t := range cfg.FollowerTiers {
		if m.Followers < t.MaxFollowers && m.Viewers > t.MinViewers {
			s += t.Score
			*reasons = append(*reasons, t.Reason)
			break
		}
	}
	followerEngagement := float64(m.Chatters) / float64(max(m.Followers, 1)) * 100
	if followerEngagement < cfg.FollowerEngagementMaxPercent && m.Viewers > cfg.FollowerEngagementMinViewers {
		s += cfg.FollowerEngagementScore
		*reasons = append(*reasons, cfg.FollowerEngagementReason)
	}
	return s
}

func (e *Engine) chatActivityScore(m channel.Metrics, reasons *[]string) float64 {
	cfg := &e.cfg
	var s float64
	if m.ChatRate > 0 {
		for _, b := range cfg.ChatRateBands {
			if m.ChatRate < b.Below {
				s += b.Score
				*reasons = append(*reasons, b.Reason)
				break
			}
		}
	}
	perChatter := m.MessageCount / float64(max(m.Chatters, 1))
	for _, b := range cfg.MessageRateBands {
		if perChatter > b.Above {
			s += b.Score
			*reasons = append(*reasons, b.Reason)
			break
		}
	}
	return s
}

func (e *Engine) streamMetricsScore(m channel.Metrics, reasons *[]string) float64 {
	cfg := &e.cfg
	if m.StreamDuration > 0 {
		perMinute := float64(m.Viewers) / (float64(m.StreamDuration) / 60)
		if perMinute > cfg.ShortStreamViewersPerMinute && m.StreamDuration < cfg.ShortStreamMaxDuration {
			*reasons = append(*reasons, cfg.ShortStreamReason)
			return cfg.ShortStreamScore
		}
	}
	return 0
}
