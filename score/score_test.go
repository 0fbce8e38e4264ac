package score

import (
	"strings"
	"testing"

	"github.com/vieweraudit/backend/channel"
)

func TestScoreZeroViewers(t *testing.T) {
	e := NewEngine(DefaultConfig())
	res := e.Score(channel.Metrics{Viewers: 0, Followers: 5000})
	if res.Score != 0 {
		t.Errorf("Score = %d, want 0 for zero viewers", res.Score)
	}
	if res.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %s, want low", res.Confidence)
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != "No viewers" {
		t.Errorf("Reasons = %v, want [No viewers]", res.Reasons)
	}
}

func TestScoreBounds(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Sweep a grid of inputs; every score must stay in [0, 98].
	viewers := []int{1, 50, 100, 500, 600, 2000, 5000, 10000, 50000}
	chatters := []int{0, 1, 5, 50, 500}
	followers := []int{0, 10, 100, 10000, 1000000}
	durations := []int64{0, 600, 3600, 86400}
	for _, v := range viewers {
		for _, c := range chatters {
			for _, f := range followers {
				for _, d := range durations {
					m := channel.Metrics{
						Viewers:        v,
						Chatters:       c,
						Followers:      f,
						ChatRate:       float64(c) / float64(v),
						MessageCount:   float64(c) * 15,
						StreamDuration: d,
					}
					res := e.Score(m)
					if res.Score < 0 || res.Score > 98 {
						t.Fatalf("Score(%+v) = %d, want within [0, 98]", m, res.Score)
					}
					if len(res.Reasons) > 6 {
						t.Fatalf("Score(%+v) returned %d reasons, want at most 6", m, len(res.Reasons))
					}
				}
			}
		}
	}
}

func TestScoreZeroChatFloor(t *testing.T) {
	// 1000 silent viewers is a classic bot signature: the zero-chat floor
	// must lift the weighted sum to at least 90.
	e := NewEngine(DefaultConfig())
	res := e.Score(channel.Metrics{Viewers: 1000, Chatters: 0, Followers: 2000})
	if res.Score < 90 {
		t.Errorf("Score = %d, want >= 90 for zero chatters with 1000 viewers", res.Score)
	}
	if res.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %s, want high", res.Confidence)
	}
	found := false
	for _, r := range res.Reasons {
		if strings.Contains(r, "Zero engagement") {
			found = true
		}
	}
	if !found {
		t.Errorf("Reasons = %v, want zero-engagement reason present", res.Reasons)
	}
}

func TestScoreHealthySmallStream(t *testing.T) {
	// 20% engagement on a 50-viewer stream is organic; the score should be
	// low-confidence and near zero.
	e := NewEngine(DefaultConfig())
	res := e.Score(channel.Metrics{
		Viewers:        50,
		Chatters:       10,
		Followers:      400,
		ChatRate:       0.2,
		MessageCount:   200,
		StreamDuration: 7200,
	})
	if res.Score >= 30 {
		t.Errorf("Score = %d, want < 30 for healthy small stream", res.Score)
	}
	if res.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %s, want low", res.Confidence)
	}
	if len(res.Reasons) != 0 {
		t.Errorf("Reasons = %v, want none for healthy stream", res.Reasons)
	}
}

func TestScoreSevereEngagementFloor(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// One chatter among 5000 viewers: rate 0.02%, below the severe floor.
	res := e.Score(channel.Metrics{Viewers: 5001, Chatters: 1, Followers: 100000, ChatRate: 0.0002, MessageCount: 5})
	if res.Score < 85 {
		t.Errorf("Score = %d, want >= 85 via severe engagement floor", res.Score)
	}
}

func TestScoreRoundNumberBoundary(t *testing.T) {
	e := NewEngine(DefaultConfig())
	base := channel.Metrics{Chatters: 120, Followers: 100000, ChatRate: 0.2, MessageCount: 300}

	round := base
	round.Viewers = 600
	resRound := e.Score(round)

	odd := base
	odd.Viewers = 601
	resOdd := e.Score(odd)

	hasRoundReason := func(res Result) bool {
		for _, r := range res.Reasons {
			if strings.Contains(r, "round viewer count") {
				return true
			}
		}
		return false
	}
	if !hasRoundReason(resRound) {
		t.Errorf("Reasons = %v, want round-count reason for 600 viewers", resRound.Reasons)
	}
	if hasRoundReason(resOdd) {
		t.Errorf("Reasons = %v, want no round-count reason for 601 viewers", resOdd.Reasons)
	}
	if resRound.Score <= resOdd.Score {
		t.Errorf("round score %d <= odd score %d, want round count to score higher", resRound.Score, resOdd.Score)
	}
}

func TestScoreMonotonicInEngagement(t *testing.T) {
	// Fewer chatters on the same stream must never look less suspicious.
	e := NewEngine(DefaultConfig())
	sparse := e.Score(channel.Metrics{Viewers: 1000, Chatters: 1, Followers: 5000, ChatRate: 0.001, MessageCount: 15})
	active := e.Score(channel.Metrics{Viewers: 1000, Chatters: 100, Followers: 5000, ChatRate: 0.1, MessageCount: 1500})
	if sparse.Score < active.Score {
		t.Errorf("sparse chat score %d < active chat score %d", sparse.Score, active.Score)
	}
}

func TestScoreReasonsTrimmed(t *testing.T) {
	// Input crafted to trip more than six heuristics at once.
	e := NewEngine(DefaultConfig())
	res := e.Score(channel.Metrics{
		Viewers:        2500,
		Chatters:       1,
		Followers:      400,
		ChatRate:       0.0004,
		MessageCount:   150,
		StreamDuration: 1200,
	})
	if len(res.Reasons) != 6 {
		t.Errorf("len(Reasons) = %d, want trimmed to 6", len(res.Reasons))
	}
	if res.Score > 98 {
		t.Errorf("Score = %d, want capped at 98", res.Score)
	}
}

func TestScoreDetails(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.Score(channel.Metrics{Viewers: 200, Chatters: 20, Followers: 1000, ChatRate: 0.1, StreamDuration: 7200})
	if got := res.Details["engagementRate"]; got != "10.00%" {
		t.Errorf("engagementRate = %s, want 10.00%%", got)
	}
	if got := res.Details["viewerToFollowerRatio"]; got != "0.20" {
		t.Errorf("viewerToFollowerRatio = %s, want 0.20", got)
	}
	if got := res.Details["viewersPerHour"]; got != "100" {
		t.Errorf("viewersPerHour = %s, want 100", got)
	}

	// Offline-duration analysis reports N/A rather than a bogus rate.
	res = e.Score(channel.Metrics{Viewers: 200, Chatters: 20, Followers: 1000})
	if got := res.Details["viewersPerHour"]; got != "N/A" {
		t.Errorf("viewersPerHour = %s, want N/A without stream duration", got)
	}
}

func TestScoreConfidenceBands(t *testing.T) {
	e := NewEngine(DefaultConfig())
	cases := []struct {
		name string
		m    channel.Metrics
		want Confidence
	}{
		{"healthy stream is low", channel.Metrics{Viewers: 50, Chatters: 10, Followers: 400, ChatRate: 0.2, MessageCount: 150}, ConfidenceLow},
		{"silent big stream is high", channel.Metrics{Viewers: 1000, Chatters: 0, Followers: 2000}, ConfidenceHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Score(tc.m)
			if res.Confidence != tc.want {
				t.Errorf("Confidence = %s (score %d), want %s", res.Confidence, res.Score, tc.want)
			}
		})
	}
}

func TestScoreCustomConfig(t *testing.T) {
	// Thresholds live on Config so deployments can tune them; a lowered cap
	// must bind the output.
	cfg := DefaultConfig()
	cfg.MaxScore = 50
	e := NewEngine(cfg)
	res := e.Score(channel.Metrics{Viewers: 1000, Chatters: 0, Followers: 10})
	if res.Score != 50 {
		t.Errorf("Score = %d, want capped at custom MaxScore 50", res.Score)
	}
}
