package kickapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/vieweraudit/backend/channel"
)

// DefaultPopularChannels is the curated last-resort search corpus: handles
// well known enough that resolving them individually is worth the extra
// calls when every live listing tier has failed.
var DefaultPopularChannels = []string{
	"adinross", "trainwreckstv", "destiny", "hasanabi", "pokelawls",
	"adinfinitum", "xqc", "shroud", "ninja", "pokimane",
	"ludwig", "mizkif", "esfand", "asmongold", "reckful",
	"sodapoppin", "lirik", "summit1g", "valkyrae", "sykkuno",
	"corpse", "disguisedtoast", "fuslie", "peterparktv", "masayoshi",
	"qtcinderella", "maya", "connoreatspants",
}

var errNoPopularMatch = errors.New("no curated channel matched query")

// matchPopular selects curated handles for a query: substring containment
// in either direction first, then token-level partials (whitespace-split
// tokens longer than two characters). Matches are deduplicated in order
// and capped at limit.
func matchPopular(curated []string, query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matched []string
	for _, h := range curated {
		hl := strings.ToLower(h)
		if strings.Contains(hl, q) || strings.Contains(q, hl) {
			matched = append(matched, h)
		}
	}

	if len(matched) == 0 {
		tokens := strings.Fields(q)
		for _, h := range curated {
			hl := strings.ToLower(h)
			for _, tok := range tokens {
				if len(tok) > 2 && strings.Contains(hl, tok) {
					matched = append(matched, h)
					break
				}
			}
		}
	}

	seen := make(map[string]struct{}, len(matched))
	var out []string
	for _, h := range matched {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out
}

// searchPopular is the terminal search tier: match the query against the
// curated list, then resolve each handle through the single-channel chain,
// silently skipping handles that fail resolution.
func (c *Client) searchPopular(ctx context.Context, query string, limit int) ([]channel.Record, error) {
	handles := matchPopular(c.popular(), query, limit)
	if len(handles) == 0 {
		return nil, errNoPopularMatch
	}
	results := make([]channel.Record, 0, len(handles))
	for _, h := range handles {
		rec, err := c.GetChannel(ctx, h)
		if err != nil {
			slog.Debug("popular fallback could not resolve handle", slog.String("handle", h), slog.Any("err", err))
			continue
		}
		results = append(results, *rec)
	}
	if len(results) == 0 {
		return nil, errNoPopularMatch
	}
	return results, nil
}
