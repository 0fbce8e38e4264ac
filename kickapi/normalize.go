package kickapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vieweraudit/backend/channel"
)

// Kick's API answers with several response variants depending on endpoint
// and deployment, so every logical field is resolved through an ordered
// list of alias paths: the first present value wins, and absent fields
// default per type instead of failing.
var (
	namePaths      = []string{"user.username", "username"}
	titlePaths     = []string{"user_details.bio", "bio", "livestream.session_title"}
	gamePaths      = []string{"categories.0.name", "livestream.categories.0.name"}
	viewersPaths   = []string{"livestream.viewer_count", "viewers_count", "viewers"}
	followersPaths = []string{"followersCount", "followers_count", "followers"}
	avatarPaths    = []string{"user.profile_pic", "user.avatar.url", "avatar.url", "avatar"}
	livePaths      = []string{"livestream.is_live", "is_live"}
	startedPaths   = []string{"livestream.created_at", "created_at"}
)

func firstString(raw gjson.Result, paths []string) string {
	for _, p := range paths {
		if v := raw.Get(p); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

func firstInt(raw gjson.Result, paths []string) int {
	for _, p := range paths {
		if v := raw.Get(p); v.Exists() && v.Type == gjson.Number {
			return int(v.Int())
		}
	}
	return 0
}

func firstBool(raw gjson.Result, paths []string) bool {
	for _, p := range paths {
		if v := raw.Get(p); v.Exists() {
			return v.Bool()
		}
	}
	return false
}

// normalizeChannel converts one raw Kick channel object into the canonical
// record. It fails only when the object carries no identity at all.
func normalizeChannel(raw gjson.Result) (*channel.Record, error) {
	id := raw.Get("id")
	name := firstString(raw, namePaths)
	if !id.Exists() && name == "" {
		return nil, fmt.Errorf("%w: kick response carries no channel", channel.ErrNotFound)
	}

	rec := &channel.Record{
		ID:        id.String(),
		Name:      name,
		Login:     name,
		Platform:  channel.PlatformKick,
		Title:     firstString(raw, titlePaths),
		Game:      firstString(raw, gamePaths),
		Followers: firstInt(raw, followersPaths),
		Avatar:    firstString(raw, avatarPaths),
		IsLive:    firstBool(raw, livePaths),
	}
	if rec.IsLive {
		rec.Viewers = firstInt(raw, viewersPaths)
		rec.StartedAt = parseKickTime(firstString(raw, startedPaths))
	}
	return rec, nil
}

// normalizeList maps a listing payload, dropping entries that carry no
// identity rather than failing the whole page.
func normalizeList(list gjson.Result) []channel.Record {
	var out []channel.Record
	list.ForEach(func(_, entry gjson.Result) bool {
		if rec, err := normalizeChannel(entry); err == nil {
			out = append(out, *rec)
		}
		return true
	})
	return out
}

// parseKickTime accepts the timestamp shapes Kick has been seen emitting.
func parseKickTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return &t
		}
	}
	return nil
}
