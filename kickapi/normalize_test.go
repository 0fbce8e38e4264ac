package kickapi

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/vieweraudit/backend/channel"
)

func TestNormalizeChannelAliasPrecedence(t *testing.T) {
	raw := gjson.Parse(`{
		"id": 123,
		"user": {"username": "trainwreckstv", "profile_pic": "https://files.kick.com/tw.png"},
		"username": "ignored-alias",
		"followersCount": 50000,
		"followers_count": 1,
		"livestream": {
			"is_live": true,
			"viewer_count": 4200,
			"session_title": "slots",
			"created_at": "2026-08-29 10:00:00",
			"categories": [{"name": "Slots"}]
		},
		"viewers_count": 1,
		"bio": "also ignored",
		"user_details": {"bio": "the real bio"}
	}`)

	rec, err := normalizeChannel(raw)
	if err != nil {
		t.Fatalf("normalizeChannel() error = %v", err)
	}
	if rec.Name != "trainwreckstv" || rec.Login != "trainwreckstv" {
		t.Errorf("Name/Login = %s/%s, want user.username to win", rec.Name, rec.Login)
	}
	if rec.Viewers != 4200 {
		t.Errorf("Viewers = %d, want livestream.viewer_count to win", rec.Viewers)
	}
	if rec.Followers != 50000 {
		t.Errorf("Followers = %d, want followersCount to win", rec.Followers)
	}
	if rec.Title != "the real bio" {
		t.Errorf("Title = %q, want user_details.bio to win", rec.Title)
	}
	if rec.Avatar != "https://files.kick.com/tw.png" {
		t.Errorf("Avatar = %q, want user.profile_pic", rec.Avatar)
	}
	if rec.Game != "Slots" {
		t.Errorf("Game = %q, want livestream categories alias to resolve", rec.Game)
	}
	if rec.StartedAt == nil {
		t.Error("StartedAt = nil, want parsed space-separated timestamp")
	}
	if rec.Platform != channel.PlatformKick {
		t.Errorf("Platform = %s, want kick", rec.Platform)
	}
}

func TestNormalizeChannelOfflineDropsViewers(t *testing.T) {
	// Viewer counts sometimes linger in offline payloads; an offline record
	// must still come back with zero viewers and no start time.
	raw := gjson.Parse(`{
		"id": 9,
		"username": "sleepy",
		"viewers_count": 777,
		"created_at": "2026-08-29T10:00:00Z",
		"is_live": false
	}`)
	rec, err := normalizeChannel(raw)
	if err != nil {
		t.Fatalf("normalizeChannel() error = %v", err)
	}
	if rec.IsLive || rec.Viewers != 0 || rec.StartedAt != nil {
		t.Errorf("offline record = %+v, want zero viewers and nil StartedAt", rec)
	}
}

func TestNormalizeChannelNoIdentity(t *testing.T) {
	_, err := normalizeChannel(gjson.Parse(`{"message": "Not Found"}`))
	if !errors.Is(err, channel.ErrNotFound) {
		t.Errorf("normalizeChannel() error = %v, want ErrNotFound", err)
	}
}

func TestNormalizeListDropsBadEntries(t *testing.T) {
	list := gjson.Parse(`[
		{"id": 1, "username": "good"},
		{"message": "corrupt"},
		{"id": 2, "user": {"username": "alsogood"}}
	]`)
	recs := normalizeList(list)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (corrupt entry dropped)", len(recs))
	}
	if recs[0].Login != "good" || recs[1].Login != "alsogood" {
		t.Errorf("logins = %s, %s", recs[0].Login, recs[1].Login)
	}
}

func TestParseKickTime(t *testing.T) {
	cases := []struct {
		in     string
		wantOK bool
	}{
		{"2026-08-29T10:00:00Z", true},
		{"2026-08-29 10:00:00", true},
		{"2026-08-29T10:00:00", true},
		{"yesterday", false},
		{"", false},
	}
	for _, tc := range cases {
		got := parseKickTime(tc.in)
		if (got != nil) != tc.wantOK {
			t.Errorf("parseKickTime(%q) = %v, want parse ok %v", tc.in, got, tc.wantOK)
		}
	}
}
