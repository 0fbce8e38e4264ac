package kickapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/vieweraudit/backend/channel"
)

// chainServer serves both the Kick API base and the relay proxy from one
// httptest server, so tier order is observable from the request log.
type chainServer struct {
	*httptest.Server
	requests []string
}

func newChainServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *chainServer {
	t.Helper()
	cs := &chainServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.requests = append(cs.requests, r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newChainClient(cs *chainServer) *Client {
	return &Client{
		BaseURL:  cs.URL + "/api/v1",
		ProxyURL: cs.URL + "/proxy",
		Timeouts: Timeouts{
			DirectSearch:  time.Second,
			DirectChannel: time.Second,
			Proxy:         time.Second,
			Bulk:          time.Second,
		},
	}
}

func TestSearchChannelsDirectSuccess(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/channels" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("search"); got != "train" {
			t.Errorf("search query = %q, want train", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"id": 1, "username": "trainwreckstv"}]}`))
	})
	c := newChainClient(cs)

	recs, err := c.SearchChannels(context.Background(), "train", 10)
	if err != nil {
		t.Fatalf("SearchChannels() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Login != "trainwreckstv" {
		t.Errorf("records = %+v, want one trainwreckstv", recs)
	}
	if len(cs.requests) != 1 {
		t.Errorf("requests = %v, want direct tier only", cs.requests)
	}
}

func TestSearchChannelsFallsBackToProxy(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/channels":
			// Direct tier blocked, as when Kick rejects the caller's network.
			w.WriteHeader(http.StatusForbidden)
		case "/proxy":
			if r.URL.Query().Get("url") == "" {
				t.Error("proxy called without url parameter")
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [{"id": 1, "username": "trainwreckstv"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newChainClient(cs)

	recs, err := c.SearchChannels(context.Background(), "train", 10)
	if err != nil {
		t.Fatalf("SearchChannels() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1 via proxy tier", len(recs))
	}
	want := []string{"/api/v1/channels", "/proxy"}
	if !reflect.DeepEqual(cs.requests, want) {
		t.Errorf("requests = %v, want %v", cs.requests, want)
	}
}

func TestSearchChannelsBulkFilter(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/channels":
			if r.URL.Query().Get("search") != "" {
				// Search endpoint down; only the plain listing works.
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [
				{"id": 1, "username": "trainwreckstv"},
				{"id": 2, "username": "xqc"},
				{"id": 3, "username": "Trainspotter"}
			]}`))
		case "/proxy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newChainClient(cs)

	recs, err := c.SearchChannels(context.Background(), "train", 10)
	if err != nil {
		t.Fatalf("SearchChannels() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 substring matches", len(recs))
	}
	if recs[0].Login != "trainwreckstv" || recs[1].Login != "Trainspotter" {
		t.Errorf("matches = %s, %s", recs[0].Login, recs[1].Login)
	}
}

func TestSearchChannelsPopularFallback(t *testing.T) {
	// Every listing tier fails; the curated fallback resolves matched
	// handles through the single-channel chain.
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/channels":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/api/v1/channels/destiny":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": 7, "username": "destiny", "followers_count": 400000}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	c := newChainClient(cs)

	recs, err := c.SearchChannels(context.Background(), "dest", 10)
	if err != nil {
		t.Fatalf("SearchChannels() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Login != "destiny" {
		t.Errorf("records = %+v, want destiny via popular tier", recs)
	}
}

func TestSearchChannelsExhaustedKeepsMeaningfulError(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newChainClient(cs)

	// A query matching nothing curated: the popular tier's no-match error
	// must not mask the upstream failures before it.
	_, err := c.SearchChannels(context.Background(), "zzzzqqqq", 10)
	if err == nil {
		t.Fatal("SearchChannels() = nil error, want exhausted chain error")
	}
	var ue *channel.UpstreamError
	if !errors.As(err, &ue) {
		t.Errorf("error = %v, want wrapped UpstreamError from a real tier", err)
	}
}

func TestSearchChannelsTimeoutAdvancesChain(t *testing.T) {
	slow := make(chan struct{})
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/proxy" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [{"id": 1, "username": "trainwreckstv"}]}`))
			return
		}
		<-slow // direct tier hangs past its budget
	})
	// Registered after newChainServer so this runs before cs.Close,
	// unblocking the hung handler the server shutdown waits on.
	t.Cleanup(func() { close(slow) })
	c := newChainClient(cs)
	c.Timeouts.DirectSearch = 50 * time.Millisecond

	recs, err := c.SearchChannels(context.Background(), "train", 10)
	if err != nil {
		t.Fatalf("SearchChannels() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records, want proxy result after direct timeout", len(recs))
	}
}

func TestGetChannelNotFoundIsTerminal(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "Not Found"}`))
	})
	c := newChainClient(cs)

	_, err := c.GetChannel(context.Background(), "nobody")
	if !errors.Is(err, channel.ErrNotFound) {
		t.Fatalf("GetChannel() error = %v, want ErrNotFound", err)
	}
	// Definitive not-found must not fall through to the proxy tier.
	if len(cs.requests) != 1 {
		t.Errorf("requests = %v, want direct tier only", cs.requests)
	}
}

func TestGetChannelProxyFallback(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/channels/xqc":
			w.WriteHeader(http.StatusForbidden)
		case "/proxy":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": 2, "username": "xqc", "livestream": {"is_live": true, "viewer_count": 30000}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newChainClient(cs)

	rec, err := c.GetChannel(context.Background(), "xqc")
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if rec.Login != "xqc" || !rec.IsLive || rec.Viewers != 30000 {
		t.Errorf("record = %+v, want live xqc via proxy", rec)
	}
}

func TestGetChannelInvalidJSON(t *testing.T) {
	cs := newChainServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>rate limited</html>"))
	})
	c := newChainClient(cs)

	_, err := c.GetChannel(context.Background(), "xqc")
	if err == nil {
		t.Fatal("GetChannel() = nil error, want failure on non-JSON body from every tier")
	}
	var ue *channel.UpstreamError
	if !errors.As(err, &ue) {
		t.Errorf("error = %v, want UpstreamError", err)
	}
}

func TestMatchPopular(t *testing.T) {
	curated := DefaultPopularChannels
	cases := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"prefix fragment", "dest", 10, []string{"destiny"}},
		{"query contains handle", "xqc live stream", 10, []string{"xqc"}},
		{"token match", "watch train wrecks", 10, []string{"trainwreckstv"}},
		{"no match", "zzzzqqqq", 10, nil},
		{"empty query", "   ", 10, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matchPopular(curated, tc.query, tc.limit)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("matchPopular(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestMatchPopularLimitAndDedupe(t *testing.T) {
	got := matchPopular([]string{"poki", "poki", "pokimane", "pokelawls"}, "pok", 2)
	want := []string{"poki", "pokimane"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("matchPopular() = %v, want deduped and capped %v", got, want)
	}
}
