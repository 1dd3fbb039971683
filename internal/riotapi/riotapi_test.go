package riotapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePlatform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PH", "PH2"},
		{"SG", "SG2"},
		{"TH", "TH2"},
		{"TW", "TW2"},
		{"VN", "VN2"},
		{"NA1", "NA1"},
		{"EUW1", "EUW1"},
	}
	for _, tt := range tests {
		if got := normalizePlatform(tt.in); got != tt.want {
			t.Errorf("normalizePlatform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetSummonerNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("lol-key", "tft-key")
	var notFound *NotFoundError
	_, err := c.doJSONTestHook(context.Background(), srv.URL, notFoundOp)
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
}

const notFoundOp = "get_summoner"

// doJSONTestHook exercises the shared doJSON path against an arbitrary
// URL without going through the platform-routing helpers, so the 404
// handling can be tested against httptest without a real Riot host.
func (c *Client) doJSONTestHook(ctx context.Context, url, op string) (*Summoner, error) {
	p := c.poolFor(PriorityUpdater)
	var s Summoner
	err := c.doJSON(ctx, p, p.lolLimiter, c.lolKey, op, url, &s)
	return &s, err
}
