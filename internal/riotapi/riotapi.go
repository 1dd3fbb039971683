// Package riotapi is the dual-pool rate-limited REST client of spec.md
// §4.4. Two logical pools share the same HTTP surface but carry
// separate rate-limit budgets (Updater ~90%, UserAction ~10%) via
// golang.org/x/time/rate, and separate clients exist for the LoL and
// TFT API keys within each pool. Grounded on
// original_source/shockwave/shockwave_core/src/riot_api.rs.
package riotapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/shockwave-oss/shockwave/internal/logging"
)

// Priority selects which rate-limit budget an outbound call is charged
// against (§4.4, GLOSSARY).
type Priority int

const (
	PriorityUpdater Priority = iota
	PriorityUserAction
)

// platformRegionAlias maps a LoL platform region to the routing value
// the Riot API expects, rewriting the five regions that were split into
// a "2" shard (e.g. PH -> PH2).
var platformRegionAlias = map[string]string{
	"PH": "PH2",
	"SG": "SG2",
	"TH": "TH2",
	"TW": "TW2",
	"VN": "VN2",
}

// regionalClusters is used to randomly distribute get_riot_id calls
// across AMERICAS/ASIA/EUROPE for load balancing (§4.4).
var regionalClusters = []string{"AMERICAS", "ASIA", "EUROPE"}

// NotFoundError marks an HTTP 404 — surfaced distinctly because a 404
// on get_summoner triggers account removal (§4.7).
type NotFoundError struct {
	Op string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("riotapi: %s: not found", e.Op) }

// LeagueEntry is one ranked-queue entry as returned by the LoL/TFT
// league-entries endpoints.
type LeagueEntry struct {
	QueueType string `json:"queueType"`
	Tier      string `json:"tier"`
}

// ChampionMastery is one champion-mastery-score entry.
type ChampionMastery struct {
	ChampionID        int64 `json:"championId"`
	ChampionLevel     int   `json:"championLevel"`
	ChampionPoints    int64 `json:"championPoints"`
}

// Summoner is the subset of the summoner-v4 response this repo needs.
type Summoner struct {
	ID   string `json:"id"`
	PUUID string `json:"puuid"`
}

// RiotID is a Riot-account-v1 gameName/tagLine pair.
type RiotID struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// pool bundles one rate limiter + HTTP client pair per API key.
type pool struct {
	lolLimiter *rate.Limiter
	tftLimiter *rate.Limiter
	http       *http.Client
}

// Client is the dual-pool Riot API client (§4.4).
type Client struct {
	lolKey string
	tftKey string

	updater   pool
	userAction pool
}

// New builds a Client. Rate limits follow §4.4's ~90/~10 split of the
// key's overall quota; the concrete per-second budgets below are a
// conservative fit for the standard development-key rate (20 req/s,
// 100 req/2min) split proportionally.
func New(lolKey, tftKey string) *Client {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	return &Client{
		lolKey: lolKey,
		tftKey: tftKey,
		updater: pool{
			lolLimiter: rate.NewLimiter(rate.Limit(18), 18),
			tftLimiter: rate.NewLimiter(rate.Limit(18), 18),
			http:       httpClient,
		},
		userAction: pool{
			lolLimiter: rate.NewLimiter(rate.Limit(2), 2),
			tftLimiter: rate.NewLimiter(rate.Limit(2), 2),
			http:       httpClient,
		},
	}
}

func (c *Client) poolFor(priority Priority) *pool {
	if priority == PriorityUserAction {
		return &c.userAction
	}
	return &c.updater
}

func normalizePlatform(region string) string {
	if alias, ok := platformRegionAlias[region]; ok {
		return alias
	}
	return region
}

func randomRegionalCluster() string {
	return regionalClusters[rand.Intn(len(regionalClusters))]
}

func (c *Client) doJSON(ctx context.Context, p *pool, limiter *rate.Limiter, apiKey, op, url string, out interface{}) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("riotapi: %s: rate limit wait: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("riotapi: %s: build request: %w", op, err)
	}
	req.Header.Set("X-Riot-Token", apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("riotapi: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Op: op}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("riotapi: %s: rate limited (429)", op)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("riotapi: %s: server error %d", op, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("riotapi: %s: status %d: %s", op, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("riotapi: %s: decode response: %w", op, err)
	}
	return nil
}

// GetLoLLeagueEntries fetches ranked LoL queue entries for a summoner.
func (c *Client) GetLoLLeagueEntries(ctx context.Context, priority Priority, region, summonerID string) ([]LeagueEntry, error) {
	p := c.poolFor(priority)
	platform := normalizePlatform(region)
	url := fmt.Sprintf("https://%s.api.riotgames.com/lol/league/v4/entries/by-summoner/%s", platform, summonerID)

	var entries []LeagueEntry
	if err := c.doJSON(ctx, p, p.lolLimiter, c.lolKey, "get_lol_league_entries", url, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetTFTLeagueEntries fetches ranked TFT queue entries for a summoner,
// dropping entries without a tier (hyperroll queues, §4.4).
func (c *Client) GetTFTLeagueEntries(ctx context.Context, priority Priority, region, tftSummonerID string) ([]LeagueEntry, error) {
	p := c.poolFor(priority)
	platform := normalizePlatform(region)
	url := fmt.Sprintf("https://%s.api.riotgames.com/tft/league/v1/entries/by-summoner/%s", platform, tftSummonerID)

	var raw []LeagueEntry
	if err := c.doJSON(ctx, p, p.tftLimiter, c.tftKey, "get_tft_league_entries", url, &raw); err != nil {
		return nil, err
	}

	entries := raw[:0]
	for _, e := range raw {
		if e.Tier != "" {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// GetChampionMasteryScores fetches every champion mastery entry for a
// summoner.
func (c *Client) GetChampionMasteryScores(ctx context.Context, priority Priority, region, summonerID string) ([]ChampionMastery, error) {
	p := c.poolFor(priority)
	platform := normalizePlatform(region)
	url := fmt.Sprintf("https://%s.api.riotgames.com/lol/champion-mastery/v4/champion-masteries/by-summoner/%s", platform, summonerID)

	var masteries []ChampionMastery
	if err := c.doJSON(ctx, p, p.lolLimiter, c.lolKey, "get_champion_mastery_scores", url, &masteries); err != nil {
		return nil, err
	}
	return masteries, nil
}

// GetSummoner fetches summoner-v4 data by summoner id. A 404 surfaces
// as *NotFoundError (§4.4/§4.7).
func (c *Client) GetSummoner(ctx context.Context, priority Priority, region, summonerID string) (*Summoner, error) {
	p := c.poolFor(priority)
	platform := normalizePlatform(region)
	url := fmt.Sprintf("https://%s.api.riotgames.com/lol/summoner/v4/summoners/%s", platform, summonerID)

	var s Summoner
	if err := c.doJSON(ctx, p, p.lolLimiter, c.lolKey, "get_summoner", url, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetRiotID fetches the gameName/tagLine for a puuid, randomly
// distributing across AMERICAS/ASIA/EUROPE regional clusters for load
// balancing (§4.4).
func (c *Client) GetRiotID(ctx context.Context, priority Priority, puuid string) (*RiotID, error) {
	p := c.poolFor(priority)
	cluster := randomRegionalCluster()
	url := fmt.Sprintf("https://%s.api.riotgames.com/riot/account/v1/accounts/by-puuid/%s", cluster, puuid)

	var id RiotID
	if err := c.doJSON(ctx, p, p.lolLimiter, c.lolKey, "get_riot_id", url, &id); err != nil {
		logging.Warn(logging.Riot).Logf("get_riot_id failed via cluster %s: %v", cluster, err)
		return nil, err
	}
	return &id, nil
}
