// Package models defines the persistent entities of §3 DATA MODEL,
// mirroring the original's db_model.rs/role_model.rs split the way the
// teacher groups small closely related files together.
package models

import "time"

// Tier is the ranked-tier ordinal: unranked=0, IRON=1 … CHALLENGER=9,
// unknown=-1.
type Tier int

const (
	TierUnknown     Tier = -1
	TierUnranked    Tier = 0
	TierIron        Tier = 1
	TierBronze      Tier = 2
	TierSilver      Tier = 3
	TierGold        Tier = 4
	TierPlatinum    Tier = 5
	TierDiamond     Tier = 6
	TierMaster      Tier = 7
	TierGrandmaster Tier = 8
	TierChallenger  Tier = 9
)

var tierNames = map[string]Tier{
	"IRON":        TierIron,
	"BRONZE":      TierBronze,
	"SILVER":      TierSilver,
	"GOLD":        TierGold,
	"PLATINUM":    TierPlatinum,
	"DIAMOND":     TierDiamond,
	"MASTER":      TierMaster,
	"GRANDMASTER": TierGrandmaster,
	"CHALLENGER":  TierChallenger,
}

// ParseTier parses a Riot API tier string into its ordinal. ok is false
// for anything not in tierNames; callers must drop the row rather than
// store an unparsable tier (§3 invariant).
func ParseTier(s string) (Tier, bool) {
	t, ok := tierNames[s]
	return t, ok
}

// User is the externally-owned player record (§3). Never deleted by
// this system.
type User struct {
	ID                     int64
	Snowflake              string
	Username               string
	LastScoreUpdateTS      int64
	LastRankUpdateTS       int64
	LastAccountUpdateTS    int64
	TreatAsUnranked        bool
	Ignore                 bool
	HasAccounts            bool
}

// LeagueAccount is a linked Riot account belonging to a User.
type LeagueAccount struct {
	ID             int64
	UserID         int64
	Username       string
	Region         string
	SummonerID     string
	AccountID      string
	PUUID          string
	TFTSummonerID  string
	TFTAccountID   string
	RiotIDGameName *string
	RiotIDTagline  *string
	Primary        bool
	IncludeRegion  bool
}

// UserRank is at most one row per (user_id, queue); absence = unranked.
type UserRank struct {
	ID     int64
	UserID int64
	Queue  string
	Tier   Tier
}

// UserChampionStat is unique on (user_id, champion_id).
type UserChampionStat struct {
	ID         int64
	UserID     int64
	ChampionID int64
	Level      int
	Score      int64
}

// UserMasteryDelta is an append-only time-series row.
type UserMasteryDelta struct {
	ID         int64
	UserID     int64
	Timestamp  time.Time
	ChampionID int64
	Delta      int64
	Value      int64
}

// Server is a mirrored guild plus role-assignment configuration.
type Server struct {
	ID                  int64
	Snowflake           string
	Name                string
	AnnouncementChannel *string
	NicknamePattern     string
}

// RoleCombinatorKind selects how a Role's conditions are combined.
type RoleCombinatorKind string

const (
	CombinatorAll      RoleCombinatorKind = "all"
	CombinatorAny      RoleCombinatorKind = "any"
	CombinatorAtLeast  RoleCombinatorKind = "at_least"
)

// RoleCombinator is the `{type, amount?}` JSON shape of §6.
type RoleCombinator struct {
	Type   RoleCombinatorKind `json:"type"`
	Amount int                `json:"amount,omitempty"`
}

// Role is a server-scoped role-assignment rule. Snowflake "" means
// temporarily disabled; a non-numeric snowflake must be skipped during
// reconciliation (§3).
type Role struct {
	ID         int64
	ServerID   int64
	Name       string
	Snowflake  string
	Announce   bool
	Combinator RoleCombinator
}

// GuildMember mirrors chat-platform membership, kept in sync by the
// ingest worker.
type GuildMember struct {
	GuildID  string
	UserID   string
	Nickname *string
	Roles    []string
}

// LeaderboardEntry is a denormalized per-champion (or "all") ranking row.
type LeaderboardEntry struct {
	UserID     int64
	ChampionID int64 // 0 for the "all" leaderboard
	Level      int
	Score      int64
}

// EvaluationContext is the tuple (user, accounts, ranks, stats)
// required to evaluate any role condition for a user (§GLOSSARY).
type EvaluationContext struct {
	User     User
	Accounts []LeagueAccount
	Ranks    []UserRank
	Stats    []UserChampionStat
}

// StatFor returns the (level, score) for championID, or (0, 0) if the
// user has no stat row for it — the default used throughout §4.5/§4.6.
func (c *EvaluationContext) StatFor(championID int64) (level int, score int64) {
	for _, s := range c.Stats {
		if s.ChampionID == championID {
			return s.Level, s.Score
		}
	}
	return 0, 0
}

// TotalMasteryLevel sums level across all stats.
func (c *EvaluationContext) TotalMasteryLevel() int {
	var total int
	for _, s := range c.Stats {
		total += s.Level
	}
	return total
}

// TotalMasteryScore sums score across all stats.
func (c *EvaluationContext) TotalMasteryScore() int64 {
	var total int64
	for _, s := range c.Stats {
		total += s.Score
	}
	return total
}
