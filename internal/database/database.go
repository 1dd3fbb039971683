// Package database is the typed query layer of spec.md §4.2, backed by
// github.com/jackc/pgx/v5 + pgxpool. Batch operations use
// `unnest($arrays)` so each batch is one round-trip, per §4.2's
// contract; duplicate (guild_id, user_id) pairs are deduplicated
// client-side before the round-trip since Discord occasionally emits a
// member twice in a GUILD_CREATE for users currently in voice.
//
// Grounded on original_source/shockwave/shockwave_core/src/database.rs
// (query surface and BatchQueryBuilder) and
// dissonance/src/database.rs (member/guild mirror queries).
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/shockwave-oss/shockwave/internal/evaluator"
	"github.com/shockwave-oss/shockwave/internal/models"
)

// allLeaderboardChampionID is the sentinel champion_id reserved for the
// "all" leaderboard (each user's best champion across every stat).
// spec.md §6 names `leaderboard_{champion_id}` and `leaderboard_all` as
// separate dynamically-named tables per champion; this repo uses one
// `leaderboard_entries` table with champion_id as a column instead —
// see DESIGN.md's Open Question decision for why.
const allLeaderboardChampionID int64 = 0

// DB wraps a pgxpool.Pool sized per §4.2 ("default 10 connections,
// pre-sized on connect").
type DB struct {
	pool *pgxpool.Pool
}

// Connect opens a pool of size poolSize against databaseURL.
func Connect(ctx context.Context, databaseURL string, poolSize int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: parse url: %w", err)
	}
	cfg.MaxConns = poolSize
	cfg.MinConns = poolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.pool.Close()
}

// ResetGuild deletes all guild_members for guildID. Invariant (§4.2):
// called exactly before the first full batch upsert following a
// guild-create.
func (db *DB) ResetGuild(ctx context.Context, guildID string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM guild_members WHERE guild_id = $1`, guildID)
	if err != nil {
		return fmt.Errorf("database: reset_guild %s: %w", guildID, err)
	}
	return nil
}

// UpsertBatchMembers upserts members for guildID in one round-trip via
// unnest, deduplicating by user_id first (client-side, per §4.2).
func (db *DB) UpsertBatchMembers(ctx context.Context, guildID string, members []models.GuildMember) error {
	if len(members) == 0 {
		return nil
	}

	deduped := make(map[string]models.GuildMember, len(members))
	order := make([]string, 0, len(members))
	for _, m := range members {
		if _, seen := deduped[m.UserID]; !seen {
			order = append(order, m.UserID)
		}
		deduped[m.UserID] = m
	}

	userIDs := make([]string, len(order))
	nicknames := make([]*string, len(order))
	rolesJSON := make([][]byte, len(order))
	for i, uid := range order {
		m := deduped[uid]
		userIDs[i] = uid
		nicknames[i] = m.Nickname
		rj, err := json.Marshal(m.Roles)
		if err != nil {
			return fmt.Errorf("database: marshal roles for %s: %w", uid, err)
		}
		rolesJSON[i] = rj
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO guild_members (guild_id, user_id, nickname, roles)
		SELECT $1, u, n, r::jsonb
		FROM unnest($2::text[], $3::text[], $4::text[]) AS t(u, n, r)
		ON CONFLICT (guild_id, user_id) DO UPDATE
		SET nickname = EXCLUDED.nickname, roles = EXCLUDED.roles
	`, guildID, userIDs, nicknames, jsonbStrings(rolesJSON))
	if err != nil {
		return fmt.Errorf("database: upsert_batch_members guild=%s: %w", guildID, err)
	}
	return nil
}

// UpsertMember upserts a single member (MEMBER_ADD/MEMBER_UPDATE, §4.9).
func (db *DB) UpsertMember(ctx context.Context, guildID string, member models.GuildMember) error {
	rolesJSON, err := json.Marshal(member.Roles)
	if err != nil {
		return fmt.Errorf("database: marshal roles for %s: %w", member.UserID, err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO guild_members (guild_id, user_id, nickname, roles)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (guild_id, user_id) DO UPDATE
		SET nickname = EXCLUDED.nickname, roles = EXCLUDED.roles
	`, guildID, member.UserID, member.Nickname, rolesJSON)
	if err != nil {
		return fmt.Errorf("database: upsert_member guild=%s user=%s: %w", guildID, member.UserID, err)
	}
	return nil
}

// RemoveMember deletes a single guild_members row (MEMBER_REMOVE, §4.9).
func (db *DB) RemoveMember(ctx context.Context, guildID, userID string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM guild_members WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return fmt.Errorf("database: remove_member guild=%s user=%s: %w", guildID, userID, err)
	}
	return nil
}

// InsertDiscordMemberRole idempotently appends roleSnowflake to a
// member's JSONB roles array: only if it's not already present (§4.2).
func (db *DB) InsertDiscordMemberRole(ctx context.Context, guildID, userID, roleSnowflake string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE guild_members
		SET roles = roles || to_jsonb($3::text)
		WHERE guild_id = $1 AND user_id = $2
		AND NOT (roles @> to_jsonb($3::text))
	`, guildID, userID, roleSnowflake)
	if err != nil {
		return fmt.Errorf("database: insert_discord_member_role guild=%s user=%s role=%s: %w", guildID, userID, roleSnowflake, err)
	}
	return nil
}

// ClearSnowflakeForRole sets roles.snowflake='' when the chat API
// responds "Unknown Role" (code 10011), preventing further
// reassignment attempts (§4.2/§7).
func (db *DB) ClearSnowflakeForRole(ctx context.Context, roleID int64) error {
	_, err := db.pool.Exec(ctx, `UPDATE roles SET snowflake = '' WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("database: clear_snowflake_for_role %d: %w", roleID, err)
	}
	return nil
}

// FindUsers returns an ordered page of has_accounts users for the sweep
// loops (§4.10): `ORDER BY id` with limit/offset.
func (db *DB) FindUsers(ctx context.Context, limit, offset int) ([]int64, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id FROM users WHERE has_accounts ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("database: find_users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("database: find_users scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindLRUUsers returns the n users with the oldest value in the given
// timestamp column, used by sweep loops to prioritize stale users.
// column must be one of the known last_*_update_ts columns.
func (db *DB) FindLRUUsers(ctx context.Context, column string, n int) ([]int64, error) {
	if !isKnownTimestampColumn(column) {
		return nil, fmt.Errorf("database: find_lru_users: unknown column %q", column)
	}
	rows, err := db.pool.Query(ctx, fmt.Sprintf(`
		SELECT id FROM users WHERE has_accounts ORDER BY %s ASC LIMIT $1
	`, column), n)
	if err != nil {
		return nil, fmt.Errorf("database: find_lru_users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("database: find_lru_users scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isKnownTimestampColumn(column string) bool {
	switch column {
	case "last_score_update_ts", "last_rank_update_ts", "last_account_update_ts":
		return true
	default:
		return false
	}
}

// GetBatchEvaluationContext fires four parallel queries (users,
// accounts, ranks, stats) and joins them in memory (§4.2). Order of
// returned contexts is not guaranteed to match ids' order.
func (db *DB) GetBatchEvaluationContext(ctx context.Context, ids []int64) ([]*models.EvaluationContext, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	var accounts []models.LeagueAccount
	var ranks []models.UserRank
	var stats []models.UserChampionStat

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { users, err = db.queryUsers(gctx, ids); return })
	g.Go(func() (err error) { accounts, err = db.queryAccounts(gctx, ids); return })
	g.Go(func() (err error) { ranks, err = db.queryRanks(gctx, ids); return })
	g.Go(func() (err error) { stats, err = db.queryStats(gctx, ids); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("database: get_batch_evaluation_context: %w", err)
	}

	out := make([]*models.EvaluationContext, 0, len(users))
	for _, u := range users {
		evalCtx := &models.EvaluationContext{User: u}
		for _, a := range accounts {
			if a.UserID == u.ID {
				evalCtx.Accounts = append(evalCtx.Accounts, a)
			}
		}
		for _, r := range ranks {
			if r.UserID == u.ID {
				evalCtx.Ranks = append(evalCtx.Ranks, r)
			}
		}
		for _, s := range stats {
			if s.UserID == u.ID {
				evalCtx.Stats = append(evalCtx.Stats, s)
			}
		}
		out = append(out, evalCtx)
	}
	return out, nil
}

// GetEvaluationContext is the single-user convenience form used by the
// HTTP façade and the reconciler.
func (db *DB) GetEvaluationContext(ctx context.Context, userID int64) (*models.EvaluationContext, error) {
	ctxs, err := db.GetBatchEvaluationContext(ctx, []int64{userID})
	if err != nil {
		return nil, err
	}
	if len(ctxs) == 0 {
		return nil, fmt.Errorf("database: get_evaluation_context: user %d not found", userID)
	}
	return ctxs[0], nil
}

func (db *DB) queryUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, snowflake, username, last_score_update_ts, last_rank_update_ts,
		       last_account_update_ts, treat_as_unranked, ignore, has_accounts
		FROM users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Snowflake, &u.Username, &u.LastScoreUpdateTS, &u.LastRankUpdateTS,
			&u.LastAccountUpdateTS, &u.TreatAsUnranked, &u.Ignore, &u.HasAccounts); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (db *DB) queryAccounts(ctx context.Context, ids []int64) ([]models.LeagueAccount, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, username, region, summoner_id, account_id, puuid,
		       tft_summoner_id, tft_account_id, riot_id_game_name, riot_id_tagline,
		       "primary", include_region
		FROM league_accounts WHERE user_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeagueAccount
	for rows.Next() {
		var a models.LeagueAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Username, &a.Region, &a.SummonerID, &a.AccountID, &a.PUUID,
			&a.TFTSummonerID, &a.TFTAccountID, &a.RiotIDGameName, &a.RiotIDTagline, &a.Primary, &a.IncludeRegion); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) queryRanks(ctx context.Context, ids []int64) ([]models.UserRank, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, user_id, queue, tier FROM user_ranks WHERE user_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserRank
	for rows.Next() {
		var r models.UserRank
		var tier int
		if err := rows.Scan(&r.ID, &r.UserID, &r.Queue, &tier); err != nil {
			return nil, err
		}
		r.Tier = models.Tier(tier)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) queryStats(ctx context.Context, ids []int64) ([]models.UserChampionStat, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, champion_id, level, score FROM user_champion_stats WHERE user_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserChampionStat
	for rows.Next() {
		var s models.UserChampionStat
		if err := rows.Scan(&s.ID, &s.UserID, &s.ChampionID, &s.Level, &s.Score); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertUserStats batch-upserts (champion_id, level, score) rows for
// userID via unnest. No-op on empty input (§4.2).
func (db *DB) UpsertUserStats(ctx context.Context, userID int64, stats []models.UserChampionStat) error {
	if len(stats) == 0 {
		return nil
	}
	championIDs := make([]int64, len(stats))
	levels := make([]int, len(stats))
	scores := make([]int64, len(stats))
	for i, s := range stats {
		championIDs[i] = s.ChampionID
		levels[i] = s.Level
		scores[i] = s.Score
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO user_champion_stats (user_id, champion_id, level, score)
		SELECT $1, c, l, s
		FROM unnest($2::bigint[], $3::int[], $4::bigint[]) AS t(c, l, s)
		ON CONFLICT (user_id, champion_id) DO UPDATE
		SET level = EXCLUDED.level, score = EXCLUDED.score
	`, userID, championIDs, levels, scores)
	if err != nil {
		return fmt.Errorf("database: upsert_user_stats user=%d: %w", userID, err)
	}
	return nil
}

// RemoveUserStatsForChampions deletes stats rows for userID's given
// champions. No-op on empty input.
func (db *DB) RemoveUserStatsForChampions(ctx context.Context, userID int64, championIDs []int64) error {
	if len(championIDs) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx, `
		DELETE FROM user_champion_stats WHERE user_id = $1 AND champion_id = ANY($2)
	`, userID, championIDs)
	if err != nil {
		return fmt.Errorf("database: remove_user_stats_for_champions user=%d: %w", userID, err)
	}
	return nil
}

// InsertUserMasteryDeltas batch-inserts append-only delta rows. No-op
// on empty input.
func (db *DB) InsertUserMasteryDeltas(ctx context.Context, deltas []models.UserMasteryDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	userIDs := make([]int64, len(deltas))
	championIDs := make([]int64, len(deltas))
	deltaVals := make([]int64, len(deltas))
	values := make([]int64, len(deltas))
	for i, d := range deltas {
		userIDs[i] = d.UserID
		championIDs[i] = d.ChampionID
		deltaVals[i] = d.Delta
		values[i] = d.Value
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO user_mastery_deltas_ts (user_id, champion_id, delta, value, "timestamp")
		SELECT u, c, d, v, NOW()
		FROM unnest($1::bigint[], $2::bigint[], $3::bigint[], $4::bigint[]) AS t(u, c, d, v)
	`, userIDs, championIDs, deltaVals, values)
	if err != nil {
		return fmt.Errorf("database: insert_user_mastery_deltas: %w", err)
	}
	return nil
}

// UpsertLeaderboardEntries batch-upserts per-champion (and, via
// allLeaderboardChampionID, "all") leaderboard rows.
func (db *DB) UpsertLeaderboardEntries(ctx context.Context, entries []models.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	userIDs := make([]int64, len(entries))
	championIDs := make([]int64, len(entries))
	levels := make([]int, len(entries))
	scores := make([]int64, len(entries))
	for i, e := range entries {
		userIDs[i] = e.UserID
		championIDs[i] = e.ChampionID
		levels[i] = e.Level
		scores[i] = e.Score
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO leaderboard_entries (user_id, champion_id, level, score)
		SELECT u, c, l, s
		FROM unnest($1::bigint[], $2::bigint[], $3::int[], $4::bigint[]) AS t(u, c, l, s)
		ON CONFLICT (user_id, champion_id) DO UPDATE
		SET level = EXCLUDED.level, score = EXCLUDED.score
	`, userIDs, championIDs, levels, scores)
	if err != nil {
		return fmt.Errorf("database: upsert_leaderboard_entries: %w", err)
	}
	return nil
}

// RemoveLeaderboardEntries removes this user's leaderboard rows for the
// given champions (used when a champion's stats are removed, §4.6).
func (db *DB) RemoveLeaderboardEntries(ctx context.Context, userID int64, championIDs []int64) error {
	if len(championIDs) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx, `
		DELETE FROM leaderboard_entries WHERE user_id = $1 AND champion_id = ANY($2)
	`, userID, championIDs)
	if err != nil {
		return fmt.Errorf("database: remove_leaderboard_entries user=%d: %w", userID, err)
	}
	return nil
}

// RemoveAllLeaderboardEntry removes the user's "all" leaderboard row.
func (db *DB) RemoveAllLeaderboardEntry(ctx context.Context, userID int64) error {
	return db.RemoveLeaderboardEntries(ctx, userID, []int64{allLeaderboardChampionID})
}


// RemoveAccount deletes a league account and recomputes users.has_accounts
// atomically in the same transaction (§3 invariant).
func (db *DB) RemoveAccount(ctx context.Context, userID, accountID int64) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: remove_account begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM league_accounts WHERE id = $1 AND user_id = $2`, accountID, userID); err != nil {
		return fmt.Errorf("database: remove_account delete: %w", err)
	}
	if err := recomputeHasAccounts(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("database: remove_account commit: %w", err)
	}
	return nil
}

func recomputeHasAccounts(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET has_accounts = EXISTS(SELECT 1 FROM league_accounts WHERE user_id = $1)
		WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("database: recompute has_accounts user=%d: %w", userID, err)
	}
	return nil
}

// UpdateLastScoreTimestamp sets users.last_score_update_ts = epochMillis.
func (db *DB) UpdateLastScoreTimestamp(ctx context.Context, userID, epochMillis int64) error {
	return db.updateTimestampColumn(ctx, "last_score_update_ts", userID, epochMillis)
}

// UpdateLastRankTimestamp sets users.last_rank_update_ts = epochMillis.
func (db *DB) UpdateLastRankTimestamp(ctx context.Context, userID, epochMillis int64) error {
	return db.updateTimestampColumn(ctx, "last_rank_update_ts", userID, epochMillis)
}

// UpdateLastAccountTimestamp sets users.last_account_update_ts = epochMillis.
func (db *DB) UpdateLastAccountTimestamp(ctx context.Context, userID, epochMillis int64) error {
	return db.updateTimestampColumn(ctx, "last_account_update_ts", userID, epochMillis)
}

func (db *DB) updateTimestampColumn(ctx context.Context, column string, userID, epochMillis int64) error {
	if !isKnownTimestampColumn(column) {
		return fmt.Errorf("database: update timestamp: unknown column %q", column)
	}
	_, err := db.pool.Exec(ctx, fmt.Sprintf(`UPDATE users SET %s = $2 WHERE id = $1`, column), userID, epochMillis)
	if err != nil {
		return fmt.Errorf("database: update %s user=%d: %w", column, userID, err)
	}
	return nil
}

// UpsertUserRank inserts or updates a single (user_id, queue) rank row.
func (db *DB) UpsertUserRank(ctx context.Context, userID int64, queue string, tier models.Tier) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO user_ranks (user_id, queue, tier) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, queue) DO UPDATE SET tier = EXCLUDED.tier
	`, userID, queue, int(tier))
	if err != nil {
		return fmt.Errorf("database: upsert_user_rank user=%d queue=%s: %w", userID, queue, err)
	}
	return nil
}

// RemoveUserRank deletes a (user_id, queue) rank row.
func (db *DB) RemoveUserRank(ctx context.Context, userID int64, queue string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM user_ranks WHERE user_id = $1 AND queue = $2`, userID, queue)
	if err != nil {
		return fmt.Errorf("database: remove_user_rank user=%d queue=%s: %w", userID, queue, err)
	}
	return nil
}

// UpsertLeagueAccount refreshes the Riot ID on an existing account row
// (§4.7's Riot-ID-refresh path). League accounts are externally
// created; this never inserts a new row, only updates a.ID.
func (db *DB) UpsertLeagueAccount(ctx context.Context, a models.LeagueAccount) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE league_accounts
		SET riot_id_game_name = $2, riot_id_tagline = $3
		WHERE id = $1
	`, a.ID, a.RiotIDGameName, a.RiotIDTagline)
	if err != nil {
		return fmt.Errorf("database: upsert_league_account user=%d: %w", a.UserID, err)
	}
	return nil
}

// GetServersForUser returns the servers a user is currently a member of
// (servers × guild_members join, §4.8 step 2).
func (db *DB) GetServersForUser(ctx context.Context, userSnowflake string) ([]models.Server, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT s.id, s.snowflake, s.name, s.announcement_channel, s.nickname_pattern
		FROM servers s
		JOIN guild_members gm ON gm.guild_id = s.snowflake
		WHERE gm.user_id = $1
	`, userSnowflake)
	if err != nil {
		return nil, fmt.Errorf("database: get_servers_for_user: %w", err)
	}
	defer rows.Close()

	var out []models.Server
	for rows.Next() {
		var s models.Server
		if err := rows.Scan(&s.ID, &s.Snowflake, &s.Name, &s.AnnouncementChannel, &s.NicknamePattern); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetGuildMember returns a user's membership row for guildID.
func (db *DB) GetGuildMember(ctx context.Context, guildID, userSnowflake string) (*models.GuildMember, error) {
	var gm models.GuildMember
	var rolesJSON []byte
	err := db.pool.QueryRow(ctx, `
		SELECT guild_id, user_id, nickname, roles FROM guild_members
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userSnowflake).Scan(&gm.GuildID, &gm.UserID, &gm.Nickname, &rolesJSON)
	if err != nil {
		return nil, fmt.Errorf("database: get_guild_member guild=%s user=%s: %w", guildID, userSnowflake, err)
	}
	if err := json.Unmarshal(rolesJSON, &gm.Roles); err != nil {
		return nil, fmt.Errorf("database: unmarshal roles guild=%s user=%s: %w", guildID, userSnowflake, err)
	}
	return &gm, nil
}

// UpdateGuildMemberNickname sets (or clears, if nick is nil) a cached
// member's nickname.
func (db *DB) UpdateGuildMemberNickname(ctx context.Context, guildID, userSnowflake string, nick *string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE guild_members SET nickname = $3 WHERE guild_id = $1 AND user_id = $2
	`, guildID, userSnowflake, nick)
	if err != nil {
		return fmt.Errorf("database: update_guild_member_nickname guild=%s user=%s: %w", guildID, userSnowflake, err)
	}
	return nil
}

// RoleWithConditions pairs a Role with its evaluator.Condition rows.
type RoleWithConditions struct {
	Role       models.Role
	Conditions []evaluator.Condition
}

// GetRolesAndConditionsForServer returns every role configured for
// serverID along with its deserialized conditions (§4.2).
func (db *DB) GetRolesAndConditionsForServer(ctx context.Context, serverID int64) ([]RoleWithConditions, error) {
	roleRows, err := db.pool.Query(ctx, `
		SELECT id, server_id, name, snowflake, announce, combinator FROM roles WHERE server_id = $1
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("database: get_roles_and_conditions_for_server: %w", err)
	}
	var roles []models.Role
	for roleRows.Next() {
		var r models.Role
		var combJSON []byte
		if err := roleRows.Scan(&r.ID, &r.ServerID, &r.Name, &r.Snowflake, &r.Announce, &combJSON); err != nil {
			roleRows.Close()
			return nil, err
		}
		if err := json.Unmarshal(combJSON, &r.Combinator); err != nil {
			roleRows.Close()
			return nil, fmt.Errorf("database: unmarshal combinator role=%d: %w", r.ID, err)
		}
		roles = append(roles, r)
	}
	roleErr := roleRows.Err()
	roleRows.Close()
	if roleErr != nil {
		return nil, roleErr
	}

	out := make([]RoleWithConditions, 0, len(roles))
	for _, r := range roles {
		conds, err := db.getConditionsForRole(ctx, r.ID)
		if err != nil {
			// Malformed condition JSON is a data error (§7): drop the role's
			// bad row set and continue rather than aborting the whole sweep.
			continue
		}
		out = append(out, RoleWithConditions{Role: r, Conditions: conds})
	}
	return out, nil
}

func (db *DB) getConditionsForRole(ctx context.Context, roleID int64) ([]evaluator.Condition, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, kind, options FROM role_conditions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []evaluator.Condition
	for rows.Next() {
		var id int64
		var kind string
		var optionsJSON []byte
		if err := rows.Scan(&id, &kind, &optionsJSON); err != nil {
			return nil, err
		}
		c, err := decodeCondition(id, kind, optionsJSON)
		if err != nil {
			continue // malformed condition row: skip, don't abort (§7)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// conditionOptions is the flattened JSON payload shape of §6.
type conditionOptions struct {
	CompareType string `json:"compare_type"`
	Value       int64  `json:"value"`
	Min         int64  `json:"min"`
	Max         int64  `json:"max"`
	Champion    int64  `json:"champion"`
	Tier        int    `json:"tier"`
	Queue       string `json:"queue"`
	Region      string `json:"region"`
}

func decodeCondition(id int64, kind string, optionsJSON []byte) (evaluator.Condition, error) {
	var opts conditionOptions
	if err := json.Unmarshal(optionsJSON, &opts); err != nil {
		return evaluator.Condition{}, err
	}

	c := evaluator.Condition{ID: id, Kind: evaluator.ConditionKind(kind)}
	switch c.Kind {
	case evaluator.KindMasteryLevel, evaluator.KindMasteryScore, evaluator.KindTotalMasteryLevel, evaluator.KindTotalMasteryScore:
		c.ChampionID = opts.Champion
		c.Range = evaluator.Range{
			CompareType: evaluator.CompareType(opts.CompareType),
			Value:       opts.Value,
			Min:         opts.Min,
			Max:         opts.Max,
		}
	case evaluator.KindRankedTier:
		c.TierCompare = evaluator.CompareType(opts.CompareType)
		c.Tier = models.Tier(opts.Tier)
		switch opts.Queue {
		case "ANY":
			c.Queue = evaluator.QueueAny
		case "HIGHEST":
			c.Queue = evaluator.QueueHighest
		case "HIGHEST_TFT":
			c.Queue = evaluator.QueueHighestIncludeTFT
		default:
			c.QueueName = opts.Queue
		}
	case evaluator.KindServer:
		c.Region = opts.Region
	default:
		return evaluator.Condition{}, fmt.Errorf("database: unknown condition kind %q", kind)
	}
	return c, nil
}

func jsonbStrings(in [][]byte) []string {
	out := make([]string, len(in))
	for i, b := range in {
		out[i] = string(b)
	}
	return out
}
