package updater

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/internal/models"
	"github.com/shockwave-oss/shockwave/internal/riotapi"
)

func epochMillis() int64 { return time.Now().UnixMilli() }

type masteryPoint struct {
	level int
	score int64
}

// FetchMastery implements §4.6: differential mastery fetch, stat/
// leaderboard/delta writes, and the "all" leaderboard update rule.
func (u *Updater) FetchMastery(ctx context.Context, priority riotapi.Priority, evalCtx *models.EvaluationContext) error {
	userID := evalCtx.User.ID

	old := make(map[int64]masteryPoint, len(evalCtx.Stats))
	for _, s := range evalCtx.Stats {
		old[s.ChampionID] = masteryPoint{level: s.Level, score: s.Score}
	}
	hadStatsBefore := len(evalCtx.Stats) > 0

	merged := make(map[int64]masteryPoint)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, acct := range evalCtx.Accounts {
		acct := acct
		g.Go(func() error {
			masteries, err := u.Riot.GetChampionMasteryScores(gctx, priority, acct.Region, acct.SummonerID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, m := range masteries {
				cur := merged[m.ChampionID]
				if m.ChampionLevel > cur.level {
					cur.level = m.ChampionLevel
				}
				cur.score += m.ChampionPoints
				merged[m.ChampionID] = cur
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var onlyOld, onlyNew []int64
	var changed []int64
	for champ := range old {
		if _, ok := merged[champ]; !ok {
			onlyOld = append(onlyOld, champ)
		}
	}
	for champ, pt := range merged {
		if oldPt, ok := old[champ]; ok {
			if oldPt != pt {
				changed = append(changed, champ)
			}
		} else {
			onlyNew = append(onlyNew, champ)
		}
	}

	var statsToUpsert []models.UserChampionStat
	var deltas []models.UserMasteryDelta
	var lbUpserts []models.LeaderboardEntry

	for _, champ := range changed {
		pt := merged[champ]
		statsToUpsert = append(statsToUpsert, models.UserChampionStat{UserID: userID, ChampionID: champ, Level: pt.level, Score: pt.score})
		deltas = append(deltas, models.UserMasteryDelta{UserID: userID, ChampionID: champ, Value: pt.score, Delta: pt.score - old[champ].score})
		lbUpserts = append(lbUpserts, models.LeaderboardEntry{UserID: userID, ChampionID: champ, Level: pt.level, Score: pt.score})
	}
	for _, champ := range onlyNew {
		pt := merged[champ]
		statsToUpsert = append(statsToUpsert, models.UserChampionStat{UserID: userID, ChampionID: champ, Level: pt.level, Score: pt.score})
		lbUpserts = append(lbUpserts, models.LeaderboardEntry{UserID: userID, ChampionID: champ, Level: pt.level, Score: pt.score})
	}

	if err := u.DB.UpsertUserStats(ctx, userID, statsToUpsert); err != nil {
		return err
	}
	if err := u.DB.InsertUserMasteryDeltas(ctx, deltas); err != nil {
		return err
	}
	if err := u.DB.UpsertLeaderboardEntries(ctx, lbUpserts); err != nil {
		return err
	}
	if err := u.DB.RemoveUserStatsForChampions(ctx, userID, onlyOld); err != nil {
		return err
	}
	if err := u.DB.RemoveLeaderboardEntries(ctx, userID, onlyOld); err != nil {
		return err
	}

	// "all" leaderboard: only bump if the new overall best mastery score
	// strictly exceeds the previous maximum. prevMax is computed from
	// ctx.stats captured before any writes this call made, not re-queried
	// from the DB afterward — the leaderboard upserts above would
	// otherwise already be reflected in that query (§4.6 step 5).
	var prevMax int64
	for _, pt := range old {
		if pt.score > prevMax {
			prevMax = pt.score
		}
	}

	var best masteryPoint
	hasBest := false
	for _, pt := range merged {
		if !hasBest || pt.score > best.score {
			best, hasBest = pt, true
		}
	}

	if hasBest && best.score > prevMax {
		if err := u.DB.UpsertLeaderboardEntries(ctx, []models.LeaderboardEntry{
			{UserID: userID, ChampionID: 0, Level: best.level, Score: best.score},
		}); err != nil {
			return err
		}
	}

	// If the user had stats before and now has none, drop the "all" row too.
	if hadStatsBefore && len(merged) == 0 {
		if err := u.DB.RemoveAllLeaderboardEntry(ctx, userID); err != nil {
			return err
		}
	}

	return u.DB.UpdateLastScoreTimestamp(ctx, userID, epochMillis())
}

// FetchRanks implements §4.7's ranks half: fetch LoL+TFT entries in
// parallel, group by queue keeping the max-tier entry, diff against
// stored ranks, and write removals/updates/inserts in parallel.
func (u *Updater) FetchRanks(ctx context.Context, priority riotapi.Priority, evalCtx *models.EvaluationContext) error {
	userID := evalCtx.User.ID

	byQueue := make(map[string]models.Tier)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, acct := range evalCtx.Accounts {
		acct := acct
		g.Go(func() error {
			lolEntries, err := u.Riot.GetLoLLeagueEntries(gctx, priority, acct.Region, acct.SummonerID)
			if err != nil {
				return err
			}
			tftEntries, err := u.Riot.GetTFTLeagueEntries(gctx, priority, acct.Region, acct.TFTSummonerID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, e := range append(lolEntries, tftEntries...) {
				tier, ok := models.ParseTier(e.Tier)
				if !ok {
					continue // unparsable tier: drop the row, never abort (§7)
				}
				if cur, exists := byQueue[e.QueueType]; !exists || tier > cur {
					byQueue[e.QueueType] = tier
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	existing := make(map[string]models.Tier, len(evalCtx.Ranks))
	for _, r := range evalCtx.Ranks {
		existing[r.Queue] = r.Tier
	}

	writeGroup, writeCtx := errgroup.WithContext(ctx)
	for queue, oldTier := range existing {
		queue, oldTier := queue, oldTier
		if _, stillRanked := byQueue[queue]; !stillRanked {
			writeGroup.Go(func() error { return u.DB.RemoveUserRank(writeCtx, userID, queue) })
			continue
		}
		if newTier := byQueue[queue]; newTier != oldTier {
			writeGroup.Go(func() error { return u.DB.UpsertUserRank(writeCtx, userID, queue, byQueue[queue]) })
		}
	}
	for queue, tier := range byQueue {
		if _, alreadyTracked := existing[queue]; !alreadyTracked {
			queue, tier := queue, tier
			writeGroup.Go(func() error { return u.DB.UpsertUserRank(writeCtx, userID, queue, tier) })
		}
	}
	if err := writeGroup.Wait(); err != nil {
		return err
	}

	return u.DB.UpdateLastRankTimestamp(ctx, userID, epochMillis())
}

// FetchAccounts implements §4.7's accounts half: summoner lookup per
// account, 404 -> removal + transfer notification, otherwise Riot ID
// refresh.
func (u *Updater) FetchAccounts(ctx context.Context, priority riotapi.Priority, evalCtx *models.EvaluationContext) error {
	userID := evalCtx.User.ID

	for _, acct := range evalCtx.Accounts {
		summoner, err := u.Riot.GetSummoner(ctx, priority, acct.Region, acct.SummonerID)
		if err != nil {
			if isNotFound(err) {
				if rmErr := u.DB.RemoveAccount(ctx, userID, acct.ID); rmErr != nil {
					return rmErr
				}
				if u.Frontend != nil {
					if notifyErr := u.Frontend.Transfer(ctx, userID, acct.Region, acct.Username); notifyErr != nil {
						logging.Warn(logging.Updater).Logf("transfer notification failed for user %d: %v", userID, notifyErr)
					}
				}
				continue
			}
			// Other API errors: skip to next account without touching DB (§4.7).
			logging.Warn(logging.Updater).Logf("get_summoner failed for account %d: %v", acct.ID, err)
			continue
		}
		_ = summoner

		riotID, err := u.Riot.GetRiotID(ctx, priority, acct.PUUID)
		if err != nil {
			logging.Warn(logging.Updater).Logf("get_riot_id failed for account %d: %v", acct.ID, err)
			continue
		}
		if changed := acct.RiotIDGameName == nil || *acct.RiotIDGameName != riotID.GameName ||
			acct.RiotIDTagline == nil || *acct.RiotIDTagline != riotID.TagLine; changed {
			acct.RiotIDGameName = &riotID.GameName
			acct.RiotIDTagline = &riotID.TagLine
			if err := u.DB.UpsertLeagueAccount(ctx, acct); err != nil {
				return err
			}
		}
	}

	return u.DB.UpdateLastAccountTimestamp(ctx, userID, epochMillis())
}

// FetchAll runs mastery, ranks, and accounts fetches in parallel — the
// HTTP façade's on-demand update path (§4.11) runs this at UserAction
// priority before calling UpdateUser.
func (u *Updater) FetchAll(ctx context.Context, priority riotapi.Priority, evalCtx *models.EvaluationContext) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return u.FetchMastery(gctx, priority, evalCtx) })
	g.Go(func() error { return u.FetchRanks(gctx, priority, evalCtx) })
	g.Go(func() error { return u.FetchAccounts(gctx, priority, evalCtx) })
	return g.Wait()
}

func isNotFound(err error) bool {
	_, ok := err.(*riotapi.NotFoundError)
	return ok
}
