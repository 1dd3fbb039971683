// Package sweep implements the three updater-side background sweep
// loops of spec.md §4.10: periodic, wraparound-offset batch passes
// over all known users, fanning each batch out to a bounded-concurrency
// worker pool running FetchMastery/FetchRanks/FetchAccounts. Grounded
// on original_source/shockwave/shockwave_core/src/sweep/mod.rs and on
// the teacher's errgroup-based fan-out idiom used throughout
// internal/updater.
package sweep

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/internal/models"
	"github.com/shockwave-oss/shockwave/internal/riotapi"
	"github.com/shockwave-oss/shockwave/internal/updater"
)

// Config bounds one sweep loop's batch size and fan-out concurrency.
type Config struct {
	Name        string
	BatchSize   int
	Concurrency int
	Priority    riotapi.Priority
	Fetch       func(ctx context.Context, u *updater.Updater, priority riotapi.Priority, evalCtx *models.EvaluationContext) error
}

// fetchThenUpdate runs fetch, then always runs UpdateUser on the same
// id regardless of whether fetch succeeded (§4.10: "fetch_X(...) then
// update_user(ctx.user.id)"), combining both errors if both fail.
func fetchThenUpdate(fetch func(context.Context, *updater.Updater, riotapi.Priority, *models.EvaluationContext) error) func(context.Context, *updater.Updater, riotapi.Priority, *models.EvaluationContext) error {
	return func(ctx context.Context, u *updater.Updater, p riotapi.Priority, evalCtx *models.EvaluationContext) error {
		fetchErr := fetch(ctx, u, p, evalCtx)
		updateErr := u.UpdateUser(ctx, evalCtx.User.ID)
		return errors.Join(fetchErr, updateErr)
	}
}

// MasteryConfig sweeps champion mastery at high concurrency: the
// highest-cardinality, highest-churn dataset (§4.10).
var MasteryConfig = Config{
	Name: "mastery", BatchSize: 100, Concurrency: 200, Priority: riotapi.PriorityUpdater,
	Fetch: fetchThenUpdate(func(ctx context.Context, u *updater.Updater, p riotapi.Priority, evalCtx *models.EvaluationContext) error {
		return u.FetchMastery(ctx, p, evalCtx)
	}),
}

// RanksConfig sweeps ranked tiers.
var RanksConfig = Config{
	Name: "ranks", BatchSize: 100, Concurrency: 15, Priority: riotapi.PriorityUpdater,
	Fetch: fetchThenUpdate(func(ctx context.Context, u *updater.Updater, p riotapi.Priority, evalCtx *models.EvaluationContext) error {
		return u.FetchRanks(ctx, p, evalCtx)
	}),
}

// AccountsConfig sweeps Riot ID / summoner identity refresh.
var AccountsConfig = Config{
	Name: "accounts", BatchSize: 100, Concurrency: 15, Priority: riotapi.PriorityUpdater,
	Fetch: fetchThenUpdate(func(ctx context.Context, u *updater.Updater, p riotapi.Priority, evalCtx *models.EvaluationContext) error {
		return u.FetchAccounts(ctx, p, evalCtx)
	}),
}

// Runner drives one sweep loop to completion-then-wraparound over the
// user id space, retrying on database errors and logging throughput
// every 10 seconds.
type Runner struct {
	cfg Config
	db  *database.DB
	u   *updater.Updater

	processedSinceLog int64
}

// New builds a Runner for cfg. cfg.Fetch selects which Updater method
// this loop calls per user (FetchMastery, FetchRanks, or FetchAccounts);
// each user's EvaluationContext is loaded at the batch level via
// GetBatchEvaluationContext, not per user here.
func New(cfg Config, db *database.DB, u *updater.Updater) *Runner {
	return &Runner{cfg: cfg, db: db, u: u}
}

// Run loops batches forever until ctx is cancelled: fetch a page of ids
// via FindUsers, wrap the offset around to 0 at end of table, and fan
// each batch out to cfg.Concurrency workers calling cfg.Fetch.
func (r *Runner) Run(ctx context.Context) {
	go r.metricsLoop(ctx)

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ids, err := r.db.FindUsers(ctx, r.cfg.BatchSize, offset)
		if err != nil {
			logging.Error(logging.Updater).Logf("sweep[%s]: find_users failed, retrying in 1s: %v", r.cfg.Name, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if len(ids) == 0 {
			offset = 0
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		offset = nextOffset(offset, len(ids), r.cfg.BatchSize)

		r.processBatch(ctx, ids)
	}
}

func (r *Runner) processBatch(ctx context.Context, ids []int64) {
	contexts, err := r.db.GetBatchEvaluationContext(ctx, ids)
	if err != nil {
		logging.Error(logging.Updater).Logf("sweep[%s]: get_batch_evaluation_context failed: %v", r.cfg.Name, err)
		return
	}

	sem := make(chan struct{}, r.cfg.Concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, evalCtx := range contexts {
		evalCtx := evalCtx
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			if err := r.cfg.Fetch(gctx, r.u, r.cfg.Priority, evalCtx); err != nil {
				logging.Warn(logging.Updater).Logf("sweep[%s]: fetch user=%d: %v", r.cfg.Name, evalCtx.User.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Error(logging.Updater).Logf("sweep[%s]: batch fan-out error: %v", r.cfg.Name, err)
	}
	r.processedSinceLog += int64(len(contexts))
}

// nextOffset advances the find_users paging offset by the number of
// rows actually returned, wrapping back to 0 once a short page (fewer
// rows than requested) signals the end of the table (§4.10).
func nextOffset(offset, returned, batchSize int) int {
	if returned < batchSize {
		return 0
	}
	return offset + returned
}

func (r *Runner) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := r.processedSinceLog
			r.processedSinceLog = 0
			logging.Info(logging.Updater).Logf("sweep[%s]: %d users/10s", r.cfg.Name, n)
		}
	}
}
