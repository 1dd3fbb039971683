// Package ingest implements the gateway-ingest worker of spec.md §4.9:
// per-shard discordgo sessions dispatching to the Cache/Database/
// Forwarder mirror, a rate-limited member-backfill loop, and a
// presence-rotation loop. Grounded on
// original_source/dissonance/src/worker.rs and main.rs.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/shockwave-oss/shockwave/internal/cache"
	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/discordsession"
	"github.com/shockwave-oss/shockwave/internal/forwarder"
	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/internal/models"
)

const (
	backfillTick    = 50 * time.Millisecond
	backfillTimeout = 500 * time.Millisecond
	presenceTick    = 10 * time.Minute
)

// presenceStep is one entry in the fixed ordered presence rotation (§4.9).
type presenceStep struct {
	activity discordgo.ActivityType
	message  string
}

var presenceRotation = []presenceStep{
	{discordgo.ActivityTypeGame, "tracking ranked climbs"},
	{discordgo.ActivityTypeWatching, "the Rift"},
	{discordgo.ActivityTypeGame, "champion mastery grind"},
}

const presenceColumnWidth = 40

// Worker is the shared-ownership ingest worker handle referenced by
// every spawned event handler (§9 DESIGN NOTES): no exposed mutable
// state beyond concurrent-safe primitives.
type Worker struct {
	sessions  []*discordgo.Session
	db        *database.DB
	cache     *cache.Cache
	forwarder *forwarder.Forwarder

	backfillQueue    *unboundedQueue
	outstanding      sync.Map // guildID (string) -> startedAt (time.Time)
	outstandingCount atomic.Int64

	buildRef string
}

// New opens one discordgo session per shard (shardCount total) and
// wires the Cache/Database/Forwarder collaborators.
func New(token string, shardCount int, db *database.DB, c *cache.Cache, amqpURL, buildRef string) (*Worker, error) {
	w := &Worker{
		db:            db,
		cache:         c,
		backfillQueue: newUnboundedQueue(),
		buildRef:      buildRef,
	}
	w.forwarder = forwarder.New(amqpURL, w.backfillChannel())

	for shardID := 0; shardID < shardCount; shardID++ {
		s, err := discordsession.New(token, shardID, shardCount)
		if err != nil {
			return nil, fmt.Errorf("ingest: open shard %d: %w", shardID, err)
		}
		w.registerHandlers(s, shardID)
		w.sessions = append(w.sessions, s)
	}

	return w, nil
}

// backfillChannel adapts the forwarder's BackfillRequest channel
// contract onto this worker's unbounded queue: the forwarder enqueues
// magic-token hits through a buffered channel, this goroutine drains it
// into the real unbounded queue.
func (w *Worker) backfillChannel() chan<- forwarder.BackfillRequest {
	ch := make(chan forwarder.BackfillRequest, 64)
	go func() {
		for req := range ch {
			w.enqueueBackfill(req.ShardID, req.GuildID)
		}
	}()
	return ch
}

func (w *Worker) enqueueBackfill(shardID int, guildID string) {
	w.backfillQueue.PushBack(BackfillEntry{ShardID: shardID, GuildID: guildID})
	w.outstandingCount.Add(1)
}

// Run starts the forwarder writer, the backfill loop, and the presence
// loop; blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); w.forwarder.Run(ctx) }()
	go func() { defer wg.Done(); w.backfillLoop(ctx) }()
	go func() { defer wg.Done(); w.presenceLoop(ctx) }()

	<-ctx.Done()
	w.backfillQueue.Close()
	for _, s := range w.sessions {
		_ = s.Close()
	}
	wg.Wait()
}

func (w *Worker) registerHandlers(s *discordgo.Session, shardID int) {
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.Event) {
		w.forwarder.TryForward(shardID, e.RawData)
	})
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logging.Info(logging.Ingest).Logf("shard %d ready, %d guilds", shardID, len(r.Guilds))
	})
	s.AddHandler(func(ds *discordgo.Session, g *discordgo.GuildCreate) {
		go w.handleGuildCreate(context.Background(), ds, shardID, g)
	})
	s.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildUpdate) {
		go w.handleGuildUpdate(context.Background(), g)
	})
	s.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildDelete) {
		go w.handleGuildDelete(context.Background(), g)
	})
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
		go w.handleRoleUpsert(context.Background(), r.GuildID, r.Role)
	})
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleUpdate) {
		go w.handleRoleUpsert(context.Background(), r.GuildID, r.Role)
	})
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
		go w.handleRoleDelete(context.Background(), r.GuildID, r.RoleID)
	})
	s.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelCreate) {
		go w.handleChannelUpsert(context.Background(), c.Channel)
	})
	s.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelUpdate) {
		go w.handleChannelUpsert(context.Background(), c.Channel)
	})
	s.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelDelete) {
		go w.handleChannelDelete(context.Background(), c.Channel)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		go w.handleMemberUpsert(context.Background(), m.GuildID, m.Member)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
		go w.handleMemberUpsert(context.Background(), m.GuildID, m.Member)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
		go w.handleMemberRemove(context.Background(), m.GuildID, m.User.ID)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMembersChunk) {
		go w.handleMemberChunk(context.Background(), m)
	})
}

func toGuildMember(guildID string, m *discordgo.Member) models.GuildMember {
	roles := append([]string(nil), m.Roles...)
	var nick *string
	if m.Nick != "" {
		nick = &m.Nick
	}
	return models.GuildMember{GuildID: guildID, UserID: m.User.ID, Nickname: nick, Roles: roles}
}

func toCacheGuild(g *discordgo.Guild) cache.Guild {
	cg := cache.Guild{ID: g.ID, Name: g.Name, Icon: g.Icon, OwnerID: g.OwnerID}
	for _, r := range g.Roles {
		cg.Roles = append(cg.Roles, cache.GuildRole{ID: r.ID, Name: r.Name})
	}
	for _, c := range g.Channels {
		cg.Channels = append(cg.Channels, cache.GuildChannel{ID: c.ID, Name: c.Name, Type: int(c.Type)})
	}
	return cg
}

func (w *Worker) handleGuildCreate(ctx context.Context, s *discordgo.Session, shardID int, g *discordgo.GuildCreate) {
	if err := w.cache.UpsertGuild(ctx, toCacheGuild(g.Guild)); err != nil {
		logging.Error(logging.Ingest).Logf("guild_create cache upsert %s: %v", g.ID, err)
	}

	if len(g.Members) >= g.MemberCount {
		if err := w.db.ResetGuild(ctx, g.ID); err != nil {
			logging.Error(logging.Ingest).Logf("guild_create reset_guild %s: %v", g.ID, err)
			return
		}
		members := make([]models.GuildMember, len(g.Members))
		for i, m := range g.Members {
			members[i] = toGuildMember(g.ID, m)
		}
		if err := w.db.UpsertBatchMembers(ctx, g.ID, members); err != nil {
			logging.Error(logging.Ingest).Logf("guild_create upsert_batch_members %s: %v", g.ID, err)
		}
		return
	}

	if err := w.db.ResetGuild(ctx, g.ID); err != nil {
		logging.Error(logging.Ingest).Logf("guild_create reset_guild %s: %v", g.ID, err)
		return
	}
	w.outstanding.Store(g.ID, time.Now())
	w.enqueueBackfill(shardID, g.ID)
}

func (w *Worker) handleGuildUpdate(ctx context.Context, g *discordgo.GuildUpdate) {
	err := w.cache.UpdateGuild(ctx, g.ID, func(cg *cache.Guild) {
		cg.Name = g.Name
		cg.Icon = g.Icon
		cg.OwnerID = g.OwnerID
	})
	if err != nil {
		logging.Error(logging.Ingest).Logf("guild_update %s: %v", g.ID, err)
	}
}

func (w *Worker) handleGuildDelete(ctx context.Context, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	if err := w.cache.DeleteGuild(ctx, g.ID); err != nil {
		logging.Error(logging.Ingest).Logf("guild_delete cache %s: %v", g.ID, err)
	}
	if err := w.db.ResetGuild(ctx, g.ID); err != nil {
		logging.Error(logging.Ingest).Logf("guild_delete reset_guild %s: %v", g.ID, err)
	}
}

func (w *Worker) handleRoleUpsert(ctx context.Context, guildID string, role *discordgo.Role) {
	err := w.cache.UpdateGuild(ctx, guildID, func(cg *cache.Guild) {
		cg.UpsertRole(cache.GuildRole{ID: role.ID, Name: role.Name})
	})
	if err != nil {
		logging.Error(logging.Ingest).Logf("role upsert guild=%s role=%s: %v", guildID, role.ID, err)
	}
}

func (w *Worker) handleRoleDelete(ctx context.Context, guildID, roleID string) {
	err := w.cache.UpdateGuild(ctx, guildID, func(cg *cache.Guild) {
		cg.RemoveRole(roleID)
	})
	if err != nil {
		logging.Error(logging.Ingest).Logf("role delete guild=%s role=%s: %v", guildID, roleID, err)
	}
}

func (w *Worker) handleChannelUpsert(ctx context.Context, ch *discordgo.Channel) {
	if ch.GuildID == "" {
		return
	}
	err := w.cache.UpdateGuild(ctx, ch.GuildID, func(cg *cache.Guild) {
		cg.UpsertChannel(cache.GuildChannel{ID: ch.ID, Name: ch.Name, Type: int(ch.Type)})
	})
	if err != nil {
		logging.Error(logging.Ingest).Logf("channel upsert guild=%s channel=%s: %v", ch.GuildID, ch.ID, err)
	}
}

func (w *Worker) handleChannelDelete(ctx context.Context, ch *discordgo.Channel) {
	if ch.GuildID == "" {
		return
	}
	err := w.cache.UpdateGuild(ctx, ch.GuildID, func(cg *cache.Guild) {
		cg.RemoveChannel(ch.ID)
	})
	if err != nil {
		logging.Error(logging.Ingest).Logf("channel delete guild=%s channel=%s: %v", ch.GuildID, ch.ID, err)
	}
}

func (w *Worker) handleMemberUpsert(ctx context.Context, guildID string, m *discordgo.Member) {
	if err := w.db.UpsertMember(ctx, guildID, toGuildMember(guildID, m)); err != nil {
		logging.Error(logging.Ingest).Logf("member upsert guild=%s user=%s: %v", guildID, m.User.ID, err)
	}
}

func (w *Worker) handleMemberRemove(ctx context.Context, guildID, userID string) {
	if err := w.db.RemoveMember(ctx, guildID, userID); err != nil {
		logging.Error(logging.Ingest).Logf("member remove guild=%s user=%s: %v", guildID, userID, err)
	}
}

func (w *Worker) handleMemberChunk(ctx context.Context, chunk *discordgo.GuildMembersChunk) {
	members := make([]models.GuildMember, len(chunk.Members))
	for i, m := range chunk.Members {
		members[i] = toGuildMember(chunk.GuildID, m)
	}
	if err := w.db.UpsertBatchMembers(ctx, chunk.GuildID, members); err != nil {
		logging.Error(logging.Ingest).Logf("member_chunk upsert guild=%s: %v", chunk.GuildID, err)
		return
	}
	if chunk.ChunkIndex == chunk.ChunkCount-1 {
		w.outstanding.Delete(chunk.GuildID)
		w.outstandingCount.Add(-1)
	}
}

// backfillLoop drains the backfill queue at a steady 50ms cadence
// (§4.9/§5): this is the system-wide rate limiter for
// REQUEST_GUILD_MEMBERS. Missed-tick behavior is "delay", not "burst".
func (w *Worker) backfillLoop(ctx context.Context) {
	ticker := time.NewTicker(backfillTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		entry, ok := w.backfillQueue.PopFront()
		if !ok {
			return
		}
		w.processBackfillEntry(ctx, entry)
	}
}

func (w *Worker) processBackfillEntry(ctx context.Context, entry BackfillEntry) {
	if entry.ShardID < 0 || entry.ShardID >= len(w.sessions) {
		w.backfillQueue.PushBack(entry)
		return
	}
	session := w.sessions[entry.ShardID]

	done := make(chan error, 1)
	go func() {
		done <- session.RequestGuildMembers(entry.GuildID, "", 0, "", false)
	}()

	select {
	case err := <-done:
		if err != nil {
			logging.Warn(logging.Ingest).Logf("backfill request guild=%s failed, re-enqueuing: %v", entry.GuildID, err)
			w.backfillQueue.PushBack(entry)
			return
		}
		w.outstandingCount.Add(-1)
		if err := w.db.ResetGuild(ctx, entry.GuildID); err != nil {
			logging.Error(logging.Ingest).Logf("backfill reset_guild guild=%s: %v", entry.GuildID, err)
		}
		w.outstanding.Store(entry.GuildID, time.Now())
	case <-time.After(backfillTimeout):
		logging.Warn(logging.Ingest).Logf("backfill request guild=%s timed out, re-enqueuing", entry.GuildID)
		w.backfillQueue.PushBack(entry)
	}
}

// presenceLoop cycles through presenceRotation every 10 minutes,
// padding each message to a fixed column width with the build
// reference appended (§4.9).
func (w *Worker) presenceLoop(ctx context.Context) {
	ticker := time.NewTicker(presenceTick)
	defer ticker.Stop()

	idx := 0
	for {
		step := presenceRotation[idx%len(presenceRotation)]
		idx++

		message := fmt.Sprintf("%-*s %s", presenceColumnWidth, step.message, w.buildRef)
		for _, s := range w.sessions {
			err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
				Activities: []*discordgo.Activity{{Name: message, Type: step.activity}},
			})
			if err != nil {
				logging.Warn(logging.Ingest).Logf("presence update failed: %v", err)
			}
		}
		logging.Info(logging.Ingest).Logf("backfill queue depth=%d outstanding=%d", w.backfillQueue.Len(), w.outstandingCount.Load())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
