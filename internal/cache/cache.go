// Package cache implements the per-guild JSON snapshot store of
// spec.md §4.1, backed by github.com/redis/go-redis/v9. Grounded on the
// original's dissonance/src/cache.rs read-modify-write shape; the Go
// port keeps the same "last-writer-wins, no torn JSON" contract
// described in spec.md §9 DESIGN NOTES. UpdateGuild's read-modify-write
// is not atomic: the ingest worker runs each event handler on its own
// goroutine, so concurrent updates to the same guild may race, and the
// last write wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shockwave-oss/shockwave/internal/logging"
)

// Guild is the trimmed snapshot stored at dissonance:guild:{id} — a
// chat-platform guild with members/presences/voice_states stripped
// (§3/§6).
type Guild struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Icon        string        `json:"icon,omitempty"`
	OwnerID     string        `json:"owner_id,omitempty"`
	Roles       []GuildRole   `json:"roles"`
	Channels    []GuildChannel `json:"channels"`
}

type GuildRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GuildChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

// Cache wraps one go-redis client. The client manages its own pool of
// connections; Cache takes no lock of its own around commands.
type Cache struct {
	rdb *redis.Client
}

func keyFor(guildID string) string {
	return fmt.Sprintf("dissonance:guild:%s", guildID)
}

// New builds a Cache from a redis:// URL.
func New(redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return &Cache{rdb: redis.NewClient(opt)}, nil
}

// UpsertGuild serializes guild and writes it with no TTL (§4.1).
func (c *Cache) UpsertGuild(ctx context.Context, guild Guild) error {
	data, err := json.Marshal(guild)
	if err != nil {
		return fmt.Errorf("cache: marshal guild %s: %w", guild.ID, err)
	}
	if err := c.rdb.Set(ctx, keyFor(guild.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("cache: upsert guild %s: %w", guild.ID, err)
	}
	return nil
}

// UpdateGuild reads the key, applies f in-memory, and writes it back.
// If the key is missing it logs a warning and returns nil without
// error, matching §4.1's contract exactly.
func (c *Cache) UpdateGuild(ctx context.Context, guildID string, f func(*Guild)) error {
	raw, err := c.rdb.Get(ctx, keyFor(guildID)).Bytes()
	if err == redis.Nil {
		logging.Warn(logging.Cache).Logf("update_guild: guild %s not cached, skipping", guildID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: read guild %s: %w", guildID, err)
	}

	var guild Guild
	if err := json.Unmarshal(raw, &guild); err != nil {
		return fmt.Errorf("cache: unmarshal guild %s: %w", guildID, err)
	}

	f(&guild)

	data, err := json.Marshal(guild)
	if err != nil {
		return fmt.Errorf("cache: marshal guild %s: %w", guildID, err)
	}
	if err := c.rdb.Set(ctx, keyFor(guildID), data, 0).Err(); err != nil {
		return fmt.Errorf("cache: write back guild %s: %w", guildID, err)
	}
	return nil
}

// DeleteGuild removes the cached guild key.
func (c *Cache) DeleteGuild(ctx context.Context, guildID string) error {
	if err := c.rdb.Del(ctx, keyFor(guildID)).Err(); err != nil {
		return fmt.Errorf("cache: delete guild %s: %w", guildID, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// --- Helpers mirroring §4.9's role/channel vector mutations ---

// UpsertRole appends role, replacing any existing entry with the same ID.
func (g *Guild) UpsertRole(role GuildRole) {
	for i, r := range g.Roles {
		if r.ID == role.ID {
			g.Roles[i] = role
			return
		}
	}
	g.Roles = append(g.Roles, role)
}

// RemoveRole retains every role except roleID.
func (g *Guild) RemoveRole(roleID string) {
	out := g.Roles[:0]
	for _, r := range g.Roles {
		if r.ID != roleID {
			out = append(out, r)
		}
	}
	g.Roles = out
}

// UpsertChannel appends channel, replacing any existing entry with the same ID.
func (g *Guild) UpsertChannel(ch GuildChannel) {
	for i, c := range g.Channels {
		if c.ID == ch.ID {
			g.Channels[i] = ch
			return
		}
	}
	g.Channels = append(g.Channels, ch)
}

// RemoveChannel retains every channel except channelID.
func (g *Guild) RemoveChannel(channelID string) {
	out := g.Channels[:0]
	for _, c := range g.Channels {
		if c.ID != channelID {
			out = append(out, c)
		}
	}
	g.Channels = out
}
