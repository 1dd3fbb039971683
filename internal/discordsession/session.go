// Package discordsession creates the discordgo.Session used by both
// binaries: dissonance opens it per shard for gateway ingest, shockwave
// opens a single unsharded session purely for REST calls (role add/
// remove, nickname update). Adapted from the teacher's
// pkg/discord/session/session.go — same create/open error-wrapping
// shape and the same function-variable stubbing for tests, with the
// errutil dependency replaced by internal/apperr and intents narrowed
// to what this domain's ingest worker actually needs.
package discordsession

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/shockwave-oss/shockwave/internal/apperr"
	"github.com/shockwave-oss/shockwave/internal/logging"
)

// Indirections over discordgo's package functions/methods so tests can
// stub session creation/connection failure paths without a live token.
var (
	newSession   = discordgo.New
	openSession  = (*discordgo.Session).Open
	closeSession = (*discordgo.Session).Close
)

// Intents requests guild/member/presence state, the minimum the ingest
// worker's mirror (§4.9) needs; no message-content or auto-moderation
// intents, since this domain never reads message bodies beyond the
// magic-token raw-byte scan in internal/forwarder, which doesn't
// require the privileged message-content intent.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildPresences

// New creates and opens a Discord session for token, shard shardID of
// shardCount total shards. Pass shardCount=1 for an unsharded REST-only
// session (shockwave's updater core).
func New(token string, shardID, shardCount int) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discordsession: bot token is empty")
	}

	s, err := newSession("Bot " + token)
	if err != nil {
		return nil, apperr.Wrap("discordsession", "create_session", err)
	}

	s.Identify.Intents = Intents
	if shardCount > 1 {
		s.ShardID = shardID
		s.ShardCount = shardCount
	}

	logging.Info(logging.Discord).Logf("connecting to discord (shard %d/%d)", shardID, shardCount)
	if err := openSession(s); err != nil {
		_ = closeSession(s)
		return nil, apperr.Wrap("discordsession", "connect", err)
	}
	logging.Info(logging.Discord).Logf("connected to discord (shard %d/%d)", shardID, shardCount)

	return s, nil
}
