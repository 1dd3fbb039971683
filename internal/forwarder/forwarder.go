// Package forwarder implements the AMQP event forwarder of spec.md
// §4.3: a topic-exchange publisher with an event-type allow-list, raw-
// bytes magic-token introspection, and an unbounded retry queue
// consumed by a single writer goroutine that reconnects with
// exponential backoff on failure. Grounded on
// original_source/dissonada/src/forwarder.rs (actually
// dissonance/src/forwarder.rs) and on github.com/rabbitmq/amqp091-go,
// the maintained successor of the frozen streadway/amqp (see
// DESIGN.md).
package forwarder

import (
	"bytes"
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shockwave-oss/shockwave/internal/logging"
)

const (
	exchangeName = "dissonance"
	queueName    = "dissonance.events"
	magicToken   = "magic_incantation_for_refreshing_guild_members_"

	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 60 * time.Second
)

// allowList is the set of event types forwarded to AMQP (§4.3).
var allowList = map[string]bool{
	"GUILD_MEMBER_ADD":      true,
	"MESSAGE_CREATE":        true,
	"MESSAGE_UPDATE":        true,
	"MESSAGE_DELETE":        true,
	"MESSAGE_REACTION_ADD":  true,
	"INTERACTION_CREATE":    true,
}

// BackfillRequest is what a magic-token hit enqueues: a member refresh
// for (shard, guild) — consumed by internal/ingest's backfill loop.
type BackfillRequest struct {
	ShardID int
	GuildID string
}

type pendingMessage struct {
	routingKey string
	body       []byte
}

// Forwarder owns the unbounded publish queue and the single writer
// goroutine that drains it (§4.3/§5). Message ordering per shard isn't
// guaranteed beyond the order enqueued on this process.
type Forwarder struct {
	amqpURL string

	mu    sync.Mutex
	queue *list.List
	cond  *sync.Cond

	backfill chan<- BackfillRequest

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a Forwarder publishing to amqpURL. backfill receives
// magic-token-triggered member refresh requests; the ingest worker
// owns the channel and its consumer.
func New(amqpURL string, backfill chan<- BackfillRequest) *Forwarder {
	f := &Forwarder{
		amqpURL:  amqpURL,
		queue:    list.New(),
		backfill: backfill,
		done:     make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Run starts the single-writer publish loop; blocks until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	go f.writerLoop(ctx)
	<-ctx.Done()
	f.closeOnce.Do(func() {
		close(f.done)
		f.cond.Broadcast()
	})
}

// TryForward implements §4.3's try_forward(shard_id, raw_payload):
// lightweight event-type extraction, magic-token scan, and allow-list
// gated enqueue.
func (f *Forwarder) TryForward(shardID int, raw []byte) {
	eventType, ok := extractEventType(raw)
	if !ok {
		return
	}

	if eventType == "MESSAGE_CREATE" {
		if guildID, found := scanMagicToken(raw); found {
			select {
			case f.backfill <- BackfillRequest{ShardID: shardID, GuildID: guildID}:
			default:
				logging.Warn(logging.Forwarder).Logf("backfill channel full, dropping magic-token refresh for guild %s", guildID)
			}
		}
	}

	if !allowList[eventType] {
		return
	}

	f.enqueue(pendingMessage{routingKey: eventType, body: raw})
}

func (f *Forwarder) enqueue(msg pendingMessage) {
	f.mu.Lock()
	f.queue.PushBack(msg)
	f.mu.Unlock()
	f.cond.Signal()
}

func (f *Forwarder) dequeue() (pendingMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.queue.Len() == 0 {
		select {
		case <-f.done:
			return pendingMessage{}, false
		default:
		}
		f.cond.Wait()
	}
	front := f.queue.Front()
	f.queue.Remove(front)
	return front.Value.(pendingMessage), true
}

// writerLoop is the single consumer task of §4.3/§5: it owns the AMQP
// connection/channel, retries the same message on failure with
// exponential backoff, and never drops a message on transport failure.
func (f *Forwarder) writerLoop(ctx context.Context) {
	var conn *amqp.Connection
	var ch *amqp.Channel
	backoff := initialBackoff

	connect := func() error {
		var err error
		conn, err = amqp.Dial(f.amqpURL)
		if err != nil {
			return err
		}
		ch, err = conn.Channel()
		if err != nil {
			return err
		}
		return ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil)
	}

	for {
		select {
		case <-ctx.Done():
			if ch != nil {
				_ = ch.Close()
			}
			if conn != nil {
				_ = conn.Close()
			}
			return
		default:
		}

		if ch == nil || ch.IsClosed() {
			if err := connect(); err != nil {
				logging.Error(logging.Forwarder).Logf("amqp connect failed: %v, retrying in %s", err, backoff)
				time.Sleep(backoff)
				backoff = nextBackoff(backoff)
				continue
			}
			backoff = initialBackoff
		}

		msg, ok := f.dequeue()
		if !ok {
			return
		}

		if err := ch.PublishWithContext(ctx, exchangeName, msg.routingKey, false, false, amqp.Publishing{
			ContentType: "application/octet-stream",
			Body:        msg.body,
		}); err != nil {
			logging.Error(logging.Forwarder).Logf("amqp publish failed: %v, retrying", err)
			f.requeueFront(msg)
			_ = ch.Close()
			ch = nil
			time.Sleep(backoff)
			backoff = nextBackoff(backoff)
		}
	}
}

func (f *Forwarder) requeueFront(msg pendingMessage) {
	f.mu.Lock()
	f.queue.PushFront(msg)
	f.mu.Unlock()
	f.cond.Signal()
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// extractEventType does a minimal scan for `"t":"EVENT_NAME"` without a
// full JSON parse (§4.3 step 1: "lightly parse only enough").
func extractEventType(raw []byte) (string, bool) {
	const key = `"t":"`
	idx := bytes.Index(raw, []byte(key))
	if idx < 0 {
		return "", false
	}
	start := idx + len(key)
	end := bytes.IndexByte(raw[start:], '"')
	if end < 0 {
		return "", false
	}
	return string(raw[start : start+end]), true
}

// scanMagicToken substring-searches raw for the magic token and parses
// the contiguous ASCII-digit run immediately after it as a guild id
// (§4.3 step 2). Intentionally a raw-bytes scan, not a JSON parse.
func scanMagicToken(raw []byte) (guildID string, found bool) {
	idx := bytes.Index(raw, []byte(magicToken))
	if idx < 0 {
		return "", false
	}
	start := idx + len(magicToken)
	end := start
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == start {
		return "", false
	}
	digits := string(raw[start:end])
	if _, err := strconv.ParseUint(digits, 10, 64); err != nil {
		return "", false
	}
	return digits, true
}
