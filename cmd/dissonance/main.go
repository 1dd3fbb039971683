// Command dissonance runs the gateway ingest worker: one sharded
// discordgo session per shard, mirroring guild/role/channel/member
// state into Postgres and Redis, forwarding allow-listed raw events to
// AMQP, and draining the member-backfill queue. Grounded on the
// teacher's cmd/alice-bnuy main.go bootstrap shape (load env, build
// logger, open session, wait for interrupt).
package main

import (
	"context"
	"log"
	"os"

	"github.com/shockwave-oss/shockwave/internal/cache"
	"github.com/shockwave-oss/shockwave/internal/config"
	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/ingest"
	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("dissonance: %v", err)
	}

	if err := logging.Setup("dissonance", "./logs"); err != nil {
		log.Fatalf("dissonance: logging setup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, 10)
	if err != nil {
		logging.Error(logging.Database).Fatalf("connect: %v", err)
	}
	defer db.Close()

	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logging.Error(logging.Cache).Fatalf("connect: %v", err)
	}
	defer redisCache.Close()

	worker, err := ingest.New(cfg.DiscordToken, int(cfg.ShardCount), db, redisCache, cfg.AMQPURL, cfg.BuildRef)
	if err != nil {
		logging.Error(logging.Ingest).Fatalf("start: %v", err)
	}

	go worker.Run(ctx)

	logging.Info(logging.Ingest).Logf("dissonance running with %d shard(s), pid=%d", cfg.ShardCount, os.Getpid())
	util.WaitForInterrupt()
	cancel()
}
