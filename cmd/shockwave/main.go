// Command shockwave runs the updater core: the three background
// sweep loops (mastery, ranks, accounts) plus the HTTP façade for
// on-demand evaluate/update requests. Grounded on the teacher's
// cmd/alice-bnuy main.go bootstrap shape, adapted to this domain's
// collaborators.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shockwave-oss/shockwave/internal/config"
	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/discordsession"
	"github.com/shockwave-oss/shockwave/internal/frontend"
	"github.com/shockwave-oss/shockwave/internal/httpapi"
	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/internal/riotapi"
	"github.com/shockwave-oss/shockwave/internal/sweep"
	"github.com/shockwave-oss/shockwave/internal/updater"
	"github.com/shockwave-oss/shockwave/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("shockwave: %v", err)
	}

	if err := logging.Setup("shockwave", "./logs"); err != nil {
		log.Fatalf("shockwave: logging setup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, 20)
	if err != nil {
		logging.Error(logging.Database).Fatalf("connect: %v", err)
	}
	defer db.Close()

	discord, err := discordsession.New(cfg.DiscordToken, 0, 1)
	if err != nil {
		logging.Error(logging.Discord).Fatalf("connect: %v", err)
	}
	defer discord.Close()

	riot := riotapi.New(cfg.RiotLoLAPIKey, cfg.RiotTFTAPIKey)

	notifier := frontend.New(cfg.OriannaWebAddress, cfg.OriannaWebToken)
	u := updater.New(db, riot, discord, notifier)

	for _, sweepCfg := range []sweep.Config{sweep.MasteryConfig, sweep.RanksConfig, sweep.AccountsConfig} {
		runner := sweep.New(sweepCfg, db, u)
		go runner.Run(ctx)
	}

	server := httpapi.New(db, u)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := server.Start(addr); err != nil {
			logging.Warn(logging.HTTP).Logf("http façade stopped: %v", err)
		}
	}()

	logging.Info(logging.Updater).Logf("shockwave running, http façade on port %d", cfg.Port)
	util.WaitForInterrupt()
	cancel()
}
