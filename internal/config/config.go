// Package config loads the environment variables named in SPEC_FULL.md
// §1/§6, using the same $HOME/.local/bin/.env fallback + typed-env-var
// helpers the teacher's pkg/util/env.go provides.
package config

import (
	"fmt"

	"github.com/shockwave-oss/shockwave/pkg/util"
)

// Config holds every environment-derived setting shared by dissonance
// and shockwave. Binaries that don't need a field (e.g. dissonance has
// no PORT) simply leave it unused.
type Config struct {
	DatabaseURL string
	RedisURL    string
	AMQPURL     string

	DiscordToken string

	RiotLoLAPIKey string
	RiotTFTAPIKey string

	OriannaWebAddress string
	OriannaWebToken   string

	Port       int64
	ShardCount int64
	BuildRef   string
}

// Load resolves every required variable, falling back to
// $HOME/.local/bin/.env for any that are missing from the process
// environment (without overwriting ones already set). DISCORD_TOKEN is
// read through util.LoadEnvWithLocalBinFallback, which performs that
// fallback load and returns an error when the token is still unset;
// the remaining variables are read afterwards and validated below.
func Load() (*Config, error) {
	token, err := util.LoadEnvWithLocalBinFallback("DISCORD_TOKEN")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		DatabaseURL:       util.EnvString("DATABASE_URL", ""),
		RedisURL:          util.EnvString("REDIS_URL", ""),
		AMQPURL:           util.EnvString("AMQP_URL", ""),
		DiscordToken:      token,
		RiotLoLAPIKey:     util.EnvString("RIOT_LOL_API_KEY", ""),
		RiotTFTAPIKey:     util.EnvString("RIOT_TFT_API_KEY", ""),
		OriannaWebAddress: util.EnvString("ORIANNA_WEB_ADDRESS", ""),
		OriannaWebToken:   util.EnvString("ORIANNA_WEB_TOKEN", ""),
		Port:              util.EnvInt64("PORT", 8080),
		ShardCount:        util.EnvInt64("SHARD_COUNT", 1),
		BuildRef:          util.EnvString("BUILD_REF", "dev"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if !util.HasAnyPrefix(cfg.DatabaseURL, "postgres://", "postgresql://") {
		return nil, fmt.Errorf("config: DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("config: REDIS_URL is required")
	}
	if !util.HasAnyPrefix(cfg.RedisURL, "redis://", "rediss://") {
		return nil, fmt.Errorf("config: REDIS_URL must be a redis:// or rediss:// URL")
	}
	if cfg.AMQPURL == "" {
		return nil, fmt.Errorf("config: AMQP_URL is required")
	}
	if !util.HasAnyPrefix(cfg.AMQPURL, "amqp://", "amqps://") {
		return nil, fmt.Errorf("config: AMQP_URL must be an amqp:// or amqps:// URL")
	}
	if cfg.RiotLoLAPIKey == "" || cfg.RiotTFTAPIKey == "" {
		return nil, fmt.Errorf("config: RIOT_LOL_API_KEY and RIOT_TFT_API_KEY are required")
	}

	return cfg, nil
}

// FrontendConfigured reports whether outbound frontend notifications
// (internal/frontend) should be attempted at all.
func (c *Config) FrontendConfigured() bool {
	return c.OriannaWebAddress != "" && c.OriannaWebToken != ""
}
