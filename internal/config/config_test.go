package config

import "testing"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("AMQP_URL", "amqp://localhost")
	t.Setenv("RIOT_LOL_API_KEY", "lol-key")
	t.Setenv("RIOT_TFT_API_KEY", "tft-key")
}

func TestLoadSucceedsWithAllRequiredVars(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/db" {
		t.Fatalf("unexpected DatabaseURL: %q", cfg.DatabaseURL)
	}
	if cfg.FrontendConfigured() {
		t.Fatalf("expected frontend to be unconfigured without ORIANNA_WEB_* vars")
	}
}

func TestLoadRejectsNonPostgresDatabaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "mysql://localhost/db")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-postgres DATABASE_URL")
	}
}

func TestLoadRejectsNonRedisURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REDIS_URL", "memcached://localhost")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-redis REDIS_URL")
	}
}

func TestFrontendConfiguredRequiresBothFields(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ORIANNA_WEB_ADDRESS", "https://example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FrontendConfigured() {
		t.Fatalf("expected unconfigured with only address set")
	}
}
