package discordsession

import (
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func restoreStubs(t *testing.T, newFn func(string) (*discordgo.Session, error), openFn func(*discordgo.Session) error, closeFn func(*discordgo.Session) error) {
	t.Helper()
	originalNew, originalOpen, originalClose := newSession, openSession, closeSession
	t.Cleanup(func() {
		newSession, openSession, closeSession = originalNew, originalOpen, originalClose
	})
	newSession, openSession, closeSession = newFn, openFn, closeFn
}

func TestNewEmptyToken(t *testing.T) {
	called := false
	restoreStubs(t, func(string) (*discordgo.Session, error) {
		called = true
		return nil, nil
	}, func(*discordgo.Session) error { return nil }, func(*discordgo.Session) error { return nil })

	if _, err := New("", 0, 1); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if called {
		t.Fatalf("newSession should not be called for empty token")
	}
}

func TestNewCreateError(t *testing.T) {
	restoreStubs(t, func(string) (*discordgo.Session, error) {
		return nil, errors.New("boom")
	}, func(*discordgo.Session) error { t.Fatalf("openSession should not run on create error"); return nil },
		func(*discordgo.Session) error { return nil })

	if _, err := New("token", 0, 1); err == nil || !strings.Contains(err.Error(), "create_session") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewConnectionErrorCloses(t *testing.T) {
	sess := &discordgo.Session{}
	closed := false
	restoreStubs(t, func(string) (*discordgo.Session, error) {
		return sess, nil
	}, func(*discordgo.Session) error { return errors.New("connect-fail") }, func(*discordgo.Session) error {
		closed = true
		return nil
	})

	if _, err := New("token", 0, 1); err == nil || !strings.Contains(err.Error(), "connect") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed {
		t.Fatalf("expected closeSession to be called on connect failure")
	}
}

func TestNewSuccessSetsShardFields(t *testing.T) {
	sess := &discordgo.Session{}
	restoreStubs(t, func(string) (*discordgo.Session, error) {
		return sess, nil
	}, func(*discordgo.Session) error { return nil }, func(*discordgo.Session) error {
		t.Fatalf("closeSession should not be called on success")
		return nil
	})

	got, err := New("token", 2, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sess {
		t.Fatalf("expected returned session pointer")
	}
	if got.ShardID != 2 || got.ShardCount != 4 {
		t.Fatalf("expected shard fields set, got ShardID=%d ShardCount=%d", got.ShardID, got.ShardCount)
	}
	if got.Identify.Intents&Intents == 0 {
		t.Fatalf("expected intents to be set on session")
	}
}
