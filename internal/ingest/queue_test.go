package ingest

import (
	"testing"
	"time"
)

func TestUnboundedQueueFIFO(t *testing.T) {
	q := newUnboundedQueue()
	q.PushBack(BackfillEntry{ShardID: 0, GuildID: "a"})
	q.PushBack(BackfillEntry{ShardID: 0, GuildID: "b"})

	first, ok := q.PopFront()
	if !ok || first.GuildID != "a" {
		t.Fatalf("expected a first, got %+v ok=%v", first, ok)
	}
	second, ok := q.PopFront()
	if !ok || second.GuildID != "b" {
		t.Fatalf("expected b second, got %+v ok=%v", second, ok)
	}
}

func TestUnboundedQueueBlocksUntilPush(t *testing.T) {
	q := newUnboundedQueue()
	done := make(chan BackfillEntry, 1)
	go func() {
		e, ok := q.PopFront()
		if ok {
			done <- e
		}
	}()

	select {
	case <-done:
		t.Fatalf("PopFront returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	q.PushBack(BackfillEntry{ShardID: 1, GuildID: "x"})
	select {
	case e := <-done:
		if e.GuildID != "x" {
			t.Fatalf("unexpected entry: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("PopFront did not unblock after push")
	}
}

func TestUnboundedQueueCloseUnblocks(t *testing.T) {
	q := newUnboundedQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.PopFront()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected PopFront to return ok=false after close")
		}
	case <-time.After(time.Second):
		t.Fatalf("PopFront did not unblock after close")
	}
}
