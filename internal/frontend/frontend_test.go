package frontend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPromoteNoOpWhenUnconfigured(t *testing.T) {
	n := New("", "")
	if err := n.Promote(context.Background(), 1, 2); err != nil {
		t.Fatalf("expected no-op to succeed, got %v", err)
	}
}

func TestPromoteSendsExpectedPayload(t *testing.T) {
	var gotPath string
	var gotAuth string
	var payload map[string]int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, "tok123")
	if err := n.Promote(context.Background(), 42, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/v1/shockwave/promote" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if payload["user_id"] != 42 || payload["role_id"] != 7 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTransferErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, "tok")
	if err := n.Transfer(context.Background(), 1, "NA", "user"); err == nil {
		t.Fatalf("expected error on 5xx response")
	}
}
