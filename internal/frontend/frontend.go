// Package frontend implements the outbound notification interface of
// spec.md §6: promote/transfer calls to the separate "frontend"
// service, no-op when ORIANNA_WEB_ADDRESS/ORIANNA_WEB_TOKEN are unset.
// Grounded on original_source/shockwave/shockwave_core/src/orianna.rs.
package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shockwave-oss/shockwave/internal/logging"
)

const requestTimeout = 5 * time.Second

// Notifier posts promote/transfer events to the frontend service.
type Notifier struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Notifier. If baseURL or token is empty, every call is a
// documented no-op (§6).
func New(baseURL, token string) *Notifier {
	return &Notifier{baseURL: baseURL, token: token, http: &http.Client{Timeout: requestTimeout}}
}

func (n *Notifier) configured() bool { return n.baseURL != "" && n.token != "" }

// Promote posts {user_id, role_id} to /api/v1/shockwave/promote.
func (n *Notifier) Promote(ctx context.Context, userID, roleID int64) error {
	return n.post(ctx, "/api/v1/shockwave/promote", map[string]int64{"user_id": userID, "role_id": roleID})
}

// Transfer posts {user_id, region, username} to /api/v1/shockwave/transfer.
func (n *Notifier) Transfer(ctx context.Context, userID int64, region, username string) error {
	return n.post(ctx, "/api/v1/shockwave/transfer", map[string]interface{}{
		"user_id": userID, "region": region, "username": username,
	})
}

func (n *Notifier) post(ctx context.Context, path string, payload interface{}) error {
	if !n.configured() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("frontend: marshal %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("frontend: build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.http.Do(req)
	if err != nil {
		logging.Warn(logging.Updater).Logf("frontend notification %s failed: %v", path, err)
		return fmt.Errorf("frontend: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logging.Warn(logging.Updater).Logf("frontend notification %s returned status %d", path, resp.StatusCode)
		return fmt.Errorf("frontend: %s: status %d", path, resp.StatusCode)
	}
	return nil
}
