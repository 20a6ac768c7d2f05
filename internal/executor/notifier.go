// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package executor notifies the external executor service that an approved
// card is waiting. The Redis queue entry is the durable hand-off; this ping
// only wakes the executor early, so callers treat failures as non-fatal.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fieldline/triage/internal/models"
)

// Notifier pings the executor service's wake endpoint. Requests are sent
// with the per-tenant OAuth2 client so the executor can authorise them.
type Notifier struct {
	httpClients map[string]*http.Client // keyed by tenant ID
	baseURL     string
}

// NewNotifier creates an executor notifier.
func NewNotifier(httpClients map[string]*http.Client, baseURL string) *Notifier {
	return &Notifier{
		httpClients: httpClients,
		baseURL:     baseURL,
	}
}

// wakeRequest is the ping body. The executor pulls the full task from the
// queue; the ping only identifies what arrived.
type wakeRequest struct {
	CardID   string `json:"card_id"`
	TenantID string `json:"tenant_id"`
}

// NotifyCard tells the executor a card is queued for it.
func (n *Notifier) NotifyCard(ctx context.Context, card *models.Card) error {
	client, ok := n.httpClients[card.TenantID]
	if !ok {
		return fmt.Errorf("no executor client for tenant %s", card.TenantID)
	}

	body, err := json.Marshal(wakeRequest{
		CardID:   card.ID.String(),
		TenantID: card.TenantID,
	})
	if err != nil {
		return fmt.Errorf("marshal wake request: %w", err)
	}

	url := fmt.Sprintf("%s/wake", n.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify executor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("executor returned HTTP %d for card %s", resp.StatusCode, card.ID)
	}

	slog.Info("executor notified",
		"card_id", card.ID,
		"tenant", card.TenantID,
	)
	return nil
}
