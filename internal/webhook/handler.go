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

// Package webhook receives classified-email deliveries from the external
// classifier service. The classifier POSTs batches of emails with their
// verdicts; the handler acknowledges fast, persists the source rows, and
// runs the triage batch in the background under the configured deadline.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
	"github.com/fieldline/triage/internal/pipeline"
)

// BatchRunner drives the triage pipeline over a delivery.
type BatchRunner interface {
	CreateCardsFromEmails(
		ctx context.Context,
		tenantID string,
		emails []models.ClassifiedEmail,
		classifications map[string]models.Classification,
		sourceIDs map[string]uuid.UUID,
	) pipeline.BatchResult
}

// EmailSaver persists source email rows ahead of triage.
type EmailSaver interface {
	SaveEmail(ctx context.Context, tenantID string, email models.ClassifiedEmail) (uuid.UUID, error)
}

// DeliveryItem pairs one email with its classifier verdict.
type DeliveryItem struct {
	Email          models.ClassifiedEmail `json:"email"`
	Classification models.Classification  `json:"classification"`
}

// Delivery is the classifier's POST body.
type Delivery struct {
	Items []DeliveryItem `json:"items"`
}

// Handler processes classifier deliveries.
type Handler struct {
	runner   BatchRunner
	saver    EmailSaver
	tenants  map[string]string // alias → tenant id
	deadline time.Duration
}

// NewHandler creates an intake handler. tenants maps URL aliases to tenant
// ids; unknown aliases are rejected.
func NewHandler(runner BatchRunner, saver EmailSaver, tenants map[string]string, deadline time.Duration) *Handler {
	return &Handler{
		runner:   runner,
		saver:    saver,
		tenants:  tenants,
		deadline: deadline,
	}
}

// ServeIntake handles POST /intake/{tenantAlias}.
//
// The classifier expects a fast acknowledgement: the handler validates the
// tenant and the JSON shape, responds 202 Accepted, and triages in the
// background. Per-item outcomes are logged, not returned.
func (h *Handler) ServeIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Path is /intake/{tenantAlias}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tenantID, ok := h.tenants[parts[1]]
	if !ok {
		slog.Warn("intake for unknown tenant alias", "alias", parts[1])
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read intake body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var delivery Delivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		slog.Warn("intake body not valid JSON", "error", err, "body_len", len(body))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Respond immediately; the classifier retries on slow ACKs.
	w.WriteHeader(http.StatusAccepted)

	go h.processDelivery(context.Background(), tenantID, delivery)
}

// processDelivery persists source rows and runs the triage batch under the
// configured deadline.
func (h *Handler) processDelivery(ctx context.Context, tenantID string, delivery Delivery) {
	if h.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deadline)
		defer cancel()
	}

	emails := make([]models.ClassifiedEmail, 0, len(delivery.Items))
	classifications := make(map[string]models.Classification, len(delivery.Items))
	sourceIDs := make(map[string]uuid.UUID, len(delivery.Items))

	for _, item := range delivery.Items {
		if item.Email.ID == "" {
			slog.Warn("skipping delivery item without email id", "tenant", tenantID)
			continue
		}
		emails = append(emails, item.Email)
		classifications[item.Email.ID] = item.Classification

		sourceID, err := h.saver.SaveEmail(ctx, tenantID, item.Email)
		if err != nil {
			// Leave the source id absent; the batch skips the item and the
			// classifier redelivers later.
			slog.Error("failed to persist source email",
				"tenant", tenantID,
				"message_id", item.Email.ID,
				"error", err,
			)
			continue
		}
		sourceIDs[item.Email.ID] = sourceID
	}

	out := h.runner.CreateCardsFromEmails(ctx, tenantID, emails, classifications, sourceIDs)

	slog.Info("intake batch processed",
		"tenant", tenantID,
		"delivered", len(delivery.Items),
		"cards_created", len(out.Results),
		"not_attempted", len(out.NotAttempted),
	)
}
