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

// Package pipeline composes the triage engine: resolve a strategy, attach a
// contact, build content, persist the card, and hand approved cards to the
// executor queue. The batch driver processes emails sequentially with
// per-item fault isolation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
	"github.com/fieldline/triage/internal/triage"
)

// CardStore is the persistence surface the pipeline needs.
type CardStore interface {
	FindOrCreateContact(ctx context.Context, tenantID string, from models.EmailAddress) (uuid.UUID, error)
	FindClientByContact(ctx context.Context, contactID uuid.UUID) (*uuid.UUID, error)
	CreateCard(ctx context.Context, card *models.Card) error
}

// Publisher hands approved auto-execute cards to the external executor.
type Publisher interface {
	PublishCard(ctx context.Context, card *models.Card) error
}

// SeenFilter is the optional uniqueness hook: when configured, the batch
// driver skips source messages it has already triaged. Nil preserves the
// historical behaviour of creating a fresh card on every pass.
type SeenFilter interface {
	IsNew(ctx context.Context, tenantID, messageID string) (bool, error)
}

// Result records the outcome of triaging one email.
type Result struct {
	CardID      uuid.UUID       `json:"card_id"`
	Type        models.CardType `json:"type"`
	State       models.State    `json:"state"`
	AutoExecute bool            `json:"auto_execute"`
}

// BatchResult is the accumulated outcome of a batch run. Results may hold
// fewer entries than the input: skipped and failed items are absent, and
// items the deadline cut off are listed in NotAttempted (unattempted is not
// failed).
type BatchResult struct {
	Results      map[string]Result `json:"results"`
	NotAttempted []string          `json:"not_attempted,omitempty"`
}

// Pipeline wires the triage policy to storage and the executor hand-off.
type Pipeline struct {
	store     CardStore
	publisher Publisher
	filter    SeenFilter
}

// New creates a pipeline. publisher and filter may be nil: without a
// publisher, approved cards simply wait on the board; without a filter,
// no dedup is applied.
func New(store CardStore, publisher Publisher, filter SeenFilter) *Pipeline {
	return &Pipeline{store: store, publisher: publisher, filter: filter}
}

// CreateCardFromEmail triages a single classified email into a card. Any
// persistence failure propagates to the caller; client lookup and executor
// hand-off failures are logged and non-fatal.
func (p *Pipeline) CreateCardFromEmail(
	ctx context.Context,
	tenantID string,
	email models.ClassifiedEmail,
	classification models.Classification,
	sourceID uuid.UUID,
) (*Result, error) {
	if tenantID == "" {
		return nil, errors.New("cannot create card: tenant id is required")
	}
	if classification.Category == "" {
		return nil, errors.New("cannot create card: classification category is missing")
	}

	strategy := triage.Resolve(classification)
	slog.Info("card strategy resolved",
		"message_id", email.ID,
		"category", classification.Category,
		"confidence", classification.Confidence,
		"type", strategy.CardType,
		"state", strategy.State,
		"auto_execute", strategy.AutoExecute,
	)

	contactID, err := p.store.FindOrCreateContact(ctx, tenantID, email.From)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}

	clientID, err := p.store.FindClientByContact(ctx, contactID)
	if err != nil {
		// Non-fatal: the card can be created without a client and linked
		// later.
		slog.Warn("client lookup failed, continuing without client",
			"contact_id", contactID,
			"error", err,
		)
		clientID = nil
	}

	content := triage.BuildContent(email, classification, strategy.CardType)

	card := &models.Card{
		TenantID:        tenantID,
		ClientID:        clientID,
		ContactID:       contactID,
		SourceMessageID: email.ID,
		SourceThreadID:  email.ThreadID,
		Category:        classification.Category,
		Type:            strategy.CardType,
		Title:           content.Title,
		Description:     content.Description,
		Rationale:       content.Rationale,
		Priority:        strategy.Priority,
		State:           strategy.State,
		ActionPayload:   content.ActionPayload,
	}

	if err := p.store.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("persist card for message %s: %w", email.ID, err)
	}

	slog.Info("card created",
		"card_id", card.ID,
		"source_row", sourceID,
		"message_id", email.ID,
		"state", card.State,
	)

	if strategy.AutoExecute && p.publisher != nil {
		// The card is already approved and pollable; a publish failure
		// only delays pickup, so it never fails the item.
		if err := p.publisher.PublishCard(ctx, card); err != nil {
			slog.Error("executor hand-off failed",
				"card_id", card.ID,
				"error", err,
			)
		}
	}

	return &Result{
		CardID:      card.ID,
		Type:        strategy.CardType,
		State:       strategy.State,
		AutoExecute: strategy.AutoExecute,
	}, nil
}

// CreateCardsFromEmails triages a batch of emails sequentially. An email
// missing its classification or source row id is skipped with a log line;
// an item failure is logged and the batch continues. When the context
// expires mid-batch, remaining emails are reported as not attempted. No
// item failure ever aborts the batch.
//
// Sequential on purpose: one email resolves its contact fully before the
// next starts, so two emails from the same sender cannot race identity
// creation (the store's upsert guards the concurrent-caller case).
func (p *Pipeline) CreateCardsFromEmails(
	ctx context.Context,
	tenantID string,
	emails []models.ClassifiedEmail,
	classifications map[string]models.Classification,
	sourceIDs map[string]uuid.UUID,
) BatchResult {
	out := BatchResult{Results: make(map[string]Result, len(emails))}

	for i, email := range emails {
		if ctx.Err() != nil {
			for _, rest := range emails[i:] {
				out.NotAttempted = append(out.NotAttempted, rest.ID)
			}
			slog.Warn("batch deadline reached",
				"attempted", i,
				"not_attempted", len(out.NotAttempted),
			)
			break
		}

		classification, ok := classifications[email.ID]
		if !ok {
			slog.Warn("skipping email: missing classification", "message_id", email.ID)
			continue
		}
		sourceID, ok := sourceIDs[email.ID]
		if !ok {
			slog.Warn("skipping email: missing source row id", "message_id", email.ID)
			continue
		}

		if p.filter != nil {
			fresh, err := p.filter.IsNew(ctx, tenantID, email.ID)
			if err != nil {
				// Fail open: dedup is an optimisation, not a gate.
				slog.Warn("dedup check failed, processing anyway",
					"message_id", email.ID,
					"error", err,
				)
			} else if !fresh {
				slog.Info("skipping email: already triaged", "message_id", email.ID)
				continue
			}
		}

		result, err := p.CreateCardFromEmail(ctx, tenantID, email, classification, sourceID)
		if err != nil {
			slog.Error("failed to create card",
				"message_id", email.ID,
				"error", err,
			)
			continue
		}
		out.Results[email.ID] = *result
	}

	return out
}
