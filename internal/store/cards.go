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

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldline/triage/internal/models"
)

const cardColumns = `c.id, c.tenant_id, c.client_id, c.contact_id,
	c.source_message_id, c.source_thread_id, c.category, c.type,
	c.title, c.description, c.rationale, c.priority, c.state,
	c.action_payload, c.due_at, c.created_at, c.executed_at`

// CreateCard persists a card and back-links its source email row, both
// inside one transaction. A missing source email row does not fail the
// insert: the card commits and the gap is logged for the reconciler to pick
// up. A back-link failure never deletes or invalidates the card.
func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}

	payload, err := models.MarshalActionPayload(card.ActionPayload)
	if err != nil {
		return fmt.Errorf("encode action payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin card transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO cards
			(id, tenant_id, client_id, contact_id, source_message_id,
			 source_thread_id, category, type, title, description,
			 rationale, priority, state, action_payload, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, card.ID, card.TenantID, card.ClientID, card.ContactID, card.SourceMessageID,
		card.SourceThreadID, card.Category, card.Type, card.Title, card.Description,
		card.Rationale, card.Priority, card.State, payload, card.DueAt, card.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE emails SET card_id = $1
		WHERE tenant_id = $2 AND message_id = $3
	`, card.ID, card.TenantID, card.SourceMessageID)
	if err != nil {
		return fmt.Errorf("backlink source email %s: %w", card.SourceMessageID, err)
	}
	if tag.RowsAffected() == 0 {
		slog.Warn("no source email row to backlink",
			"card_id", card.ID,
			"message_id", card.SourceMessageID,
		)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit card transaction: %w", err)
	}
	return nil
}

// GetCard retrieves a single card by id.
func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+cardColumns+` FROM cards c WHERE c.id = $1
	`, id)
	card, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	return card, nil
}

// ListCards returns a tenant's cards, optionally filtered to one state,
// newest first.
func (s *Store) ListCards(ctx context.Context, tenantID string, state models.State) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c WHERE c.tenant_id = $1`
	args := []any{tenantID}
	if state != "" {
		query += ` AND c.state = $2`
		args = append(args, state)
	}
	query += ` ORDER BY c.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// UpdateCardState moves a card from one state to another with a
// compare-and-set: the update only applies if the card is still in the
// expected state. Returns ErrStateChanged when the card exists but moved
// concurrently, ErrNotFound when it is gone. executedAt is set when non-nil
// (entering done).
func (s *Store) UpdateCardState(ctx context.Context, id uuid.UUID, from, to models.State, executedAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cards
		SET state = $1, executed_at = COALESCE($2, executed_at)
		WHERE id = $3 AND state = $4
	`, to, executedAt, id, from)
	if err != nil {
		return fmt.Errorf("update card %s state: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cards WHERE id = $1)`, id).Scan(&exists)
		if err == nil && exists {
			return ErrStateChanged
		}
		return ErrNotFound
	}
	return nil
}

// ListStaleApproved returns approved cards older than the given age. The
// hand-off sweeper re-publishes the auto-executable ones in case the
// original queue push was lost.
func (s *Store) ListStaleApproved(ctx context.Context, age time.Duration) ([]models.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cardColumns+` FROM cards c
		WHERE c.state = 'approved' AND c.created_at < NOW() - $1::interval
		ORDER BY c.created_at
	`, fmt.Sprintf("%d seconds", int(age.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("query stale approved cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// DeleteCard removes a card permanently. Returns ErrNotFound if no card
// had that id.
func (s *Store) DeleteCard(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCard(row pgx.Row) (*models.Card, error) {
	var c models.Card
	var payload []byte
	err := row.Scan(
		&c.ID, &c.TenantID, &c.ClientID, &c.ContactID,
		&c.SourceMessageID, &c.SourceThreadID, &c.Category, &c.Type,
		&c.Title, &c.Description, &c.Rationale, &c.Priority, &c.State,
		&payload, &c.DueAt, &c.CreatedAt, &c.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		p, err := models.UnmarshalActionPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload for card %s: %w", c.ID, err)
		}
		c.ActionPayload = p
	}
	return &c, nil
}

func collectCards(rows pgx.Rows) ([]models.Card, error) {
	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}
