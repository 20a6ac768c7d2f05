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

// Package store provides the tenant-scoped Postgres persistence layer for
// contacts, clients, source emails, and cards. It is the only shared mutable
// resource in the triage core; the orchestrators and the workflow board are
// its only writers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldline/triage/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStateChanged is returned when a compare-and-set state update misses
// because the card moved concurrently. The card still exists; callers should
// reload and retry rather than treat it as gone.
var ErrStateChanged = errors.New("card state changed concurrently")

// Store provides CRUD operations for the triage tables in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given Postgres pool. It ensures the
// triage schema exists on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure triage schema: %w", err)
	}
	slog.Info("triage store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	// Note: cards.source_message_id deliberately carries no UNIQUE
	// constraint; re-processing a message creates a second card, matching
	// upstream behaviour. The dedup filter in internal/dedup is the hook
	// point for tightening this without changing the table contract.
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS clients (
			id         UUID PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS contacts (
			id         UUID PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			email      TEXT NOT NULL,
			name       TEXT NOT NULL,
			client_id  UUID REFERENCES clients(id),
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(tenant_id, email)
		);
		CREATE TABLE IF NOT EXISTS emails (
			id          UUID PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			thread_id   TEXT DEFAULT '',
			from_email  TEXT DEFAULT '',
			subject     TEXT DEFAULT '',
			card_id     UUID,
			received_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(tenant_id, message_id)
		);
		CREATE TABLE IF NOT EXISTS cards (
			id                UUID PRIMARY KEY,
			tenant_id         TEXT NOT NULL,
			client_id         UUID,
			contact_id        UUID NOT NULL,
			source_message_id TEXT NOT NULL,
			source_thread_id  TEXT DEFAULT '',
			category          TEXT NOT NULL,
			type              TEXT NOT NULL,
			title             TEXT NOT NULL,
			description       TEXT DEFAULT '',
			rationale         TEXT DEFAULT '',
			priority          TEXT NOT NULL,
			state             TEXT NOT NULL,
			action_payload    JSONB,
			due_at            TIMESTAMPTZ,
			created_at        TIMESTAMPTZ DEFAULT NOW(),
			executed_at       TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_tenant ON contacts(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_emails_tenant ON emails(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_cards_tenant_state ON cards(tenant_id, state);
		CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_message_id);
	`)
	return err
}

// FindOrCreateContact resolves a sender address to a contact id within a
// tenant, creating the contact if it does not exist. The upsert is keyed on
// (tenant_id, email), so concurrent resolution of the same sender cannot
// create duplicates: repeated calls always return the same id.
func (s *Store) FindOrCreateContact(ctx context.Context, tenantID string, from models.EmailAddress) (uuid.UUID, error) {
	name := from.Name
	if name == "" {
		name = from.Email
	}

	// The no-op DO UPDATE makes RETURNING yield the existing row's id on
	// conflict.
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (id, tenant_id, email, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, uuid.New(), tenantID, from.Email, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert contact %s: %w", from.Email, err)
	}
	return id, nil
}

// FindClientByContact returns the client linked to a contact, or nil when
// the contact has no client. It never creates a client.
func (s *Store) FindClientByContact(ctx context.Context, contactID uuid.UUID) (*uuid.UUID, error) {
	var clientID *uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT client_id FROM contacts WHERE id = $1
	`, contactID).Scan(&clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up client for contact %s: %w", contactID, err)
	}
	return clientID, nil
}

// SaveEmail upserts a source email row keyed on (tenant_id, message_id) and
// returns its storage id. Intake and backfill call this before triage so
// the card writer has a back-link target.
func (s *Store) SaveEmail(ctx context.Context, tenantID string, email models.ClassifiedEmail) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO emails (id, tenant_id, message_id, thread_id, from_email, subject)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, message_id) DO UPDATE SET
			thread_id  = EXCLUDED.thread_id,
			from_email = EXCLUDED.from_email,
			subject    = EXCLUDED.subject
		RETURNING id
	`, uuid.New(), tenantID, email.ID, email.ThreadID, email.From.Email, email.Subject).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert email %s: %w", email.ID, err)
	}
	return id, nil
}

// FindOrphanedCards returns cards whose source email row exists but carries
// no back-link. The reconciler repairs these.
func (s *Store) FindOrphanedCards(ctx context.Context, limit int) ([]models.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN emails e ON e.tenant_id = c.tenant_id AND e.message_id = c.source_message_id
		WHERE e.card_id IS NULL
		ORDER BY c.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orphaned cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// RepairBacklink points a source email row at its card.
func (s *Store) RepairBacklink(ctx context.Context, tenantID, messageID string, cardID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE emails SET card_id = $1
		WHERE tenant_id = $2 AND message_id = $3
	`, cardID, tenantID, messageID)
	if err != nil {
		return fmt.Errorf("repair backlink for %s: %w", messageID, err)
	}
	return nil
}
