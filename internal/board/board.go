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

// Package board is the workflow surface over cards: it enumerates states,
// enforces the legal transition graph, renders due dates for scheduled
// cards, and serves the HTTP API humans and the executor drive cards
// through.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
)

// Store is the persistence surface the board needs.
type Store interface {
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCards(ctx context.Context, tenantID string, state models.State) ([]models.Card, error)
	UpdateCardState(ctx context.Context, id uuid.UUID, from, to models.State, executedAt *time.Time) error
	DeleteCard(ctx context.Context, id uuid.UUID) error
}

// States returns every workflow state in board column order.
func States() []models.State {
	return []models.State{
		models.StateScheduled,
		models.StateSuggested,
		models.StateInReview,
		models.StateApproved,
		models.StateExecuting,
		models.StateDone,
		models.StateBlocked,
		models.StateRejected,
	}
}

// IsInitial reports whether triage may assign this state at card creation.
// Cards never start in executing, done, blocked, or rejected.
func IsInitial(s models.State) bool {
	switch s {
	case models.StateScheduled, models.StateSuggested, models.StateInReview, models.StateApproved:
		return true
	}
	return false
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s models.State) bool {
	switch s {
	case models.StateDone, models.StateBlocked, models.StateRejected:
		return true
	}
	return false
}

// transitions is the legal state graph. Humans move cards between the
// review columns; the executor alone drives approved → executing →
// done/blocked. Terminal states have no exits.
var transitions = map[models.State][]models.State{
	models.StateScheduled: {models.StateInReview, models.StateApproved, models.StateRejected},
	models.StateSuggested: {models.StateInReview, models.StateApproved, models.StateRejected},
	models.StateInReview:  {models.StateApproved, models.StateRejected},
	models.StateApproved:  {models.StateExecuting, models.StateInReview, models.StateRejected},
	models.StateExecuting: {models.StateDone, models.StateBlocked},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to models.State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempted illegal state move.
type TransitionError struct {
	CardID uuid.UUID
	From   models.State
	To     models.State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("card %s: illegal transition %s → %s", e.CardID, e.From, e.To)
}

// Board validates and applies workflow operations on cards.
type Board struct {
	store Store
	now   func() time.Time
}

// New creates a board over the given store.
func New(store Store) *Board {
	return &Board{store: store, now: time.Now}
}

// Transition moves a card to a new state after validating the move against
// the transition graph. Entering done stamps executed_at. The underlying
// update is a compare-and-set, so a concurrent move surfaces as
// store.ErrStateChanged rather than silently overwriting.
func (b *Board) Transition(ctx context.Context, cardID uuid.UUID, to models.State) (*models.Card, error) {
	card, err := b.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("load card for transition: %w", err)
	}

	if !CanTransition(card.State, to) {
		return nil, &TransitionError{CardID: cardID, From: card.State, To: to}
	}

	var executedAt *time.Time
	if to == models.StateDone {
		t := b.now().UTC()
		executedAt = &t
	}

	if err := b.store.UpdateCardState(ctx, cardID, card.State, to, executedAt); err != nil {
		return nil, fmt.Errorf("apply transition %s → %s: %w", card.State, to, err)
	}

	slog.Info("card transitioned",
		"card_id", cardID,
		"from", card.State,
		"to", to,
	)

	card.State = to
	card.ExecutedAt = executedAt
	return card, nil
}

// Delete removes a card permanently. Callers must have completed the
// confirmation round-trip first; the HTTP handler gates on it.
func (b *Board) Delete(ctx context.Context, cardID uuid.UUID) error {
	if err := b.store.DeleteCard(ctx, cardID); err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	slog.Info("card deleted", "card_id", cardID)
	return nil
}

// List returns a tenant's cards, optionally filtered to a single state.
func (b *Board) List(ctx context.Context, tenantID string, state models.State) ([]models.Card, error) {
	cards, err := b.store.ListCards(ctx, tenantID, state)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}
