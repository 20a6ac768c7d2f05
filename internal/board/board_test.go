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

package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
	"github.com/fieldline/triage/internal/store"
)

// mockBoardStore implements Store for testing. beforeUpdate, when set, runs
// against the stored card just before the compare-and-set check, to simulate
// a concurrent writer landing between load and update.
type mockBoardStore struct {
	mu           sync.Mutex
	cards        map[uuid.UUID]*models.Card
	beforeUpdate func(*models.Card)
}

func newMockBoardStore() *mockBoardStore {
	return &mockBoardStore{cards: make(map[uuid.UUID]*models.Card)}
}

func (m *mockBoardStore) add(state models.State) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.cards[id] = &models.Card{ID: id, TenantID: "t1", State: state}
	return id
}

func (m *mockBoardStore) GetCard(_ context.Context, id uuid.UUID) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *card
	return &c, nil
}

func (m *mockBoardStore) ListCards(_ context.Context, tenantID string, state models.State) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Card
	for _, card := range m.cards {
		if card.TenantID == tenantID && (state == "" || card.State == state) {
			out = append(out, *card)
		}
	}
	return out, nil
}

func (m *mockBoardStore) UpdateCardState(_ context.Context, id uuid.UUID, from, to models.State, executedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return store.ErrNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(card)
	}
	if card.State != from {
		return store.ErrStateChanged
	}
	card.State = to
	if executedAt != nil {
		card.ExecutedAt = executedAt
	}
	return nil
}

func (m *mockBoardStore) DeleteCard(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

// TestTransitionGraph verifies the legal-move table.
func TestTransitionGraph(t *testing.T) {
	tests := []struct {
		from  models.State
		to    models.State
		legal bool
	}{
		{models.StateSuggested, models.StateInReview, true},
		{models.StateSuggested, models.StateApproved, true},
		{models.StateScheduled, models.StateInReview, true},
		{models.StateScheduled, models.StateRejected, true},
		{models.StateInReview, models.StateApproved, true},
		{models.StateInReview, models.StateRejected, true},
		{models.StateApproved, models.StateExecuting, true},
		{models.StateApproved, models.StateInReview, true},
		{models.StateExecuting, models.StateDone, true},
		{models.StateExecuting, models.StateBlocked, true},

		// Skipping review entirely or moving backwards from execution.
		{models.StateSuggested, models.StateDone, false},
		{models.StateSuggested, models.StateExecuting, false},
		{models.StateInReview, models.StateExecuting, false},
		{models.StateExecuting, models.StateApproved, false},

		// Terminal states have no exits.
		{models.StateDone, models.StateInReview, false},
		{models.StateBlocked, models.StateExecuting, false},
		{models.StateRejected, models.StateSuggested, false},

		// Self-transitions are illegal.
		{models.StateInReview, models.StateInReview, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.legal {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.legal)
			}
		})
	}
}

// TestStatePredicates verifies the initial and terminal state sets.
func TestStatePredicates(t *testing.T) {
	initials := map[models.State]bool{
		models.StateScheduled: true,
		models.StateSuggested: true,
		models.StateInReview:  true,
		models.StateApproved:  true,
	}
	terminals := map[models.State]bool{
		models.StateDone:     true,
		models.StateBlocked:  true,
		models.StateRejected: true,
	}

	for _, s := range States() {
		if IsInitial(s) != initials[s] {
			t.Errorf("IsInitial(%s) = %v", s, IsInitial(s))
		}
		if IsTerminal(s) != terminals[s] {
			t.Errorf("IsTerminal(%s) = %v", s, IsTerminal(s))
		}
	}
}

// TestBoard_Transition verifies a legal move updates state and stamps
// executed_at on completion.
func TestBoard_Transition(t *testing.T) {
	ms := newMockBoardStore()
	b := New(ms)

	id := ms.add(models.StateExecuting)

	card, err := b.Transition(context.Background(), id, models.StateDone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.State != models.StateDone {
		t.Errorf("state = %s, want done", card.State)
	}
	if card.ExecutedAt == nil {
		t.Error("executed_at not stamped on done")
	}
}

// TestBoard_TransitionRejectsIllegalMove verifies illegal moves surface a
// typed error and leave the card untouched.
func TestBoard_TransitionRejectsIllegalMove(t *testing.T) {
	ms := newMockBoardStore()
	b := New(ms)

	id := ms.add(models.StateSuggested)

	_, err := b.Transition(context.Background(), id, models.StateDone)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransitionError", err)
	}
	if te.From != models.StateSuggested || te.To != models.StateDone {
		t.Errorf("TransitionError = %+v", te)
	}

	card, _ := ms.GetCard(context.Background(), id)
	if card.State != models.StateSuggested {
		t.Errorf("card state mutated to %s on rejected transition", card.State)
	}
}

// TestBoard_TransitionConcurrentMove verifies a compare-and-set miss on a
// card that still exists surfaces as ErrStateChanged, not ErrNotFound, and
// leaves the concurrent winner's state in place.
func TestBoard_TransitionConcurrentMove(t *testing.T) {
	ms := newMockBoardStore()
	b := New(ms)

	id := ms.add(models.StateSuggested)

	// Another actor rejects the card between the board's load and its
	// update.
	ms.beforeUpdate = func(c *models.Card) {
		c.State = models.StateRejected
	}

	_, err := b.Transition(context.Background(), id, models.StateApproved)
	if !errors.Is(err, store.ErrStateChanged) {
		t.Errorf("stale transition = %v, want ErrStateChanged", err)
	}

	card, _ := ms.GetCard(context.Background(), id)
	if card.State != models.StateRejected {
		t.Errorf("card state = %s, want rejected untouched", card.State)
	}
}

// TestBoard_TransitionMissingCard verifies the not-found path.
func TestBoard_TransitionMissingCard(t *testing.T) {
	b := New(newMockBoardStore())

	_, err := b.Transition(context.Background(), uuid.New(), models.StateApproved)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestBoard_Delete verifies deletion and its not-found path.
func TestBoard_Delete(t *testing.T) {
	ms := newMockBoardStore()
	b := New(ms)

	id := ms.add(models.StateSuggested)

	if err := b.Delete(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Delete(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}
