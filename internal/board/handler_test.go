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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
)

func newTestHandler() (*Handler, *mockBoardStore) {
	ms := newMockBoardStore()
	return NewHandler(New(ms)), ms
}

// TestHandler_Transition verifies a legal move over HTTP.
func TestHandler_Transition(t *testing.T) {
	h, ms := newTestHandler()
	id := ms.add(models.StateInReview)

	req := httptest.NewRequest(http.MethodPost, "/cards/"+id.String()+"/transition",
		strings.NewReader(`{"state":"approved"}`))
	rr := httptest.NewRecorder()

	h.ServeCard(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var card models.Card
	if err := json.Unmarshal(rr.Body.Bytes(), &card); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if card.State != models.StateApproved {
		t.Errorf("state = %s, want approved", card.State)
	}
}

// TestHandler_TransitionIllegal verifies illegal moves come back as 409
// with the attempted action named.
func TestHandler_TransitionIllegal(t *testing.T) {
	h, ms := newTestHandler()
	id := ms.add(models.StateSuggested)

	req := httptest.NewRequest(http.MethodPost, "/cards/"+id.String()+"/transition",
		strings.NewReader(`{"state":"done"}`))
	rr := httptest.NewRecorder()

	h.ServeCard(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
	}

	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Action != "transition card" {
		t.Errorf("action = %q, want %q", resp.Action, "transition card")
	}
	if !strings.Contains(resp.Error, "illegal transition") {
		t.Errorf("error = %q, want illegal transition message", resp.Error)
	}
}

// TestHandler_TransitionConcurrentMove verifies a card moved by another
// actor mid-request comes back 409, not 404: the card still exists.
func TestHandler_TransitionConcurrentMove(t *testing.T) {
	h, ms := newTestHandler()
	id := ms.add(models.StateInReview)

	ms.beforeUpdate = func(c *models.Card) {
		c.State = models.StateRejected
	}

	req := httptest.NewRequest(http.MethodPost, "/cards/"+id.String()+"/transition",
		strings.NewReader(`{"state":"approved"}`))
	rr := httptest.NewRecorder()

	h.ServeCard(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}

	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "changed concurrently") {
		t.Errorf("error = %q, want concurrent-change message", resp.Error)
	}
}

// TestHandler_TransitionMissingCard verifies unknown cards come back 404.
func TestHandler_TransitionMissingCard(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/cards/"+uuid.NewString()+"/transition",
		strings.NewReader(`{"state":"approved"}`))
	rr := httptest.NewRecorder()

	h.ServeCard(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// TestHandler_DeleteRequiresConfirmation verifies the two-step delete: the
// first call is challenged, the confirmed call deletes.
func TestHandler_DeleteRequiresConfirmation(t *testing.T) {
	h, ms := newTestHandler()
	id := ms.add(models.StateSuggested)

	// Without confirmation: challenged, card untouched.
	req := httptest.NewRequest(http.MethodDelete, "/cards/"+id.String(), nil)
	rr := httptest.NewRecorder()
	h.ServeCard(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("unconfirmed status = %d, want %d", rr.Code, http.StatusConflict)
	}
	var challenge map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}
	if challenge["confirm_required"] != true {
		t.Errorf("challenge = %v, want confirm_required", challenge)
	}
	if len(ms.cards) != 1 {
		t.Fatal("card deleted without confirmation")
	}

	// Confirmed: deleted.
	req = httptest.NewRequest(http.MethodDelete, "/cards/"+id.String()+"?confirm=true", nil)
	rr = httptest.NewRecorder()
	h.ServeCard(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(ms.cards) != 0 {
		t.Error("card not deleted after confirmation")
	}
}

// TestHandler_DeleteMissingCard verifies delete failures are explicit, not
// silently swallowed.
func TestHandler_DeleteMissingCard(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodDelete, "/cards/"+uuid.NewString()+"?confirm=true", nil)
	rr := httptest.NewRecorder()
	h.ServeCard(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Action != "delete card" {
		t.Errorf("action = %q, want %q", resp.Action, "delete card")
	}
}

// TestHandler_ListCards verifies the collection route with a state filter.
func TestHandler_ListCards(t *testing.T) {
	h, ms := newTestHandler()
	ms.add(models.StateSuggested)
	ms.add(models.StateApproved)

	req := httptest.NewRequest(http.MethodGet, "/cards?tenant=t1&state=approved", nil)
	rr := httptest.NewRecorder()
	h.ServeCards(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp struct {
		Cards []models.Card `json:"cards"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Cards) != 1 {
		t.Errorf("cards = %d, want 1", len(resp.Cards))
	}

	// Missing tenant is a client error.
	req = httptest.NewRequest(http.MethodGet, "/cards", nil)
	rr = httptest.NewRecorder()
	h.ServeCards(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status without tenant = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
