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
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
	"github.com/fieldline/triage/internal/store"
)

// Handler serves the board HTTP API.
//
//	GET    /cards?tenant={id}&state={state}   list a tenant's cards
//	POST   /cards/{id}/transition             move a card {"state": "..."}
//	DELETE /cards/{id}?confirm=true           delete, gated on confirmation
type Handler struct {
	board *Board
}

// NewHandler creates a board API handler.
func NewHandler(board *Board) *Handler {
	return &Handler{board: board}
}

// errorResponse names the attempted action so failures are never ambiguous
// to the invoking UI.
type errorResponse struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, action string, err error) {
	writeJSON(w, status, errorResponse{Action: action, Error: err.Error()})
}

// ServeCards handles the /cards collection route.
func (h *Handler) ServeCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "list cards", errors.New("tenant query parameter is required"))
		return
	}
	state := models.State(r.URL.Query().Get("state"))

	cards, err := h.board.List(r.Context(), tenantID, state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

// ServeCard handles the /cards/{id} routes: transitions and deletion.
func (h *Handler) ServeCard(w http.ResponseWriter, r *http.Request) {
	// Path is /cards/{id} or /cards/{id}/transition
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	cardID, err := uuid.Parse(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "parse card id", err)
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "transition":
		h.transition(w, r, cardID)
	case r.Method == http.MethodDelete && len(parts) == 2:
		h.delete(w, r, cardID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, cardID uuid.UUID) {
	var req struct {
		State models.State `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "transition card", err)
		return
	}

	card, err := h.board.Transition(r.Context(), cardID, req.State)
	if err != nil {
		var te *TransitionError
		switch {
		case errors.As(err, &te):
			writeError(w, http.StatusConflict, "transition card", err)
		case errors.Is(err, store.ErrStateChanged):
			// The card still exists; a 404 here would tell the UI otherwise.
			writeError(w, http.StatusConflict, "transition card", err)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "transition card", err)
		default:
			writeError(w, http.StatusInternalServerError, "transition card", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, cardID uuid.UUID) {
	// Deletion is irreversible, so it requires an explicit confirmation
	// round-trip: the first call without ?confirm=true is refused with a
	// challenge the UI turns into a dialog.
	if r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusConflict, map[string]any{
			"action":           "delete card",
			"confirm_required": true,
			"card_id":          cardID,
		})
		return
	}

	if err := h.board.Delete(r.Context(), cardID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "delete card", err)
		} else {
			writeError(w, http.StatusInternalServerError, "delete card", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": cardID})
}
