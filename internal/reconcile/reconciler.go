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

// Package reconcile repairs cards whose source email lost its back-link.
// The card writer commits both writes in one transaction, but a card whose
// email row arrived late (or was imported without one) ends up with no
// back-link from the email side. The reconciler periodically points those
// email rows back at their card; it never deletes or alters the card itself.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	FindOrphanedCards(ctx context.Context, limit int) ([]models.Card, error)
	RepairBacklink(ctx context.Context, tenantID, messageID string, cardID uuid.UUID) error
}

// batchLimit bounds one pass so a large backlog cannot stall the loop.
const batchLimit = 200

// Reconciler runs the periodic back-link repair loop.
type Reconciler struct {
	store    Store
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a reconciler.
func New(store Store, interval time.Duration) *Reconciler {
	return &Reconciler{store: store, interval: interval}
}

// Start runs the repair loop in the background.
func (r *Reconciler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.loop(loopCtx)

	slog.Info("backlink reconciler started", "interval", r.interval)
}

// Stop gracefully shuts down the repair loop.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				slog.Error("backlink reconcile failed", "error", err)
			} else if n > 0 {
				slog.Info("backlinks repaired", "count", n)
			}
		}
	}
}

// RunOnce repairs up to batchLimit orphaned back-links and returns how
// many were fixed. A single failed repair is logged and skipped; the card
// stays valid either way.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	cards, err := r.store.FindOrphanedCards(ctx, batchLimit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, card := range cards {
		if err := r.store.RepairBacklink(ctx, card.TenantID, card.SourceMessageID, card.ID); err != nil {
			slog.Error("failed to repair backlink",
				"card_id", card.ID,
				"message_id", card.SourceMessageID,
				"error", err,
			)
			continue
		}
		repaired++
	}
	return repaired, nil
}
