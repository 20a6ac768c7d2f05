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

package executor

import (
	"context"
	"log/slog"

	"github.com/fieldline/triage/internal/models"
)

// QueuePublisher is the durable side of the hand-off.
type QueuePublisher interface {
	PublishCard(ctx context.Context, card *models.Card) error
}

// Handoff pairs the durable queue push with the best-effort wake ping.
// It satisfies the pipeline's Publisher interface.
type Handoff struct {
	queue    QueuePublisher
	notifier *Notifier
}

// NewHandoff creates a hand-off. notifier may be nil when no executor
// endpoint is configured; the queue entry alone is sufficient.
func NewHandoff(queue QueuePublisher, notifier *Notifier) *Handoff {
	return &Handoff{queue: queue, notifier: notifier}
}

// PublishCard pushes the card to the executor queue, then pings the
// executor. The ping failing never fails the hand-off.
func (h *Handoff) PublishCard(ctx context.Context, card *models.Card) error {
	if err := h.queue.PublishCard(ctx, card); err != nil {
		return err
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyCard(ctx, card); err != nil {
			slog.Warn("executor wake ping failed, card remains queued",
				"card_id", card.ID,
				"error", err,
			)
		}
	}
	return nil
}
