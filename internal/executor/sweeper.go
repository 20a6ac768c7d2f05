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
	"sync"
	"time"

	"github.com/fieldline/triage/internal/models"
)

// StaleCardStore lists approved cards that have been waiting too long.
type StaleCardStore interface {
	ListStaleApproved(ctx context.Context, age time.Duration) ([]models.Card, error)
}

// Sweeper re-publishes approved auto-execute cards the executor never
// picked up. A queue push lost to a Redis restart would otherwise strand
// the card in approved forever; re-publishing is safe because the executor
// claims a card by transitioning it to executing, which removes it from
// the stale set.
type Sweeper struct {
	store    StaleCardStore
	handoff  QueuePublisher
	interval time.Duration
	minAge   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a hand-off sweeper. minAge is how long a card may sit
// in approved before it is considered stranded.
func NewSweeper(store StaleCardStore, handoff QueuePublisher, interval, minAge time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		handoff:  handoff,
		interval: interval,
		minAge:   minAge,
	}
}

// Start runs the sweep loop in the background.
func (s *Sweeper) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)

	slog.Info("hand-off sweeper started",
		"interval", s.interval,
		"min_age", s.minAge,
	)
}

// Stop gracefully shuts down the sweep loop.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				slog.Error("hand-off sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("hand-off sweep re-published cards", "count", n)
			}
		}
	}
}

// SweepOnce re-publishes every stranded auto-execute card and returns how
// many were pushed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cards, err := s.store.ListStaleApproved(ctx, s.minAge)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range cards {
		card := &cards[i]
		if !autoExecutable(card) {
			continue
		}
		if err := s.handoff.PublishCard(ctx, card); err != nil {
			slog.Error("failed to re-publish stranded card",
				"card_id", card.ID,
				"error", err,
			)
			continue
		}
		published++
	}
	return published, nil
}

// autoExecutable reports whether a card was approved for autonomous
// handling. Approved cards a human is about to execute manually carry no
// auto-send flag and stay out of the queue.
func autoExecutable(card *models.Card) bool {
	payload, ok := card.ActionPayload.(models.ReplyPayload)
	return ok && payload.ShouldAutoSend
}
