// Copyright (c) 2026 John Earle
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://github.com/yourusername/bcem/blob/main/LICENSE
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue hands approved auto-execute cards to the external executor
// via a Redis list. The queue entry is the durable hand-off: the executor
// pops it, moves the card to executing through the board API, and acts on
// the action payload.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fieldline/triage/internal/models"
)

// Publisher sends card hand-off tasks to Redis.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// executorTask is the message the executor worker pops from Redis.
type executorTask struct {
	ID       string          `json:"id"`
	Task     string          `json:"task"`
	TenantID string          `json:"tenant_id"`
	CardID   uuid.UUID       `json:"card_id"`
	Card     json.RawMessage `json:"card"`
	Queued   time.Time       `json:"queued_at"`
}

// PublishCard serialises an approved card and pushes it to the executor
// queue. Only the caller decides eligibility; the publisher does not
// re-check state.
func (p *Publisher) PublishCard(ctx context.Context, card *models.Card) error {
	cardJSON, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	task := executorTask{
		ID:       uuid.New().String(),
		Task:     "executor.execute_card",
		TenantID: card.TenantID,
		CardID:   card.ID,
		Card:     cardJSON,
		Queued:   time.Now().UTC(),
	}

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal executor task: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(taskJSON)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("card handed to executor queue",
		"task_id", task.ID,
		"card_id", card.ID,
		"tenant", card.TenantID,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
