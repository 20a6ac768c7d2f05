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

// Package backfill imports historical classified emails from a classifier
// export file and drives them through the triage pipeline. Intended for
// seeding boards on new deployments and for re-running deliveries the
// service missed while down.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
	"github.com/fieldline/triage/internal/pipeline"
)

// BatchRunner drives the triage pipeline over the imported emails.
type BatchRunner interface {
	CreateCardsFromEmails(
		ctx context.Context,
		tenantID string,
		emails []models.ClassifiedEmail,
		classifications map[string]models.Classification,
		sourceIDs map[string]uuid.UUID,
	) pipeline.BatchResult
}

// EmailSaver persists source email rows ahead of triage.
type EmailSaver interface {
	SaveEmail(ctx context.Context, tenantID string, email models.ClassifiedEmail) (uuid.UUID, error)
}

// ExportItem is one entry in a classifier export file.
type ExportItem struct {
	Email          models.ClassifiedEmail `json:"email"`
	Classification models.Classification  `json:"classification"`
}

// Result summarises a completed import run.
type Result struct {
	TenantID     string
	Total        int
	Created      int
	NotAttempted int
	Elapsed      time.Duration
}

// Runner performs file-driven historical imports.
type Runner struct {
	runner BatchRunner
	saver  EmailSaver
}

// NewRunner creates an import runner.
func NewRunner(runner BatchRunner, saver EmailSaver) *Runner {
	return &Runner{runner: runner, saver: saver}
}

// Run imports one export file for a tenant. Items whose source row cannot
// be persisted are left without a source id, so the batch skips them
// instead of failing the import.
func (r *Runner) Run(ctx context.Context, tenantID, path string) (*Result, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export file %s: %w", path, err)
	}

	var items []ExportItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse export file %s: %w", path, err)
	}

	slog.Info("starting historical import",
		"tenant", tenantID,
		"file", path,
		"items", len(items),
	)

	emails := make([]models.ClassifiedEmail, 0, len(items))
	classifications := make(map[string]models.Classification, len(items))
	sourceIDs := make(map[string]uuid.UUID, len(items))

	for _, item := range items {
		if item.Email.ID == "" {
			slog.Warn("skipping export item without email id")
			continue
		}
		emails = append(emails, item.Email)
		classifications[item.Email.ID] = item.Classification

		sourceID, err := r.saver.SaveEmail(ctx, tenantID, item.Email)
		if err != nil {
			slog.Error("failed to persist source email",
				"message_id", item.Email.ID,
				"error", err,
			)
			continue
		}
		sourceIDs[item.Email.ID] = sourceID
	}

	out := r.runner.CreateCardsFromEmails(ctx, tenantID, emails, classifications, sourceIDs)

	result := &Result{
		TenantID:     tenantID,
		Total:        len(items),
		Created:      len(out.Results),
		NotAttempted: len(out.NotAttempted),
		Elapsed:      time.Since(start),
	}

	slog.Info("historical import complete",
		"tenant", tenantID,
		"total", result.Total,
		"created", result.Created,
		"not_attempted", result.NotAttempted,
		"elapsed", result.Elapsed,
	)

	return result, nil
}
