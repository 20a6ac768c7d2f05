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

// Fieldline Triage — Historical Import Command
//
// Standalone CLI tool that replays a classifier export file through the
// email-to-card pipeline. Intended for seeding cards on new deployments
// from previously classified mail.
//
// Usage:
//
//	go run ./cmd/backfill/ --tenant <alias> --file export.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldline/triage/internal/backfill"
	"github.com/fieldline/triage/internal/config"
	"github.com/fieldline/triage/internal/pipeline"
	"github.com/fieldline/triage/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	tenantFlag := flag.String("tenant", "", "Tenant alias to import into (required)")
	fileFlag := flag.String("file", "", "Path to the classifier export file (required)")
	flag.Parse()

	if *tenantFlag == "" || *fileFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --tenant and --file are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Find the requested tenant
	var tenant *config.TenantConfig
	for i := range cfg.Tenants {
		if cfg.Tenants[i].Alias == *tenantFlag {
			tenant = &cfg.Tenants[i]
			break
		}
	}
	if tenant == nil {
		slog.Error("tenant not found in configuration", "alias", *tenantFlag)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	st, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise card store", "error", err)
		os.Exit(1)
	}

	// Imports never auto-execute: no publisher, no seen filter. Cards
	// land on the board in whatever state the resolver picks, and the
	// executor only ever sees cards queued by the live service.
	pipe := pipeline.New(st, nil, nil)

	// --- Run Import ---
	runner := backfill.NewRunner(pipe, st)

	result, err := runner.Run(ctx, tenant.TenantID, *fileFlag)
	if err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}

	slog.Info("import complete",
		"tenant", tenant.Alias,
		"total", result.Total,
		"created", result.Created,
		"not_attempted", result.NotAttempted,
		"elapsed", result.Elapsed,
	)
}
