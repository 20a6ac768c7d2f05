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

// Fieldline Triage — Email Triage Service
//
// Entry point for the triage service. It:
//  1. Loads multi-tenant configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds the email-to-card pipeline with executor hand-off
//  4. Serves classifier intake and workflow board endpoints
//  5. Runs the stale-card sweeper and back-link reconciler
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fieldline/triage/internal/board"
	"github.com/fieldline/triage/internal/config"
	"github.com/fieldline/triage/internal/dedup"
	"github.com/fieldline/triage/internal/executor"
	"github.com/fieldline/triage/internal/pipeline"
	"github.com/fieldline/triage/internal/queue"
	"github.com/fieldline/triage/internal/reconcile"
	"github.com/fieldline/triage/internal/store"
	"github.com/fieldline/triage/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting triage service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tenants", len(cfg.Tenants),
		"batch_deadline", cfg.BatchDeadline,
		"dedup_enabled", cfg.DedupEnabled,
	)

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

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	publisher := queue.NewPublisher(rdb, cfg.ExecutorQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Seen Filter ---
	// Off by default: source rows are keyed by (tenant, message id)
	// upstream, so re-delivery of the same message is the classifier's
	// problem unless a deployment opts in.
	var filter pipeline.SeenFilter
	if cfg.DedupEnabled {
		filter = dedup.NewFilter(rdb)
		slog.Info("source dedup filter enabled")
	}

	// --- Card Store (Postgres) ---
	st, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise card store", "error", err)
		os.Exit(1)
	}

	// --- Executor hand-off ---
	// The wake call is optional. Queued tasks alone are enough; the
	// notifier just shortens pickup latency when the executor exposes
	// an endpoint.
	var notifier *executor.Notifier
	if cfg.ExecutorURL != "" {
		executorClients := make(map[string]*http.Client)
		for _, tenant := range cfg.Tenants {
			if tenant.TokenURL == "" {
				continue
			}
			creds := &clientcredentials.Config{
				ClientID:     tenant.ClientID,
				ClientSecret: tenant.ClientSecret,
				TokenURL:     tenant.TokenURL,
			}
			executorClients[tenant.TenantID] = creds.Client(ctx)
		}
		notifier = executor.NewNotifier(executorClients, cfg.ExecutorURL)
		slog.Info("executor wake endpoint configured", "url", cfg.ExecutorURL)
	}
	handoff := executor.NewHandoff(publisher, notifier)

	// --- Pipeline ---
	pipe := pipeline.New(st, handoff, filter)

	// --- Intake + Board Handlers ---
	intake := webhook.NewHandler(pipe, st, cfg.TenantAliases(), cfg.BatchDeadline)
	boardHandler := board.NewHandler(board.New(st))

	// --- Background loops ---
	sweeper := executor.NewSweeper(st, publisher, cfg.SweepInterval, cfg.SweepMinAge)
	sweeper.Start(ctx)

	reconciler := reconcile.New(st, cfg.ReconcileInterval)
	reconciler.Start(ctx)

	// --- HTTP Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/intake/", intake.ServeIntake)
	mux.HandleFunc("/cards", boardHandler.ServeCards)
	mux.HandleFunc("/cards/", boardHandler.ServeCard)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		// Check Redis
		if err := publisher.Ping(r.Context()); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}
		// Check Postgres
		if err := pgPool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stop all background goroutines

		sweeper.Stop()
		reconciler.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("triage service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("triage service stopped")
}
