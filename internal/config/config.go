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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TenantConfig holds one tenant's identity and its executor credentials.
type TenantConfig struct {
	Alias        string `yaml:"alias"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
}

// Config holds all configuration for the triage service.
type Config struct {
	Tenants []TenantConfig

	// Postgres
	DatabaseURL string

	// Redis
	RedisURL      string
	ExecutorQueue string

	// Executor wake endpoint; empty disables the wake ping.
	ExecutorURL string

	// Pipeline
	BatchDeadline     time.Duration
	DedupEnabled      bool
	SweepInterval     time.Duration
	SweepMinAge       time.Duration
	ReconcileInterval time.Duration

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Tenants []struct {
		Alias        string `yaml:"alias"`
		TenantID     string `yaml:"tenant_id"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		TokenURL     string `yaml:"token_url"`
	} `yaml:"tenants"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Executor string `yaml:"executor"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Executor struct {
		URL string `yaml:"url"`
	} `yaml:"executor"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		DatabaseURL:       firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "")),
		RedisURL:          firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		ExecutorQueue:     firstNonEmpty(raw.Redis.Queues.Executor, envOrDefault("EXECUTOR_QUEUE", "executor")),
		ExecutorURL:       firstNonEmpty(raw.Executor.URL, envOrDefault("EXECUTOR_URL", "")),
		BatchDeadline:     envOrDefaultDuration("BATCH_DEADLINE", 5*time.Minute),
		DedupEnabled:      envOrDefaultBool("DEDUP_ENABLED", false),
		SweepInterval:     envOrDefaultDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepMinAge:       envOrDefaultDuration("SWEEP_MIN_AGE", 10*time.Minute),
		ReconcileInterval: envOrDefaultDuration("RECONCILE_INTERVAL", 15*time.Minute),
		Port:              envOrDefaultInt("PORT", 8080),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database URL configured — set database.url or DATABASE_URL")
	}

	// Build tenant configs
	for _, t := range raw.Tenants {
		tc := TenantConfig{
			Alias:        t.Alias,
			TenantID:     t.TenantID,
			ClientID:     t.ClientID,
			ClientSecret: t.ClientSecret,
			TokenURL:     t.TokenURL,
		}

		if tc.TenantID == "" {
			// Skip tenants with empty ids (commented out in YAML)
			continue
		}

		if tc.Alias == "" {
			if len(tc.TenantID) >= 8 {
				tc.Alias = tc.TenantID[:8]
			} else {
				tc.Alias = tc.TenantID
			}
		}

		cfg.Tenants = append(cfg.Tenants, tc)
	}

	if len(cfg.Tenants) == 0 {
		return nil, fmt.Errorf("no tenants configured — check config.yaml and environment variables")
	}

	return cfg, nil
}

// TenantAliases returns the alias → tenant id routing map used by the
// intake handler.
func (c *Config) TenantAliases() map[string]string {
	out := make(map[string]string, len(c.Tenants))
	for _, t := range c.Tenants {
		out[t.Alias] = t.TenantID
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
