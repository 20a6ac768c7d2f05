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

package backfill

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/fieldline/triage/internal/models"
	"github.com/fieldline/triage/internal/pipeline"
)

type mockRunner struct {
	mu      sync.Mutex
	emails  []models.ClassifiedEmail
	sources map[string]uuid.UUID
	results map[string]pipeline.Result
}

func (m *mockRunner) CreateCardsFromEmails(
	_ context.Context,
	_ string,
	emails []models.ClassifiedEmail,
	_ map[string]models.Classification,
	sourceIDs map[string]uuid.UUID,
) pipeline.BatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = emails
	m.sources = sourceIDs
	if m.results == nil {
		m.results = make(map[string]pipeline.Result)
		for _, e := range emails {
			m.results[e.ID] = pipeline.Result{CardID: uuid.New()}
		}
	}
	return pipeline.BatchResult{Results: m.results}
}

type mockSaver struct{}

func (mockSaver) SaveEmail(_ context.Context, _ string, _ models.ClassifiedEmail) (uuid.UUID, error) {
	return uuid.New(), nil
}

const exportJSON = `[
	{"email":{"id":"m1","from":{"email":"a@x.test"},"subject":"s1"},
	 "classification":{"category":"AMC_ORDER","confidence":0.99}},
	{"email":{"id":"m2","from":{"email":"b@x.test"},"subject":"s2"},
	 "classification":{"category":"STATUS","confidence":0.97}},
	{"email":{"id":"","subject":"broken"},
	 "classification":{"category":"STATUS","confidence":0.9}}
]`

// TestRun_ImportsExportFile verifies the importer parses an export file,
// persists sources, and drives the batch.
func TestRun_ImportsExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(exportJSON), 0o600); err != nil {
		t.Fatalf("write export file: %v", err)
	}

	runner := &mockRunner{}
	r := NewRunner(runner, mockSaver{})

	result, err := r.Run(context.Background(), "t1", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Total != 3 {
		t.Errorf("total = %d, want 3", result.Total)
	}
	if result.Created != 2 {
		t.Errorf("created = %d, want 2", result.Created)
	}
	// The item without an email id never reaches the batch.
	if len(runner.emails) != 2 {
		t.Errorf("batch received %d emails, want 2", len(runner.emails))
	}
	if len(runner.sources) != 2 {
		t.Errorf("batch received %d source ids, want 2", len(runner.sources))
	}
}

// TestRun_MissingFile verifies a bad path surfaces as an error, not a
// silent empty run.
func TestRun_MissingFile(t *testing.T) {
	r := NewRunner(&mockRunner{}, mockSaver{})

	if _, err := r.Run(context.Background(), "t1", "/does/not/exist.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestRun_MalformedFile verifies invalid JSON is rejected.
func TestRun_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not an array"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	r := NewRunner(&mockRunner{}, mockSaver{})
	if _, err := r.Run(context.Background(), "t1", path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}
