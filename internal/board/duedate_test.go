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
	"testing"
	"time"
)

// TestFormatDueDate verifies the relative rendering table.
func TestFormatDueDate(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		dueAt time.Time
		want  string
	}{
		{"due now", now, "Today"},
		{"overdue", now.Add(-48 * time.Hour), "Today"},
		{"later today", now.Add(3 * time.Hour), "Today"},
		{"tomorrow", now.AddDate(0, 0, 1), "Tomorrow"},
		{"tomorrow early morning", time.Date(2026, time.March, 11, 1, 0, 0, 0, time.UTC), "Tomorrow"},
		{"two days", now.AddDate(0, 0, 2), "2 days"},
		{"five days", now.AddDate(0, 0, 5), "5 days"},
		{"seven days", now.AddDate(0, 0, 7), "7 days"},
		{"eight days", now.AddDate(0, 0, 8), "Mar 18"},
		{"thirty days", now.AddDate(0, 0, 30), "Apr 9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDueDate(tt.dueAt, now); got != tt.want {
				t.Errorf("FormatDueDate(%s) = %q, want %q", tt.dueAt, got, tt.want)
			}
		})
	}
}

// TestFormatDueDate_AcrossDSTTransition verifies calendar-day counting in a
// location whose midnight-to-midnight span is not 24 hours. On the US
// spring-forward day the next midnight is only 23h away; duration division
// would truncate that to zero days.
func TestFormatDueDate_AcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2026-03-08 springs forward in America/New_York (23h day);
	// 2026-11-01 falls back (25h day).
	springForward := time.Date(2026, time.March, 8, 10, 0, 0, 0, loc)
	fallBack := time.Date(2026, time.November, 1, 10, 0, 0, 0, loc)

	tests := []struct {
		name  string
		now   time.Time
		dueAt time.Time
		want  string
	}{
		{"spring forward, one calendar day ahead", springForward, time.Date(2026, time.March, 9, 12, 0, 0, 0, loc), "Tomorrow"},
		{"spring forward, same day", springForward, time.Date(2026, time.March, 8, 23, 0, 0, 0, loc), "Today"},
		{"spring forward, three days spanning the transition", springForward, time.Date(2026, time.March, 11, 8, 0, 0, 0, loc), "3 days"},
		{"fall back, one calendar day ahead", fallBack, time.Date(2026, time.November, 2, 12, 0, 0, 0, loc), "Tomorrow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDueDate(tt.dueAt, tt.now); got != tt.want {
				t.Errorf("FormatDueDate(%s) = %q, want %q", tt.dueAt, got, tt.want)
			}
		})
	}
}

// TestFormatDueDate_Deterministic verifies repeated calls with the same
// inputs agree.
func TestFormatDueDate_Deterministic(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	dueAt := now.AddDate(0, 0, 3)

	first := FormatDueDate(dueAt, now)
	for i := 0; i < 5; i++ {
		if got := FormatDueDate(dueAt, now); got != first {
			t.Fatalf("call %d = %q, first = %q", i, got, first)
		}
	}
}
