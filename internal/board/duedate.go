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
	"fmt"
	"time"
)

// FormatDueDate renders a scheduled card's due date relative to now:
// "Today" for anything due now or earlier, "Tomorrow" for one calendar day
// ahead, "N days" for two to seven days ahead, and a short month/day date
// beyond that. Deterministic for a fixed (dueAt, now) pair; comparisons use
// calendar days in now's location, not 24-hour windows.
func FormatDueDate(dueAt, now time.Time) string {
	days := daysAhead(dueAt, now)

	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days <= 7:
		return fmt.Sprintf("%d days", days)
	default:
		return dueAt.Format("Jan 2")
	}
}

// daysAhead counts whole calendar days from now's date to dueAt's date.
// Julian day arithmetic rather than duration division: a midnight-to-midnight
// span crossing a DST transition is not a multiple of 24h.
func daysAhead(dueAt, now time.Time) int {
	due := dueAt.In(now.Location())
	return julianDay(due.Date()) - julianDay(now.Date())
}

// julianDay converts a calendar date to a day number (Fliegel & Van Flandern).
func julianDay(year int, month time.Month, day int) int {
	a := (14 - int(month)) / 12
	y := year + 4800 - a
	m := int(month) + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}
