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

// Package dedup provides source-message deduplication using a Redis SET
// with TTL. Historically a message re-delivered to the triage pipeline
// created a second card; this filter is the opt-in hook that tightens that
// without touching the card table's contract. It stays disabled unless
// configured on.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long we remember a triaged message ID. Classifier
	// re-deliveries cluster within hours of the original, so 24h covers
	// them with margin.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces dedup keys in Redis.
	keyPrefix = "triage:seen:"
)

// Filter tracks which source messages have already been triaged.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// IsNew returns true if the message ID has NOT been triaged for this tenant
// before. If true, the message is marked as seen atomically (SETNX). Keys
// are tenant-scoped inside the filter: the same message ID delivered to two
// tenants is new to each.
func (f *Filter) IsNew(ctx context.Context, tenantID, messageID string) (bool, error) {
	key := fmt.Sprintf("%s%s:%s", keyPrefix, tenantID, messageID)

	// SET NX = set only if key does not exist. Returns true if the key was set.
	set, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}

	return set, nil
}
