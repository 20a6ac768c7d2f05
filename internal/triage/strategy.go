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

// Package triage implements the email-to-action decision policy: given a
// classifier verdict, it deterministically picks a card type, an initial
// workflow state and priority, and whether the card may be executed without
// human approval. It also builds the card's human-readable content and its
// typed action payload. The package is pure: no I/O, no clocks.
package triage

import "github.com/fieldline/triage/internal/models"

// Strategy is the resolver's routing decision for one classified email.
type Strategy struct {
	CardType    models.CardType
	State       models.State
	Priority    models.Priority
	AutoExecute bool
}

// rule pairs a predicate with the outcome applied when it matches.
type rule struct {
	match   func(models.Classification) bool
	outcome func(models.Classification) Strategy
}

// rules is evaluated top to bottom; the first match wins. Order is load
// bearing: the escalation rule must stay first so that low confidence
// always beats category-specific handling, no matter what categories are
// added below it.
var rules = []rule{
	{
		// ESCALATE, or any category the classifier is not sure about,
		// goes to a human.
		match: func(c models.Classification) bool {
			return c.Category == models.CategoryEscalate || c.Confidence < models.AutoConfidenceThreshold
		},
		outcome: func(models.Classification) Strategy {
			return Strategy{
				CardType: models.CardTypeNeedsHumanResponse,
				State:    models.StateInReview,
				Priority: models.PriorityMedium,
			}
		},
	},
	{
		// Routine correspondence at high confidence is answered
		// autonomously.
		match: func(c models.Classification) bool {
			switch c.Category {
			case models.CategoryStatus, models.CategoryScheduling, models.CategoryRemove, models.CategoryNotifications:
				return c.Confidence >= models.AutoConfidenceThreshold
			}
			return false
		},
		outcome: func(c models.Classification) Strategy {
			priority := models.PriorityMedium
			if c.Entities.Urgency == "high" {
				priority = models.PriorityHigh
			}
			return Strategy{
				CardType:    models.CardTypeReplyToEmail,
				State:       models.StateApproved,
				Priority:    priority,
				AutoExecute: true,
			}
		},
	},
	{
		// Opportunities and order updates get a drafted reply but always
		// wait for review.
		match: func(c models.Classification) bool {
			return c.Category == models.CategoryOpportunity || c.Category == models.CategoryUpdates
		},
		outcome: func(c models.Classification) Strategy {
			priority := models.PriorityMedium
			if c.Category == models.CategoryOpportunity {
				priority = models.PriorityHigh
			}
			return Strategy{
				CardType: models.CardTypeReplyToEmail,
				State:    models.StateInReview,
				Priority: priority,
			}
		},
	},
	{
		// Orders, cases, and money movement need a human working the item.
		match: func(c models.Classification) bool {
			switch c.Category {
			case models.CategoryAMCOrder, models.CategoryCase, models.CategoryAP, models.CategoryAR:
				return true
			}
			return false
		},
		outcome: func(c models.Classification) Strategy {
			priority := models.PriorityMedium
			if c.Category == models.CategoryAMCOrder || c.Category == models.CategoryCase {
				priority = models.PriorityHigh
			}
			return Strategy{
				CardType: models.CardTypeNeedsHumanResponse,
				State:    models.StateInReview,
				Priority: priority,
			}
		},
	},
}

// fallback covers INFORMATION and anything a future classifier version
// emits that no rule above recognises.
var fallback = Strategy{
	CardType: models.CardTypeReplyToEmail,
	State:    models.StateSuggested,
	Priority: models.PriorityLow,
}

// Resolve maps a classification to a routing strategy. It is total: every
// input produces an outcome.
func Resolve(c models.Classification) Strategy {
	for _, r := range rules {
		if r.match(c) {
			return r.outcome(c)
		}
	}
	return fallback
}
