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

package triage

import (
	"fmt"
	"math"
	"strings"

	"github.com/fieldline/triage/internal/models"
)

// Content is the human-readable body and typed payload for a new card.
type Content struct {
	Title         string
	Description   string
	Rationale     string
	ActionPayload models.ActionPayload
}

// categoryLabels maps each category to its card title prefix.
var categoryLabels = map[models.Category]string{
	models.CategoryAMCOrder:      "New AMC Order",
	models.CategoryOpportunity:   "New Business Opportunity",
	models.CategoryCase:          "Case Requiring Investigation",
	models.CategoryStatus:        "Status Request",
	models.CategoryScheduling:    "Scheduling Request",
	models.CategoryUpdates:       "Order Update",
	models.CategoryAP:            "Invoice to Pay",
	models.CategoryAR:            "Payment Received",
	models.CategoryInformation:   "Information",
	models.CategoryNotifications: "Notification",
	models.CategoryRemove:        "Unsubscribe Request",
	models.CategoryEscalate:      "Needs Review",
}

// suggestedActions is the fixed checklist attached to needs_human_response
// cards, per category.
var suggestedActions = map[models.Category][]string{
	models.CategoryAMCOrder: {
		"Review order details",
		"Create order in system",
		"Assign to appraiser",
		"Send acceptance confirmation",
	},
	models.CategoryCase: {
		"Review complaint details",
		"Investigate the issue",
		"Respond to client",
		"Escalate if needed",
	},
	models.CategoryAP: {
		"Review invoice",
		"Verify amount and details",
		"Approve for payment",
		"Process payment",
	},
	models.CategoryAR: {
		"Confirm payment received",
		"Update order status",
		"Send receipt",
		"Close invoice",
	},
	models.CategoryOpportunity: {
		"Review opportunity",
		"Prepare quote",
		"Send proposal",
		"Schedule follow-up",
	},
	models.CategoryStatus:        {"Look up order", "Provide status update"},
	models.CategoryScheduling:    {"Check availability", "Confirm appointment"},
	models.CategoryUpdates:       {"Review update", "Acknowledge"},
	models.CategoryInformation:   {"Read and file"},
	models.CategoryNotifications: {"Acknowledge"},
	models.CategoryRemove:        {"Process unsubscribe"},
	models.CategoryEscalate:      {"Review email", "Determine appropriate action", "Respond"},
}

// SuggestedActions returns the checklist for a category, or a generic
// fallback for categories the table does not know.
func SuggestedActions(category models.Category) []string {
	if actions, ok := suggestedActions[category]; ok {
		return actions
	}
	return []string{"Review and respond"}
}

// CategoryLabel returns the title prefix for a category. Unknown categories
// fall back to the escalation label so the card is still legible.
func CategoryLabel(category models.Category) string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}
	return categoryLabels[models.CategoryEscalate]
}

// BuildContent produces the title, description, rationale, and action
// payload for a card. Pure: the same inputs always produce the same content.
func BuildContent(email models.ClassifiedEmail, c models.Classification, cardType models.CardType) Content {
	return Content{
		Title:         fmt.Sprintf("%s: %s", CategoryLabel(c.Category), email.Subject),
		Description:   buildDescription(email, c),
		Rationale:     buildRationale(c),
		ActionPayload: buildPayload(email, c, cardType),
	}
}

func buildDescription(email models.ClassifiedEmail, c models.Classification) string {
	sender := email.From.Name
	if sender == "" {
		sender = email.From.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email from: %s\n", sender)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "Intent: %s\n", c.Intent)
	fmt.Fprintf(&b, "\n%s\n", email.Snippet)

	// One line per extracted entity; absent entities are omitted entirely.
	if c.Entities.OrderNumber != "" {
		fmt.Fprintf(&b, "\nOrder #: %s", c.Entities.OrderNumber)
	}
	if c.Entities.PropertyAddress != "" {
		fmt.Fprintf(&b, "\nProperty: %s", c.Entities.PropertyAddress)
	}
	if c.Entities.Amount != "" {
		fmt.Fprintf(&b, "\nAmount: $%s", c.Entities.Amount)
	}
	if c.Entities.RequestedAction != "" {
		fmt.Fprintf(&b, "\nAction: %s", c.Entities.RequestedAction)
	}

	return b.String()
}

func buildRationale(c models.Classification) string {
	pct := int(math.Round(c.Confidence * 100))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", c.Reasoning)
	fmt.Fprintf(&b, "Classification: %s (%d%% confident)", c.Category, pct)
	if Escalated(c) {
		b.WriteString("\nEscalated for human review due to low confidence.")
	}
	return b.String()
}

// Escalated reports whether the resolver routed this classification to a
// human because of the escalation rule rather than its category mapping.
func Escalated(c models.Classification) bool {
	return c.Category == models.CategoryEscalate || c.Confidence < models.AutoConfidenceThreshold
}

func buildPayload(email models.ClassifiedEmail, c models.Classification, cardType models.CardType) models.ActionPayload {
	if cardType == models.CardTypeReplyToEmail {
		return models.ReplyPayload{
			EmailID:        email.ID,
			ThreadID:       email.ThreadID,
			From:           email.From,
			Subject:        email.Subject,
			Classification: c,
			Category:       c.Category,
			Entities:       c.Entities,
			ShouldAutoSend: c.Confidence >= models.AutoConfidenceThreshold,
		}
	}

	// Everything else carries the full email context for a human.
	return models.HumanResponsePayload{
		EmailID:          email.ID,
		ThreadID:         email.ThreadID,
		From:             email.From,
		Subject:          email.Subject,
		Classification:   c,
		BodyText:         email.BodyText,
		BodyHTML:         email.BodyHTML,
		NeedsResponse:    true,
		SuggestedActions: SuggestedActions(c.Category),
	}
}
