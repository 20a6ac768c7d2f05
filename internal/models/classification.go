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

package models

// Category is the classifier's verdict on an email's business intent.
type Category string

// The twelve fixed categories the classifier emits.
const (
	CategoryAMCOrder      Category = "AMC_ORDER"
	CategoryOpportunity   Category = "OPPORTUNITY"
	CategoryCase          Category = "CASE"
	CategoryStatus        Category = "STATUS"
	CategoryScheduling    Category = "SCHEDULING"
	CategoryUpdates       Category = "UPDATES"
	CategoryAP            Category = "AP"
	CategoryAR            Category = "AR"
	CategoryInformation   Category = "INFORMATION"
	CategoryNotifications Category = "NOTIFICATIONS"
	CategoryRemove        Category = "REMOVE"
	CategoryEscalate      Category = "ESCALATE"
)

// AutoConfidenceThreshold is the hard autonomy cutoff: below it, every email
// is routed to a human regardless of category.
const AutoConfidenceThreshold = 0.95

// Entities holds structured values the classifier extracted from the email
// body. All fields are optional; an empty string means "not present".
type Entities struct {
	OrderNumber     string `json:"order_number,omitempty"`
	PropertyAddress string `json:"property_address,omitempty"`
	Amount          string `json:"amount,omitempty"`
	RequestedAction string `json:"requested_action,omitempty"`
	Urgency         string `json:"urgency,omitempty"`
}

// Classification is the external classifier's full verdict on an email.
// It is consumed as-is: the triage engine never re-derives category or
// confidence.
//
// ShouldEscalate is informational only. The binding escalation decision is
// recomputed by the strategy resolver from Category and Confidence rather
// than trusted from this flag.
type Classification struct {
	Category       Category `json:"category"`
	Confidence     float64  `json:"confidence"`
	Entities       Entities `json:"entities"`
	Intent         string   `json:"intent"`
	Reasoning      string   `json:"reasoning"`
	ShouldEscalate bool     `json:"should_escalate"`
}
