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

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CardType identifies what kind of work a card represents.
type CardType string

// Card types. The triage pipeline only produces reply_to_email and
// needs_human_response; create_task and send_email are reserved for cards
// created by other producers (the agent planner, manual entry).
const (
	CardTypeReplyToEmail       CardType = "reply_to_email"
	CardTypeNeedsHumanResponse CardType = "needs_human_response"
	CardTypeCreateTask         CardType = "create_task"
	CardTypeSendEmail          CardType = "send_email"
)

// State is a card's position in the workflow.
type State string

// Workflow states.
const (
	StateScheduled State = "scheduled"
	StateSuggested State = "suggested"
	StateInReview  State = "in_review"
	StateApproved  State = "approved"
	StateExecuting State = "executing"
	StateDone      State = "done"
	StateBlocked   State = "blocked"
	StateRejected  State = "rejected"
)

// Priority orders cards within a board column.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Card is the persisted work item produced by triage. State is the only
// field consumers mutate after creation; everything else is fixed at insert.
type Card struct {
	ID              uuid.UUID     `json:"id"`
	TenantID        string        `json:"tenant_id"`
	ClientID        *uuid.UUID    `json:"client_id,omitempty"`
	ContactID       uuid.UUID     `json:"contact_id"`
	SourceMessageID string        `json:"source_message_id"`
	SourceThreadID  string        `json:"source_thread_id"`
	Category        Category      `json:"category"`
	Type            CardType      `json:"type"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Rationale       string        `json:"rationale"`
	Priority        Priority      `json:"priority"`
	State           State         `json:"state"`
	ActionPayload   ActionPayload `json:"-"`
	DueAt           *time.Time    `json:"due_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ExecutedAt      *time.Time    `json:"executed_at,omitempty"`
}

// MarshalJSON renders the card with its payload envelope inlined so API
// consumers see the kind discriminator.
func (c Card) MarshalJSON() ([]byte, error) {
	type alias Card
	out := struct {
		alias
		ActionPayload json.RawMessage `json:"action_payload,omitempty"`
	}{alias: alias(c)}

	if c.ActionPayload != nil {
		data, err := MarshalActionPayload(c.ActionPayload)
		if err != nil {
			return nil, err
		}
		out.ActionPayload = data
	}
	return json.Marshal(out)
}

// ActionPayload is the type-specific data a card carries for whatever
// process eventually executes it. It is a closed union: exactly one variant
// per card type this pipeline produces. The workflow board treats it as
// opaque.
type ActionPayload interface {
	Kind() CardType
	isActionPayload()
}

// ReplyPayload is the action payload for reply_to_email cards.
type ReplyPayload struct {
	EmailID        string         `json:"email_id"`
	ThreadID       string         `json:"thread_id"`
	From           EmailAddress   `json:"from"`
	Subject        string         `json:"subject"`
	Classification Classification `json:"classification"`
	Category       Category       `json:"category"`
	Entities       Entities       `json:"entities"`
	ShouldAutoSend bool           `json:"should_auto_send"`
}

// Kind returns the card type this payload belongs to.
func (ReplyPayload) Kind() CardType { return CardTypeReplyToEmail }

func (ReplyPayload) isActionPayload() {}

// HumanResponsePayload is the action payload for needs_human_response cards.
// It carries the full email context plus a per-category checklist so a human
// can act without re-opening the source message.
type HumanResponsePayload struct {
	EmailID          string         `json:"email_id"`
	ThreadID         string         `json:"thread_id"`
	From             EmailAddress   `json:"from"`
	Subject          string         `json:"subject"`
	Classification   Classification `json:"classification"`
	BodyText         string         `json:"body_text"`
	BodyHTML         string         `json:"body_html,omitempty"`
	NeedsResponse    bool           `json:"needs_response"`
	SuggestedActions []string       `json:"suggested_actions"`
}

// Kind returns the card type this payload belongs to.
func (HumanResponsePayload) Kind() CardType { return CardTypeNeedsHumanResponse }

func (HumanResponsePayload) isActionPayload() {}

// payloadEnvelope wraps a payload with a discriminator so variants survive a
// round trip through the JSONB column.
type payloadEnvelope struct {
	Kind    CardType        `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalActionPayload encodes a payload variant with its kind discriminator.
func MarshalActionPayload(p ActionPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal action payload: nil payload")
	}
	inner, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind(), Payload: inner})
}

// UnmarshalActionPayload decodes a payload variant by its kind discriminator.
func UnmarshalActionPayload(data []byte) (ActionPayload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	switch env.Kind {
	case CardTypeReplyToEmail:
		var p ReplyPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode reply payload: %w", err)
		}
		return p, nil
	case CardTypeNeedsHumanResponse:
		var p HumanResponsePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode human response payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", env.Kind)
	}
}
