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

// Package models defines the data structures shared across the triage service.
package models

// EmailAddress represents a sender with an address and optional display name.
type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ClassifiedEmail represents an inbound email as delivered by the external
// classifier, ready for triage. It is treated as immutable throughout the
// pipeline.
//
// This struct's JSON serialisation MUST match the intake contract the
// classifier service produces; field names follow its wire format.
type ClassifiedEmail struct {
	ID       string       `json:"id"`
	ThreadID string       `json:"thread_id"`
	From     EmailAddress `json:"from"`
	Subject  string       `json:"subject"`
	Snippet  string       `json:"snippet"`
	BodyText string       `json:"body_text"`
	BodyHTML string       `json:"body_html,omitempty"`
}
