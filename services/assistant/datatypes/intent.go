// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "strings"

// Intent is the closed-set classification of an utterance's purpose.
// Exactly one intent is assigned per turn.
type Intent string

const (
	IntentGreeting    Intent = "greeting"
	IntentDataQuery   Intent = "data_query"
	IntentFollowUp    Intent = "follow_up"
	IntentOutOfDomain Intent = "out_of_domain"
	IntentFeedback    Intent = "feedback"
)

// ParseIntent maps a label to an Intent. Unknown or empty labels map to
// IntentOutOfDomain so that classification stays total. A few aliases
// the models like to emit ("general", "query") are accepted.
func ParseIntent(label string) Intent {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "greeting", "hello":
		return IntentGreeting
	case "data_query", "query", "data":
		return IntentDataQuery
	case "follow_up", "followup":
		return IntentFollowUp
	case "feedback":
		return IntentFeedback
	default:
		return IntentOutOfDomain
	}
}

// IsData reports whether the intent requires query synthesis.
func (i Intent) IsData() bool {
	return i == IntentDataQuery || i == IntentFollowUp
}

// Valid reports membership in the closed intent set.
func (i Intent) Valid() bool {
	switch i {
	case IntentGreeting, IntentDataQuery, IntentFollowUp, IntentOutOfDomain, IntentFeedback:
		return true
	}
	return false
}
