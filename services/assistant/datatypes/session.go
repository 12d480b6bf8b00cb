// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ContextWindow is the number of recent turns supplied to the classifier
// and synthesizer as conversational context. Older turns stay in durable
// storage for audit but are not part of the active context.
const ContextWindow = 3

// Rating is a feedback rating.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"

	// RatingNone marks an entry created by a comment-only submission,
	// before any like/dislike arrives for the turn.
	RatingNone Rating = "none"
)

// Valid reports membership in the closed rating set.
func (r Rating) Valid() bool {
	return r == RatingLike || r == RatingDislike || r == RatingNone
}

// FeedbackEntry records user feedback against a specific turn. Entries
// are append-only and never mutate prior turns.
type FeedbackEntry struct {
	TurnID    string    `json:"turn_id"`
	Rating    Rating    `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-user aggregate of turns and feedback. The store is
// the durable owner across turns; the coordinator exclusively owns the
// in-memory copy while a turn is in flight.
type Session struct {
	UserID      string          `json:"user_id"`
	Turns       []Turn          `json:"turns"`
	Feedback    []FeedbackEntry `json:"feedback,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `json:"last_updated"`

	// Version is the optimistic concurrency token managed by the store.
	Version uint64 `json:"version"`
}

// NewSession creates an empty session for a user.
func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:      userID,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// AppendTurn appends a completed turn and bumps LastUpdated.
func (s *Session) AppendTurn(t Turn) {
	s.Turns = append(s.Turns, t)
	s.LastUpdated = time.Now().UTC()
}

// RecentTurns returns up to n most recent turns, oldest first.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// LastDataTurn returns the most recent turn that carries a query plan,
// or nil. Follow-up synthesis merges against this turn's plan.
func (s *Session) LastDataTurn() *Turn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Plan != nil {
			return &s.Turns[i]
		}
	}
	return nil
}

// FindTurn returns the turn with the given id, or nil.
func (s *Session) FindTurn(turnID string) *Turn {
	for i := range s.Turns {
		if s.Turns[i].ID == turnID {
			return &s.Turns[i]
		}
	}
	return nil
}

// AddFeedback records a feedback entry, deduplicating on
// (turn id, rating). A repeated submission updates the comment of the
// existing entry when a new comment is supplied and reports false;
// nothing is appended twice. This makes feedback submission idempotent.
//
// A comment-only submission (no rating) attaches the comment to the
// turn's most recent entry when one exists; otherwise it is stored
// under RatingNone until a rating arrives, which then upgrades that
// entry in place.
func (s *Session) AddFeedback(entry FeedbackEntry) bool {
	if entry.Rating == "" {
		entry.Rating = RatingNone
	}

	if entry.Rating == RatingNone {
		for i := len(s.Feedback) - 1; i >= 0; i-- {
			if s.Feedback[i].TurnID == entry.TurnID {
				if entry.Comment != "" {
					s.Feedback[i].Comment = entry.Comment
					s.LastUpdated = time.Now().UTC()
				}
				return false
			}
		}
		s.Feedback = append(s.Feedback, entry)
		s.LastUpdated = time.Now().UTC()
		return true
	}

	for i := range s.Feedback {
		if s.Feedback[i].TurnID == entry.TurnID && s.Feedback[i].Rating == entry.Rating {
			if entry.Comment != "" {
				s.Feedback[i].Comment = entry.Comment
				s.LastUpdated = time.Now().UTC()
			}
			return false
		}
	}
	for i := range s.Feedback {
		if s.Feedback[i].TurnID == entry.TurnID && s.Feedback[i].Rating == RatingNone {
			s.Feedback[i].Rating = entry.Rating
			if entry.Comment != "" {
				s.Feedback[i].Comment = entry.Comment
			}
			s.Feedback[i].Timestamp = entry.Timestamp
			s.LastUpdated = time.Now().UTC()
			return true
		}
	}
	s.Feedback = append(s.Feedback, entry)
	s.LastUpdated = time.Now().UTC()
	return true
}

// SessionSummary is the listing shape for session administration.
type SessionSummary struct {
	UserID        string    `json:"user_id"`
	TurnCount     int       `json:"turn_count"`
	FeedbackCount int       `json:"feedback_count"`
	LastUtterance string    `json:"last_utterance,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Summary derives the listing shape from a session.
func (s *Session) Summary() SessionSummary {
	sum := SessionSummary{
		UserID:        s.UserID,
		TurnCount:     len(s.Turns),
		FeedbackCount: len(s.Feedback),
		LastUpdated:   s.LastUpdated,
	}
	if len(s.Turns) > 0 {
		sum.LastUtterance = s.Turns[len(s.Turns)-1].Utterance
	}
	return sum
}
