// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"testing"
	"time"
)

func makeTurn(id string, intent Intent, plan *QueryPlan) Turn {
	return Turn{
		ID:        id,
		Utterance: "utterance " + id,
		Intent:    intent,
		Plan:      plan,
		Answer:    "answer " + id,
		Timestamp: time.Now().UTC(),
	}
}

func TestSessionRecentTurns(t *testing.T) {
	s := NewSession("alice")
	for i := 0; i < 5; i++ {
		s.AppendTurn(makeTurn(fmt.Sprintf("t%d", i), IntentDataQuery, nil))
	}

	recent := s.RecentTurns(3)
	if len(recent) != 3 {
		t.Fatalf("RecentTurns(3) returned %d turns", len(recent))
	}
	if recent[0].ID != "t2" || recent[2].ID != "t4" {
		t.Errorf("RecentTurns window wrong: %s..%s", recent[0].ID, recent[2].ID)
	}

	if got := s.RecentTurns(10); len(got) != 5 {
		t.Errorf("RecentTurns(10) returned %d turns, want all 5", len(got))
	}
	if got := s.RecentTurns(0); got != nil {
		t.Errorf("RecentTurns(0) should be nil, got %v", got)
	}
}

func TestSessionLastDataTurn(t *testing.T) {
	s := NewSession("bob")
	if s.LastDataTurn() != nil {
		t.Fatal("empty session should have no data turn")
	}

	plan := &QueryPlan{Table: "incidents"}
	s.AppendTurn(makeTurn("t0", IntentDataQuery, plan))
	s.AppendTurn(makeTurn("t1", IntentGreeting, nil))
	s.AppendTurn(makeTurn("t2", IntentOutOfDomain, nil))

	got := s.LastDataTurn()
	if got == nil || got.ID != "t0" {
		t.Errorf("LastDataTurn = %v, want turn t0", got)
	}
}

func TestSessionAddFeedback_Idempotent(t *testing.T) {
	s := NewSession("carol")
	s.AppendTurn(makeTurn("t0", IntentDataQuery, nil))

	entry := FeedbackEntry{TurnID: "t0", Rating: RatingLike, Timestamp: time.Now().UTC()}
	if !s.AddFeedback(entry) {
		t.Fatal("first AddFeedback should report a new entry")
	}
	if s.AddFeedback(entry) {
		t.Fatal("duplicate AddFeedback should report an existing entry")
	}
	if len(s.Feedback) != 1 {
		t.Fatalf("duplicate submission stored %d entries, want 1", len(s.Feedback))
	}

	// Duplicate with a comment updates the stored entry in place.
	withComment := entry
	withComment.Comment = "very helpful"
	if s.AddFeedback(withComment) {
		t.Fatal("comment update should not append a new entry")
	}
	if len(s.Feedback) != 1 || s.Feedback[0].Comment != "very helpful" {
		t.Errorf("comment not merged into existing entry: %+v", s.Feedback)
	}

	// A different rating for the same turn is a distinct entry.
	if !s.AddFeedback(FeedbackEntry{TurnID: "t0", Rating: RatingDislike}) {
		t.Fatal("different rating should append")
	}
	if len(s.Feedback) != 2 {
		t.Fatalf("expected 2 entries after distinct rating, got %d", len(s.Feedback))
	}
}

func TestSessionAddFeedback_CommentOnly(t *testing.T) {
	t.Run("attaches to the turn's existing entry", func(t *testing.T) {
		s := NewSession("erin")
		s.AppendTurn(makeTurn("t0", IntentDataQuery, nil))
		s.AddFeedback(FeedbackEntry{TurnID: "t0", Rating: RatingLike})

		if s.AddFeedback(FeedbackEntry{TurnID: "t0", Comment: "nice and fast"}) {
			t.Fatal("comment-only submission should not append beside an existing entry")
		}
		if len(s.Feedback) != 1 {
			t.Fatalf("stored %d entries, want 1", len(s.Feedback))
		}
		if s.Feedback[0].Rating != RatingLike || s.Feedback[0].Comment != "nice and fast" {
			t.Errorf("comment not merged into rated entry: %+v", s.Feedback[0])
		}
	})

	t.Run("stored under none when no entry exists", func(t *testing.T) {
		s := NewSession("erin")
		s.AppendTurn(makeTurn("t0", IntentDataQuery, nil))

		if !s.AddFeedback(FeedbackEntry{TurnID: "t0", Comment: "just a comment"}) {
			t.Fatal("first comment-only submission should create an entry")
		}
		if len(s.Feedback) != 1 {
			t.Fatalf("stored %d entries, want 1", len(s.Feedback))
		}
		if s.Feedback[0].Rating != RatingNone || !s.Feedback[0].Rating.Valid() {
			t.Errorf("comment-only entry stored rating %q, want the none sentinel", s.Feedback[0].Rating)
		}
	})

	t.Run("later rating upgrades the none entry in place", func(t *testing.T) {
		s := NewSession("erin")
		s.AppendTurn(makeTurn("t0", IntentDataQuery, nil))
		s.AddFeedback(FeedbackEntry{TurnID: "t0", Comment: "just a comment"})

		if !s.AddFeedback(FeedbackEntry{TurnID: "t0", Rating: RatingDislike}) {
			t.Fatal("first rating for the turn should report a new rating")
		}
		if len(s.Feedback) != 1 {
			t.Fatalf("stored %d entries, want 1", len(s.Feedback))
		}
		if s.Feedback[0].Rating != RatingDislike || s.Feedback[0].Comment != "just a comment" {
			t.Errorf("none entry not upgraded: %+v", s.Feedback[0])
		}
	})
}

func TestSessionSummary(t *testing.T) {
	s := NewSession("dave")
	s.AppendTurn(makeTurn("t0", IntentGreeting, nil))
	s.AppendTurn(makeTurn("t1", IntentDataQuery, nil))
	s.AddFeedback(FeedbackEntry{TurnID: "t1", Rating: RatingLike})

	sum := s.Summary()
	if sum.UserID != "dave" || sum.TurnCount != 2 || sum.FeedbackCount != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.LastUtterance != "utterance t1" {
		t.Errorf("LastUtterance = %q", sum.LastUtterance)
	}
}

func TestQueryRequestValidate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		req := QueryRequest{UserID: "alice", UserQuery: "How many incidents this month?"}
		if err := req.Validate(); err != nil {
			t.Errorf("valid request rejected: %v", err)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		req := QueryRequest{UserQuery: "hello"}
		if err := req.Validate(); err == nil {
			t.Error("request without user_id accepted")
		}
	})

	t.Run("oversized utterance", func(t *testing.T) {
		big := make([]byte, MaxUtteranceBytes+1)
		for i := range big {
			big[i] = 'a'
		}
		req := QueryRequest{UserID: "alice", UserQuery: string(big)}
		if err := req.Validate(); err == nil {
			t.Error("oversized utterance accepted")
		}
	})
}

func TestFeedbackRequestValidate(t *testing.T) {
	const turnID = "550e8400-e29b-41d4-a716-446655440000"

	t.Run("valid like", func(t *testing.T) {
		req := FeedbackRequest{UserID: "alice", TurnID: turnID, Rating: "like"}
		if err := req.Validate(); err != nil {
			t.Errorf("valid feedback rejected: %v", err)
		}
	})

	t.Run("invalid rating", func(t *testing.T) {
		req := FeedbackRequest{UserID: "alice", TurnID: turnID, Rating: "meh"}
		if err := req.Validate(); err == nil {
			t.Error("unknown rating accepted")
		}
	})

	t.Run("non-uuid turn reference", func(t *testing.T) {
		req := FeedbackRequest{UserID: "alice", TurnID: "turn-1", Rating: "like"}
		if err := req.Validate(); err == nil {
			t.Error("non-uuid turn_id accepted")
		}
	})
}
