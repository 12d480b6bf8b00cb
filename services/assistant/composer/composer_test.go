// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/llm"
	"github.com/stretchr/testify/assert"
)

type scriptedLLM struct {
	response string
	err      error
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return s.response, s.err
}

func countPlan() *datatypes.QueryPlan {
	return &datatypes.QueryPlan{
		Table:     "incidents",
		Aggregate: &datatypes.AggregateSpec{Func: datatypes.AggCount, Field: "*"},
		Filters: []datatypes.Predicate{
			{Field: "priority", Op: datatypes.OpEqual, Value: "critical"},
			{Field: "opened_at", Op: datatypes.OpWithin, Value: "this_month"},
		},
	}
}

func TestAnswer_Count(t *testing.T) {
	c := New(nil, DefaultConfig())

	result := &datatypes.ResultSet{Columns: []string{"value"}, Rows: [][]string{{"47"}}, RowCount: 1}
	answer := c.Answer(countPlan(), result)

	assert.Contains(t, answer, "47", "the counted value must appear verbatim")
	assert.Contains(t, answer, "priority critical")
	assert.Contains(t, answer, "this month")
}

func TestAnswer_CountOfOne(t *testing.T) {
	c := New(nil, DefaultConfig())
	result := &datatypes.ResultSet{Columns: []string{"value"}, Rows: [][]string{{"1"}}, RowCount: 1}
	answer := c.Answer(countPlan(), result)
	assert.True(t, strings.HasPrefix(answer, "There is 1 incident"), "got %q", answer)
}

func TestAnswer_Empty(t *testing.T) {
	c := New(nil, DefaultConfig())
	answer := c.Answer(countPlan(), &datatypes.ResultSet{})
	assert.Equal(t, "No matching records were found.", answer)
}

func TestAnswer_Rows(t *testing.T) {
	c := New(nil, DefaultConfig())
	plan := &datatypes.QueryPlan{Table: "incidents", Columns: []string{"number", "state"}}
	result := &datatypes.ResultSet{
		Columns:  []string{"number", "state"},
		Rows:     [][]string{{"INC001", "open"}, {"INC002", "resolved"}},
		RowCount: 2,
	}
	answer := c.Answer(plan, result)
	assert.Contains(t, answer, "Found 2 incidents")
	assert.Contains(t, answer, "INC001")
	assert.Contains(t, answer, "INC002")
}

func TestAnswer_RowsBounded(t *testing.T) {
	c := New(nil, DefaultConfig())
	plan := &datatypes.QueryPlan{Table: "problems"}

	result := &datatypes.ResultSet{Columns: []string{"number"}}
	for i := 0; i < MaxAnswerRows+5; i++ {
		result.Rows = append(result.Rows, []string{"PRB"})
		result.RowCount++
	}
	answer := c.Answer(plan, result)
	// Header line, column line, then at most MaxAnswerRows records.
	assert.LessOrEqual(t, len(strings.Split(answer, "\n")), MaxAnswerRows+2)
}

func TestAnswer_GroupedAggregate(t *testing.T) {
	c := New(nil, DefaultConfig())
	plan := &datatypes.QueryPlan{
		Table:     "incidents",
		Aggregate: &datatypes.AggregateSpec{Func: datatypes.AggCount, Field: "*"},
		GroupBy:   []string{"priority"},
	}
	result := &datatypes.ResultSet{
		Columns:  []string{"priority", "value"},
		Rows:     [][]string{{"critical", "2"}, {"low", "1"}},
		RowCount: 2,
	}
	answer := c.Answer(plan, result)
	assert.Contains(t, answer, "critical: 2")
	assert.Contains(t, answer, "low: 1")
}

func TestFailure_PerKindMessages(t *testing.T) {
	c := New(nil, DefaultConfig())

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"synthesis", &datatypes.SynthesisError{Reason: "unknown table"}, "rephrase"},
		{"timeout", &datatypes.ExecutionError{Kind: datatypes.ExecErrTimeout}, "too long"},
		{"unavailable", &datatypes.ExecutionError{Kind: datatypes.ExecErrUnavailable}, "temporarily unavailable"},
		{"malformed", &datatypes.ExecutionError{Kind: datatypes.ExecErrMalformed}, "rephrasing"},
		{"unknown", errors.New("boom"), "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := c.Failure(tt.err)
			assert.Contains(t, msg, tt.want)
			assert.NotContains(t, msg, "boom", "backend diagnostics must not leak")
		})
	}
}

func TestFeedbackHint(t *testing.T) {
	c := New(nil, DefaultConfig())
	assert.Contains(t, c.FeedbackHint(), "like/dislike")
}

func TestGreeting(t *testing.T) {
	t.Run("LLM reply used when available", func(t *testing.T) {
		c := New(&scriptedLLM{response: "Hi! What would you like to know?"}, DefaultConfig())
		assert.Equal(t, "Hi! What would you like to know?", c.Greeting(context.Background(), "hello"))
	})

	t.Run("falls back on error", func(t *testing.T) {
		c := New(&scriptedLLM{err: errors.New("connection refused")}, DefaultConfig())
		assert.Contains(t, c.Greeting(context.Background(), "hello"), "Hello!")
	})

	t.Run("falls back without a client", func(t *testing.T) {
		c := New(nil, DefaultConfig())
		assert.Contains(t, c.Greeting(context.Background(), "hello"), "incident")
	})
}
