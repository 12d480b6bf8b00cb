// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package synthesizer

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	response string
	err      error
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return s.response, s.err
}

func newSynth(response string, err error) *Synthesizer {
	return New(&scriptedLLM{response: response, err: err},
		datatypes.DefaultSchema(), DefaultConfig())
}

func priorDataTurn(plan *datatypes.QueryPlan) []datatypes.Turn {
	return []datatypes.Turn{{
		ID:        "t0",
		Utterance: "show priority 1 incidents",
		Intent:    datatypes.IntentDataQuery,
		Plan:      plan,
		Answer:    "There are 3 priority 1 incidents.",
	}}
}

func TestSynthesize_ValidPlan(t *testing.T) {
	s := newSynth(`{"table":"incidents","aggregate":{"func":"count","field":"*"},"filters":[{"field":"priority","op":"eq","value":"critical"},{"field":"opened_at","op":"within","value":"this_month"}]}`, nil)

	plan, err := s.Synthesize(context.Background(),
		"How many critical incidents this month?", datatypes.IntentDataQuery, nil)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, "incidents", plan.Table)
	require.NotNil(t, plan.Aggregate)
	assert.Equal(t, datatypes.AggCount, plan.Aggregate.Func)
	assert.Len(t, plan.Filters, 2)
	// Default cap injected during validation.
	assert.Equal(t, datatypes.DefaultRowLimit, plan.Limit)
}

func TestSynthesize_FailsClosed(t *testing.T) {
	tests := []struct {
		name     string
		response string
		llmErr   error
	}{
		{name: "LLM unavailable", llmErr: errors.New("dial tcp: connection refused")},
		{name: "no JSON in output", response: "SELECT * FROM incidents"},
		{name: "unknown table", response: `{"table":"salaries"}`},
		{name: "unknown field", response: `{"table":"incidents","filters":[{"field":"cost","op":"eq","value":"1"}]}`},
		{name: "forbidden aggregate", response: `{"table":"incidents","aggregate":{"func":"stddev","field":"priority"}}`},
		{name: "forbidden operator", response: `{"table":"incidents","filters":[{"field":"priority","op":"regex","value":".*"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSynth(tt.response, tt.llmErr)
			plan, err := s.Synthesize(context.Background(), "question",
				datatypes.IntentDataQuery, nil)
			require.Error(t, err)
			assert.Nil(t, plan, "a failed synthesis must never yield a plan")
			_, ok := datatypes.AsSynthesisError(err)
			assert.True(t, ok, "error should be a SynthesisError, got %T", err)
		})
	}
}

func TestSynthesize_NonDataIntentRejected(t *testing.T) {
	s := newSynth(`{"table":"incidents"}`, nil)
	_, err := s.Synthesize(context.Background(), "hi", datatypes.IntentGreeting, nil)
	require.Error(t, err)
}

func TestSynthesize_FollowUpContinuity(t *testing.T) {
	prior := &datatypes.QueryPlan{
		Table:   "incidents",
		Filters: []datatypes.Predicate{{Field: "priority", Op: datatypes.OpEqual, Value: "1"}},
		Limit:   100,
	}

	// The model only mentions the new time constraint; the merged plan
	// must keep the prior table and priority filter.
	s := newSynth(`{"filters":[{"field":"opened_at","op":"within","value":"last_week"}]}`, nil)

	plan, err := s.Synthesize(context.Background(), "what about last week?",
		datatypes.IntentFollowUp, priorDataTurn(prior))
	require.NoError(t, err)

	assert.Equal(t, "incidents", plan.Table, "follow-up must retain the prior table")
	require.Len(t, plan.Filters, 2)
	assert.Equal(t, datatypes.Predicate{Field: "priority", Op: datatypes.OpEqual, Value: "1"}, plan.Filters[0])
	assert.Equal(t, datatypes.Predicate{Field: "opened_at", Op: datatypes.OpWithin, Value: "last_week"}, plan.Filters[1])

	// The prior turn's recorded plan must not have been mutated.
	assert.Len(t, prior.Filters, 1)
}

func TestMergeFollowUp(t *testing.T) {
	prior := &datatypes.QueryPlan{
		Table: "incidents",
		Filters: []datatypes.Predicate{
			{Field: "priority", Op: datatypes.OpEqual, Value: "critical"},
			{Field: "opened_at", Op: datatypes.OpWithin, Value: "this_month"},
		},
		Limit: 100,
	}

	t.Run("predicate on filtered field replaces", func(t *testing.T) {
		candidate := &datatypes.QueryPlan{
			Filters: []datatypes.Predicate{{Field: "opened_at", Op: datatypes.OpWithin, Value: "last_week"}},
		}
		merged := MergeFollowUp(prior, candidate)
		require.Len(t, merged.Filters, 2)
		assert.Equal(t, "last_week", merged.Filters[1].Value)
		assert.Equal(t, "critical", merged.Filters[0].Value)
	})

	t.Run("predicate on new field appends", func(t *testing.T) {
		candidate := &datatypes.QueryPlan{
			Filters: []datatypes.Predicate{{Field: "category", Op: datatypes.OpEqual, Value: "network"}},
		}
		merged := MergeFollowUp(prior, candidate)
		assert.Len(t, merged.Filters, 3)
	})

	t.Run("different table stands alone", func(t *testing.T) {
		candidate := &datatypes.QueryPlan{Table: "problems"}
		merged := MergeFollowUp(prior, candidate)
		assert.Equal(t, "problems", merged.Table)
		assert.Empty(t, merged.Filters, "no inheritance across tables")
	})

	t.Run("aggregate override", func(t *testing.T) {
		candidate := &datatypes.QueryPlan{
			Aggregate: &datatypes.AggregateSpec{Func: datatypes.AggCount, Field: "*"},
		}
		merged := MergeFollowUp(prior, candidate)
		require.NotNil(t, merged.Aggregate)
		assert.Equal(t, datatypes.AggCount, merged.Aggregate.Func)
		assert.Len(t, merged.Filters, 2, "filters inherited alongside new aggregate")
	})

	t.Run("nil candidate clones prior", func(t *testing.T) {
		merged := MergeFollowUp(prior, nil)
		assert.Equal(t, prior, merged)
		merged.Filters[0].Value = "low"
		assert.Equal(t, "critical", prior.Filters[0].Value, "clone must not alias prior")
	})
}
