// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
)

func TestQueryPlanValidate(t *testing.T) {
	schema := DefaultSchema()

	tests := []struct {
		name    string
		plan    QueryPlan
		wantErr string
	}{
		{
			name: "valid filter plan",
			plan: QueryPlan{
				Table:   "incidents",
				Filters: []Predicate{{Field: "priority", Op: OpEqual, Value: "critical"}},
			},
		},
		{
			name: "valid aggregate plan",
			plan: QueryPlan{
				Table:     "incidents",
				Aggregate: &AggregateSpec{Func: AggCount, Field: "*"},
				Filters: []Predicate{
					{Field: "priority", Op: OpEqual, Value: "critical"},
					{Field: "opened_at", Op: OpWithin, Value: "this_month"},
				},
			},
		},
		{
			name:    "unknown table rejected",
			plan:    QueryPlan{Table: "users"},
			wantErr: "not on the allow-list",
		},
		{
			name: "unknown filter field rejected",
			plan: QueryPlan{
				Table:   "incidents",
				Filters: []Predicate{{Field: "password", Op: OpEqual, Value: "x"}},
			},
			wantErr: "unknown filter field",
		},
		{
			name: "unknown column rejected",
			plan: QueryPlan{
				Table:   "problems",
				Columns: []string{"number", "secret_notes"},
			},
			wantErr: "unknown column",
		},
		{
			name: "disallowed operator rejected",
			plan: QueryPlan{
				Table:   "incidents",
				Filters: []Predicate{{Field: "priority", Op: Operator("regex"), Value: ".*"}},
			},
			wantErr: "not allowed",
		},
		{
			name: "disallowed aggregate rejected",
			plan: QueryPlan{
				Table:     "incidents",
				Aggregate: &AggregateSpec{Func: AggregateFunc("median"), Field: "priority"},
			},
			wantErr: "not allowed",
		},
		{
			name: "within on non-timestamp rejected",
			plan: QueryPlan{
				Table:   "incidents",
				Filters: []Predicate{{Field: "priority", Op: OpWithin, Value: "this_week"}},
			},
			wantErr: "timestamp",
		},
		{
			name: "unknown time range rejected",
			plan: QueryPlan{
				Table:   "incidents",
				Filters: []Predicate{{Field: "opened_at", Op: OpWithin, Value: "next_decade"}},
			},
			wantErr: "unknown time range",
		},
		{
			name: "star aggregate requires count",
			plan: QueryPlan{
				Table:     "incidents",
				Aggregate: &AggregateSpec{Func: AggSum, Field: "*"},
			},
			wantErr: "named field",
		},
		{
			name: "unknown group-by rejected",
			plan: QueryPlan{
				Table:     "incidents",
				Aggregate: &AggregateSpec{Func: AggCount, Field: "*"},
				GroupBy:   []string{"owner"},
			},
			wantErr: "unknown group-by",
		},
		{
			name:    "unknown order-by rejected",
			plan:    QueryPlan{Table: "incidents", OrderBy: "severity"},
			wantErr: "unknown order-by",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate(schema)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate returned unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate accepted an invalid plan")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestQueryPlanValidate_LimitInjection(t *testing.T) {
	schema := DefaultSchema()

	t.Run("missing limit gets default", func(t *testing.T) {
		plan := QueryPlan{Table: "incidents"}
		if err := plan.Validate(schema); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if plan.Limit != DefaultRowLimit {
			t.Errorf("Limit = %d, want %d", plan.Limit, DefaultRowLimit)
		}
	})

	t.Run("oversized limit clamped", func(t *testing.T) {
		plan := QueryPlan{Table: "incidents", Limit: 10_000}
		if err := plan.Validate(schema); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if plan.Limit != MaxRowLimit {
			t.Errorf("Limit = %d, want %d", plan.Limit, MaxRowLimit)
		}
	})

	t.Run("explicit limit preserved", func(t *testing.T) {
		plan := QueryPlan{Table: "incidents", Limit: 25}
		if err := plan.Validate(schema); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if plan.Limit != 25 {
			t.Errorf("Limit = %d, want 25", plan.Limit)
		}
	})
}

func TestQueryPlanClone(t *testing.T) {
	orig := &QueryPlan{
		Table:     "incidents",
		Filters:   []Predicate{{Field: "priority", Op: OpEqual, Value: "1"}},
		Aggregate: &AggregateSpec{Func: AggCount, Field: "*"},
	}
	cp := orig.Clone()
	cp.Filters[0].Value = "2"
	cp.Filters = append(cp.Filters, Predicate{Field: "state", Op: OpEqual, Value: "new"})
	cp.Aggregate.Func = AggMax

	if orig.Filters[0].Value != "1" {
		t.Error("mutating the clone's filters changed the original")
	}
	if len(orig.Filters) != 1 {
		t.Error("appending to the clone's filters changed the original")
	}
	if orig.Aggregate.Func != AggCount {
		t.Error("mutating the clone's aggregate changed the original")
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
	}{
		{"greeting", IntentGreeting},
		{"data_query", IntentDataQuery},
		{"DATA_QUERY", IntentDataQuery},
		{"follow_up", IntentFollowUp},
		{"followup", IntentFollowUp},
		{"feedback", IntentFeedback},
		{"out_of_domain", IntentOutOfDomain},
		{"", IntentOutOfDomain},
		{"write me a poem", IntentOutOfDomain},
	}
	for _, tt := range tests {
		if got := ParseIntent(tt.in); got != tt.want {
			t.Errorf("ParseIntent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSchemaPromptText(t *testing.T) {
	text := DefaultSchema().PromptText()
	for _, want := range []string{"table incidents:", "table problems:", "priority", "opened_at"} {
		if !strings.Contains(text, want) {
			t.Errorf("PromptText missing %q:\n%s", want, text)
		}
	}
}
