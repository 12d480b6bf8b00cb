// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides the data contracts for the assistant service.
//
// This file defines the QueryPlan: the backend-agnostic, validated
// representation of a data request. A plan that fails validation is never
// handed to the executor; the synthesizer fails closed instead of
// degrading to a partially valid plan.
package datatypes

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultRowLimit is injected into any plan that omits a limit.
	DefaultRowLimit = 100

	// MaxRowLimit caps the rows any single plan may request.
	MaxRowLimit = 500
)

// Operator is the closed set of predicate operators a plan may use.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "neq"
	OpGreater      Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLess         Operator = "lt"
	OpLessEqual    Operator = "lte"
	OpLike         Operator = "like"
	// OpWithin matches a named time range ("today", "this_week",
	// "this_month", "this_year", "last_week", "last_month", "last_year")
	// against a timestamp field. The executor expands it to a concrete
	// date range at translation time.
	OpWithin Operator = "within"
)

var validOperators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpGreater: true, OpGreaterEqual: true,
	OpLess: true, OpLessEqual: true,
	OpLike: true, OpWithin: true,
}

// TimeRanges are the named ranges OpWithin accepts.
var TimeRanges = map[string]bool{
	"today": true, "this_week": true, "this_month": true, "this_year": true,
	"last_week": true, "last_month": true, "last_year": true,
}

// AggregateFunc is the fixed safe set of aggregate functions.
type AggregateFunc string

const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
)

var validAggregates = map[AggregateFunc]bool{
	AggCount: true, AggSum: true, AggAvg: true, AggMin: true, AggMax: true,
}

// Predicate is a single filter condition.
type Predicate struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value string   `json:"value"`
}

// AggregateSpec describes an aggregation over a field. For AggCount the
// field may be "*".
type AggregateSpec struct {
	Func  AggregateFunc `json:"func"`
	Field string        `json:"field"`
}

// QueryPlan is the structured, backend-agnostic representation of a data
// request. Plans are produced by the synthesizer, validated against the
// schema allow-list, and only then handed to the executor.
type QueryPlan struct {
	Table     string         `json:"table"`
	Columns   []string       `json:"columns,omitempty"`
	Filters   []Predicate    `json:"filters,omitempty"`
	Aggregate *AggregateSpec `json:"aggregate,omitempty"`
	GroupBy   []string       `json:"group_by,omitempty"`
	OrderBy   string         `json:"order_by,omitempty"`
	Desc      bool           `json:"desc,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// Clone returns a deep copy. Follow-up merging mutates the copy, never
// the plan recorded on a prior turn.
func (p *QueryPlan) Clone() *QueryPlan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Columns = append([]string(nil), p.Columns...)
	cp.Filters = append([]Predicate(nil), p.Filters...)
	cp.GroupBy = append([]string(nil), p.GroupBy...)
	if p.Aggregate != nil {
		agg := *p.Aggregate
		cp.Aggregate = &agg
	}
	return &cp
}

// ColumnSchema describes one column of a backing table.
type ColumnSchema struct {
	Name string `yaml:"name" json:"name"`
	// Type is one of "string", "int", "float", "timestamp".
	Type string `yaml:"type" json:"type"`
	// Description is surfaced to the synthesizer prompt.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// TableSchema describes one table of the allow-list.
type TableSchema struct {
	Name    string         `yaml:"name" json:"name"`
	Columns []ColumnSchema `yaml:"columns" json:"columns"`
}

// Column returns the named column schema, or nil.
func (t *TableSchema) Column(name string) *ColumnSchema {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Schema is the read-only allow-list of tables and fields the assistant
// may query. It is shared across all concurrent turns and never mutated
// after startup.
type Schema struct {
	Tables map[string]TableSchema `yaml:"tables" json:"tables"`
}

// Table returns the named table schema, or nil.
func (s *Schema) Table(name string) *TableSchema {
	if s == nil {
		return nil
	}
	if t, ok := s.Tables[name]; ok {
		return &t
	}
	return nil
}

// PromptText renders the schema for inclusion in a synthesis prompt.
func (s *Schema) PromptText() string {
	var b strings.Builder
	for _, name := range sortedTableNames(s) {
		t := s.Tables[name]
		fmt.Fprintf(&b, "table %s:\n", name)
		for _, c := range t.Columns {
			if c.Description != "" {
				fmt.Fprintf(&b, "  %s (%s): %s\n", c.Name, c.Type, c.Description)
			} else {
				fmt.Fprintf(&b, "  %s (%s)\n", c.Name, c.Type)
			}
		}
	}
	return b.String()
}

func sortedTableNames(s *Schema) []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the plan against the schema allow-list and normalizes
// it in place:
//
//   - the table must be on the allow-list
//   - every referenced field (columns, filters, group by, order by,
//     aggregate) must resolve against the table schema
//   - the aggregate function and every operator must be in their safe sets
//   - OpWithin values must be known time range names on timestamp fields
//   - a missing limit gets DefaultRowLimit; limits above MaxRowLimit are
//     clamped
//
// A nil error means the plan is safe to execute.
func (p *QueryPlan) Validate(schema *Schema) error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	table := schema.Table(p.Table)
	if table == nil {
		return fmt.Errorf("table %q is not on the allow-list", p.Table)
	}
	for _, col := range p.Columns {
		if table.Column(col) == nil {
			return fmt.Errorf("unknown column %q on table %q", col, p.Table)
		}
	}
	for _, f := range p.Filters {
		col := table.Column(f.Field)
		if col == nil {
			return fmt.Errorf("unknown filter field %q on table %q", f.Field, p.Table)
		}
		if !validOperators[f.Op] {
			return fmt.Errorf("operator %q is not allowed", f.Op)
		}
		if f.Op == OpWithin {
			if col.Type != "timestamp" {
				return fmt.Errorf("within filter requires a timestamp field, %q is %s", f.Field, col.Type)
			}
			if !TimeRanges[f.Value] {
				return fmt.Errorf("unknown time range %q", f.Value)
			}
		}
	}
	for _, g := range p.GroupBy {
		if table.Column(g) == nil {
			return fmt.Errorf("unknown group-by field %q on table %q", g, p.Table)
		}
	}
	if p.OrderBy != "" && table.Column(p.OrderBy) == nil {
		return fmt.Errorf("unknown order-by field %q on table %q", p.OrderBy, p.Table)
	}
	if p.Aggregate != nil {
		if !validAggregates[p.Aggregate.Func] {
			return fmt.Errorf("aggregate function %q is not allowed", p.Aggregate.Func)
		}
		if p.Aggregate.Field != "*" && table.Column(p.Aggregate.Field) == nil {
			return fmt.Errorf("unknown aggregate field %q on table %q", p.Aggregate.Field, p.Table)
		}
		if p.Aggregate.Field == "*" && p.Aggregate.Func != AggCount {
			return fmt.Errorf("aggregate %q requires a named field", p.Aggregate.Func)
		}
	}
	if p.Limit <= 0 {
		p.Limit = DefaultRowLimit
	}
	if p.Limit > MaxRowLimit {
		p.Limit = MaxRowLimit
	}
	return nil
}

// HasFilterOn reports whether the plan already filters on the field.
func (p *QueryPlan) HasFilterOn(field string) bool {
	for _, f := range p.Filters {
		if f.Field == field {
			return true
		}
	}
	return false
}

// DefaultSchema returns the built-in incident/problem allow-list. The
// layout mirrors a ServiceNow-style export: one row per ticket with
// priority, state, category, assignment group and lifecycle timestamps.
func DefaultSchema() *Schema {
	ticketColumns := []ColumnSchema{
		{Name: "number", Type: "string", Description: "ticket number, e.g. INC0012345"},
		{Name: "priority", Type: "string", Description: "critical, high, moderate, or low"},
		{Name: "state", Type: "string", Description: "new, in_progress, resolved, or closed"},
		{Name: "category", Type: "string", Description: "e.g. network, database, hardware"},
		{Name: "assignment_group", Type: "string", Description: "owning team"},
		{Name: "short_description", Type: "string", Description: "one-line summary"},
		{Name: "opened_at", Type: "timestamp", Description: "when the ticket was created"},
		{Name: "resolved_at", Type: "timestamp", Description: "when the ticket was resolved, if it was"},
	}
	return &Schema{
		Tables: map[string]TableSchema{
			"incidents": {Name: "incidents", Columns: ticketColumns},
			"problems":  {Name: "problems", Columns: ticketColumns},
		},
	}
}
