// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package executor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow anchors time-range expansion so "this_month" is stable.
var fixedNow = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

func newTestExecutor(t *testing.T) (*Executor, *SQLiteBackend) {
	t.Helper()
	backend, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	tickets := []Ticket{
		{Number: "INC001", Priority: "critical", State: "open", Category: "network",
			AssignmentGroup: "noc", ShortDescription: "core router flapping",
			OpenedAt: fixedNow.AddDate(0, 0, -1)},
		{Number: "INC002", Priority: "critical", State: "resolved", Category: "database",
			AssignmentGroup: "dba", ShortDescription: "replica lag",
			OpenedAt: fixedNow.AddDate(0, 0, -3)},
		{Number: "INC003", Priority: "low", State: "open", Category: "network",
			AssignmentGroup: "noc", ShortDescription: "office wifi slow",
			OpenedAt: fixedNow.AddDate(0, -2, 0)},
	}
	require.NoError(t, backend.LoadSampleData(context.Background(), "incidents", tickets))

	e := New(backend, DefaultConfig())
	e.now = func() time.Time { return fixedNow }
	return e, backend
}

func TestExecute_CountWithFilters(t *testing.T) {
	e, _ := newTestExecutor(t)

	plan := &datatypes.QueryPlan{
		Table:     "incidents",
		Aggregate: &datatypes.AggregateSpec{Func: datatypes.AggCount, Field: "*"},
		Filters: []datatypes.Predicate{
			{Field: "priority", Op: datatypes.OpEqual, Value: "critical"},
			{Field: "opened_at", Op: datatypes.OpWithin, Value: "this_month"},
		},
	}
	require.NoError(t, plan.Validate(datatypes.DefaultSchema()))

	result, err := e.Execute(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, []string{"2"}, result.Rows[0])
	assert.False(t, result.Truncated)
}

func TestExecute_RowSelection(t *testing.T) {
	e, _ := newTestExecutor(t)

	plan := &datatypes.QueryPlan{
		Table:   "incidents",
		Columns: []string{"number", "short_description"},
		Filters: []datatypes.Predicate{
			{Field: "category", Op: datatypes.OpEqual, Value: "network"},
		},
		OrderBy: "number",
	}
	require.NoError(t, plan.Validate(datatypes.DefaultSchema()))

	result, err := e.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"number", "short_description"}, result.Columns)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "INC001", result.Rows[0][0])
	assert.Equal(t, "INC003", result.Rows[1][0])
}

func TestExecute_GroupedAggregate(t *testing.T) {
	e, _ := newTestExecutor(t)

	plan := &datatypes.QueryPlan{
		Table:     "incidents",
		Aggregate: &datatypes.AggregateSpec{Func: datatypes.AggCount, Field: "*"},
		GroupBy:   []string{"priority"},
		OrderBy:   "priority",
	}
	require.NoError(t, plan.Validate(datatypes.DefaultSchema()))

	result, err := e.Execute(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, []string{"critical", "2"}, result.Rows[0])
	assert.Equal(t, []string{"low", "1"}, result.Rows[1])
}

func TestExecute_EmptyResultIsNotAnError(t *testing.T) {
	e, _ := newTestExecutor(t)

	plan := &datatypes.QueryPlan{
		Table: "problems",
	}
	require.NoError(t, plan.Validate(datatypes.DefaultSchema()))

	result, err := e.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Zero(t, result.RowCount)
}

func TestExecute_Truncation(t *testing.T) {
	e, backend := newTestExecutor(t)

	var bulk []Ticket
	for i := 0; i < 5; i++ {
		bulk = append(bulk, Ticket{
			Number: "PRB" + string(rune('0'+i)), Priority: "low", State: "open",
			OpenedAt: fixedNow,
		})
	}
	require.NoError(t, backend.LoadSampleData(context.Background(), "problems", bulk))

	plan := &datatypes.QueryPlan{Table: "problems", Limit: 3}
	require.NoError(t, plan.Validate(datatypes.DefaultSchema()))

	result, err := e.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RowCount)
	assert.True(t, result.Truncated, "cap exceeded must set the truncation flag")
}

func TestExecute_TimeoutClassified(t *testing.T) {
	e, _ := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &datatypes.QueryPlan{Table: "incidents", Limit: 10}
	_, err := e.Execute(ctx, plan)
	require.Error(t, err)

	execErr, ok := datatypes.AsExecutionError(err)
	require.True(t, ok, "expected ExecutionError, got %T", err)
	assert.Equal(t, datatypes.ExecErrTimeout, execErr.Kind)
	assert.False(t, execErr.Retryable())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want datatypes.ExecErrorKind
	}{
		{"deadline", context.DeadlineExceeded, datatypes.ExecErrTimeout},
		{"missing table", errors.New("SQL logic error: no such table: salaries"), datatypes.ExecErrMalformed},
		{"syntax", errors.New("near \"FORM\": syntax error"), datatypes.ExecErrMalformed},
		{"closed database", sql.ErrConnDone, datatypes.ExecErrUnavailable},
		{"anything else", errors.New("disk I/O error"), datatypes.ExecErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestTimeRangeBounds(t *testing.T) {
	tests := []struct {
		name      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"today",
			time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)},
		{"this_month",
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"last_month",
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"this_year",
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		// June 15 2025 is a Sunday; the ISO week began Monday the 9th.
		{"this_week",
			time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)},
		{"last_week",
			time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := timeRangeBounds(tt.name, fixedNow)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
