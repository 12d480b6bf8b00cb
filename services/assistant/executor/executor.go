// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package executor runs validated query plans against the data backend.
//
// Responsibilities, per the component contract:
//
//   - translate a validated plan into the backend's SQL form
//   - enforce a timeout and the plan's row cap
//   - classify backend failures into the fixed taxonomy (timeout,
//     backend_unavailable, malformed) without leaking backend error
//     text into the answer path
//
// The executor never retries; retry policy belongs to the coordinator.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("opspilot.assistant.executor")

// Config controls execution limits.
type Config struct {
	// Timeout bounds each backend call. Default 20s.
	Timeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Timeout: 20 * time.Second}
}

// Executor translates plans to SQL and runs them. Safe for concurrent
// use; the backend handles its own connection pooling.
type Executor struct {
	backend Backend
	config  Config

	// now is swappable for deterministic time-range tests.
	now func() time.Time
}

// New creates an Executor over the given backend.
func New(backend Backend, config Config) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	return &Executor{backend: backend, config: config, now: time.Now}
}

// Execute runs a validated plan and returns a bounded result set. Any
// failure is returned as a *datatypes.ExecutionError; the caller never
// sees raw backend diagnostics.
//
// The caller is responsible for only passing plans that already passed
// schema validation; Execute interpolates identifiers on that basis.
func (e *Executor) Execute(ctx context.Context, plan *datatypes.QueryPlan) (*datatypes.ResultSet, error) {
	ctx, span := tracer.Start(ctx, "Executor.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("plan.table", plan.Table))

	query, args := e.translate(plan)
	slog.Debug("executing plan", "table", plan.Table, "sql", query)

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	rows, err := e.backend.Query(ctx, query, args...)
	if err != nil {
		execErr := classify(err)
		span.SetStatus(codes.Error, string(execErr.Kind))
		slog.Error("backend query failed", "kind", execErr.Kind, "error", err)
		return nil, execErr
	}
	defer rows.Close()

	result, err := collect(rows, plan.Limit)
	if err != nil {
		execErr := classify(err)
		span.SetStatus(codes.Error, string(execErr.Kind))
		slog.Error("backend row scan failed", "kind", execErr.Kind, "error", err)
		return nil, execErr
	}

	span.SetAttributes(attribute.Int("result.rows", result.RowCount))
	return result, nil
}

// Ping reports backend reachability (used by the health endpoint).
func (e *Executor) Ping(ctx context.Context) error {
	return e.backend.Ping(ctx)
}

// SQL renders the parameterized statement a plan translates to. Used
// for response transparency and logging, not for execution.
func (e *Executor) SQL(plan *datatypes.QueryPlan) string {
	query, _ := e.translate(plan)
	return query
}

// translate renders the plan as parameterized SQL. Identifiers come
// from the validated plan and are therefore schema members; values are
// always bound.
func (e *Executor) translate(plan *datatypes.QueryPlan) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	switch {
	case plan.Aggregate != nil:
		for _, g := range plan.GroupBy {
			b.WriteString(g)
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s(%s) AS value", plan.Aggregate.Func, plan.Aggregate.Field)
	case len(plan.Columns) > 0:
		b.WriteString(strings.Join(plan.Columns, ", "))
	default:
		b.WriteString("*")
	}
	fmt.Fprintf(&b, " FROM %s", plan.Table)

	var conds []string
	for _, f := range plan.Filters {
		switch f.Op {
		case datatypes.OpWithin:
			start, end := timeRangeBounds(f.Value, e.now())
			conds = append(conds, fmt.Sprintf("%s >= ? AND %s < ?", f.Field, f.Field))
			args = append(args, start.Format(time.RFC3339), end.Format(time.RFC3339))
		case datatypes.OpLike:
			conds = append(conds, fmt.Sprintf("%s LIKE ?", f.Field))
			args = append(args, "%"+strings.Trim(f.Value, "%")+"%")
		default:
			conds = append(conds, fmt.Sprintf("%s %s ?", f.Field, sqlOperator(f.Op)))
			args = append(args, f.Value)
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if len(plan.GroupBy) > 0 {
		fmt.Fprintf(&b, " GROUP BY %s", strings.Join(plan.GroupBy, ", "))
	}
	if plan.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", plan.OrderBy)
		if plan.Desc {
			b.WriteString(" DESC")
		}
	}

	// One extra row so truncation is detectable.
	fmt.Fprintf(&b, " LIMIT %d", plan.Limit+1)

	return b.String(), args
}

func sqlOperator(op datatypes.Operator) string {
	switch op {
	case datatypes.OpEqual:
		return "="
	case datatypes.OpNotEqual:
		return "!="
	case datatypes.OpGreater:
		return ">"
	case datatypes.OpGreaterEqual:
		return ">="
	case datatypes.OpLess:
		return "<"
	case datatypes.OpLessEqual:
		return "<="
	default:
		return "="
	}
}

// timeRangeBounds expands a named range into [start, end) in UTC.
func timeRangeBounds(name string, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch name {
	case "today":
		return day, day.AddDate(0, 0, 1)
	case "this_week":
		start := startOfWeek(day)
		return start, start.AddDate(0, 0, 7)
	case "last_week":
		start := startOfWeek(day).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7)
	case "this_month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	case "last_month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, 0)
	case "this_year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	case "last_year":
		start := time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	default:
		// Validation rejects unknown ranges; this is unreachable in
		// practice but keeps the function total.
		return day, day.AddDate(0, 0, 1)
	}
}

func startOfWeek(day time.Time) time.Time {
	// ISO week: Monday first.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// collect drains rows into a bounded ResultSet, marking truncation when
// the backend produced more rows than the plan's cap.
func collect(rows *sql.Rows, limit int) (*datatypes.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &datatypes.ResultSet{Columns: cols}
	for rows.Next() {
		if result.RowCount == limit {
			result.Truncated = true
			break
		}
		raw := make([]any, len(cols))
		for i := range raw {
			raw[i] = new(sql.NullString)
		}
		if err := rows.Scan(raw...); err != nil {
			return nil, err
		}
		record := make([]string, len(cols))
		for i, v := range raw {
			ns := v.(*sql.NullString)
			if ns.Valid {
				record[i] = ns.String
			}
		}
		result.Rows = append(result.Rows, record)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// classify maps backend errors onto the fixed taxonomy.
func classify(err error) *datatypes.ExecutionError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &datatypes.ExecutionError{Kind: datatypes.ExecErrTimeout, Cause: err}
	case errors.Is(err, context.Canceled):
		return &datatypes.ExecutionError{Kind: datatypes.ExecErrTimeout, Cause: err}
	case isMalformed(err):
		return &datatypes.ExecutionError{Kind: datatypes.ExecErrMalformed, Cause: err}
	default:
		return &datatypes.ExecutionError{Kind: datatypes.ExecErrUnavailable, Cause: err}
	}
}

func isMalformed(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"syntax error", "no such table", "no such column",
		"misuse of aggregate", "datatype mismatch", "sql logic error"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
