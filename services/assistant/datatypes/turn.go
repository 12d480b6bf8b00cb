// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"fmt"
	"time"
)

// ResultSet is a bounded, ordered set of records returned by the
// executor. An empty ResultSet (RowCount == 0) is a valid outcome,
// distinct from an execution failure.
type ResultSet struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"row_count"`
	Truncated bool       `json:"truncated"`
}

// Empty reports whether the result contains no rows.
func (r *ResultSet) Empty() bool {
	return r == nil || r.RowCount == 0
}

// ExecErrorKind classifies backend failures without leaking backend
// diagnostic text into the answer path.
type ExecErrorKind string

const (
	ExecErrTimeout     ExecErrorKind = "timeout"
	ExecErrUnavailable ExecErrorKind = "backend_unavailable"
	ExecErrMalformed   ExecErrorKind = "malformed"
)

// ExecutionError wraps a backend failure with its classification. The
// underlying cause is for logs only; user-facing text is composed from
// the Kind alone.
type ExecutionError struct {
	Kind  ExecErrorKind
	Cause error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("execution failed (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("execution failed (%s)", e.Kind)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Retryable reports whether the coordinator may retry the execution.
// Only backend unavailability is retried; timeouts and malformed plans
// are not.
func (e *ExecutionError) Retryable() bool {
	return e.Kind == ExecErrUnavailable
}

// AsExecutionError unwraps err into an *ExecutionError if possible.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// SynthesisError reports that no valid plan could be produced for a
// data-intent utterance. The reason is logged internally; callers show a
// generic "couldn't understand the data request" answer.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	return "query synthesis failed: " + e.Reason
}

// AsSynthesisError unwraps err into a *SynthesisError if possible.
func AsSynthesisError(err error) (*SynthesisError, bool) {
	var se *SynthesisError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// TurnOutcome is the persisted summary of how a turn resolved. Full
// result sets are not persisted, only their shape; the grounded answer
// carries the values.
type TurnOutcome struct {
	RowCount      int    `json:"row_count,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Turn records one utterance and its resolved outcome. Turns are
// immutable once appended to a session.
type Turn struct {
	ID        string       `json:"turn_id"`
	Utterance string       `json:"utterance"`
	Intent    Intent       `json:"intent"`
	Plan      *QueryPlan   `json:"plan,omitempty"`
	Outcome   *TurnOutcome `json:"outcome,omitempty"`
	Answer    string       `json:"answer"`
	Timestamp time.Time    `json:"timestamp"`
}
