// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package synthesizer turns a data-intent utterance into a validated
// QueryPlan.
//
// The LLM proposes a candidate plan as JSON; the candidate is untrusted
// and is validated against the schema allow-list before it is returned.
// Validation failure yields a SynthesisError, never a degraded plan.
//
// For follow-up intents the candidate is merged with the prior data
// turn's plan, which is what gives the assistant conversational
// continuity ("what about last week?" keeps the table and filters of
// the previous question and narrows the time range).
package synthesizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/classifier"
	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("opspilot.assistant.synthesizer")

const synthesisPromptTemplate = `You translate questions about operational incident/problem records into a structured query plan.

Schema (the only tables and fields you may reference):
%s

Allowed filter operators: eq, neq, gt, gte, lt, lte, like, within.
"within" compares a timestamp field against one of: today, this_week, this_month, this_year, last_week, last_month, last_year.
Allowed aggregate functions: count, sum, avg, min, max. Use field "*" only with count.

Conversation so far:
%s

Question: %s

Respond with ONLY valid JSON (no markdown, no prose) in this shape:
{"table":"incidents","columns":["number","short_description"],"filters":[{"field":"priority","op":"eq","value":"critical"}],"aggregate":{"func":"count","field":"*"},"group_by":[],"order_by":"","desc":false,"limit":100}
Omit "aggregate" when the question asks for rows rather than a computed value. Omit "columns" to select all fields.`

// Config controls the synthesizer's LLM usage.
type Config struct {
	// Timeout bounds each synthesis call. Default 30s.
	Timeout time.Duration
	// MaxTokens caps the model response. Default 512.
	MaxTokens int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second, MaxTokens: 512}
}

// Synthesizer produces validated query plans. The schema is read-only
// and shared; Synthesizer is safe for concurrent use.
type Synthesizer struct {
	client llm.LLMClient
	schema *datatypes.Schema
	config Config
}

// New creates a Synthesizer over the given schema allow-list.
func New(client llm.LLMClient, schema *datatypes.Schema, config Config) *Synthesizer {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 512
	}
	return &Synthesizer{client: client, schema: schema, config: config}
}

// Schema exposes the allow-list (for prompt assembly and handlers).
func (s *Synthesizer) Schema() *datatypes.Schema { return s.schema }

// Synthesize produces a validated plan for a data-intent utterance.
// For follow_up intent the candidate is merged with the most recent
// prior plan found in the context window. Any failure (LLM transport,
// unparseable output, validation) returns a *datatypes.SynthesisError.
func (s *Synthesizer) Synthesize(ctx context.Context, utterance string,
	intent datatypes.Intent, recent []datatypes.Turn) (*datatypes.QueryPlan, error) {

	ctx, span := tracer.Start(ctx, "Synthesizer.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("intent", string(intent)))

	if !intent.IsData() {
		return nil, &datatypes.SynthesisError{
			Reason: fmt.Sprintf("intent %s does not take a query plan", intent),
		}
	}
	if s.client == nil {
		return nil, &datatypes.SynthesisError{Reason: "no language model configured"}
	}

	candidate, err := s.propose(ctx, utterance, recent)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if intent == datatypes.IntentFollowUp {
		if prior := lastPlan(recent); prior != nil {
			candidate = MergeFollowUp(prior, candidate)
		}
	}

	if err := candidate.Validate(s.schema); err != nil {
		slog.Warn("synthesized plan failed validation", "error", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &datatypes.SynthesisError{Reason: err.Error()}
	}

	span.SetAttributes(attribute.String("plan.table", candidate.Table))
	return candidate, nil
}

// propose asks the LLM for a candidate plan and defensively parses it.
func (s *Synthesizer) propose(ctx context.Context, utterance string,
	recent []datatypes.Turn) (*datatypes.QueryPlan, error) {

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(synthesisPromptTemplate,
		s.schema.PromptText(), classifier.HistoryText(recent), utterance)

	maxTokens := s.config.MaxTokens
	raw, err := s.client.Generate(ctx, prompt, llm.GenerationParams{MaxTokens: &maxTokens})
	if err != nil {
		slog.Warn("plan synthesis LLM call failed", "error", err)
		return nil, &datatypes.SynthesisError{Reason: "language model unavailable: " + err.Error()}
	}

	var candidate datatypes.QueryPlan
	if err := classifier.DecodeJSONInto(raw, &candidate); err != nil {
		slog.Warn("plan synthesis returned unparseable output", "error", err)
		return nil, &datatypes.SynthesisError{Reason: "model output was not a query plan"}
	}
	return &candidate, nil
}

// MergeFollowUp merges a follow-up candidate into the prior turn's plan.
//
// Policy (explicit, tested):
//   - a candidate naming a different table stands alone; no inheritance
//   - otherwise the prior table and filters are inherited
//   - a candidate predicate on a field the prior plan already filters
//     REPLACES that predicate; predicates on new fields are appended
//   - candidate aggregate, columns, grouping, ordering and limit
//     override the prior ones when present
func MergeFollowUp(prior, candidate *datatypes.QueryPlan) *datatypes.QueryPlan {
	if candidate == nil {
		return prior.Clone()
	}
	if candidate.Table != "" && candidate.Table != prior.Table {
		return candidate
	}

	merged := prior.Clone()

	for _, f := range candidate.Filters {
		replaced := false
		for i := range merged.Filters {
			if merged.Filters[i].Field == f.Field {
				merged.Filters[i] = f
				replaced = true
			}
		}
		if !replaced {
			merged.Filters = append(merged.Filters, f)
		}
	}

	if len(candidate.Columns) > 0 {
		merged.Columns = append([]string(nil), candidate.Columns...)
	}
	if candidate.Aggregate != nil {
		agg := *candidate.Aggregate
		merged.Aggregate = &agg
	}
	if len(candidate.GroupBy) > 0 {
		merged.GroupBy = append([]string(nil), candidate.GroupBy...)
	}
	if candidate.OrderBy != "" {
		merged.OrderBy = candidate.OrderBy
		merged.Desc = candidate.Desc
	}
	if candidate.Limit > 0 {
		merged.Limit = candidate.Limit
	}
	return merged
}

func lastPlan(recent []datatypes.Turn) *datatypes.QueryPlan {
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Plan != nil {
			return recent[i].Plan
		}
	}
	return nil
}
