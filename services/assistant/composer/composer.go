// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package composer renders user-facing answers.
//
// Data answers are grounded: every number and record in the text comes
// from the executed result set, never from the language model. The LLM
// is only consulted for small talk, and even there a static fallback
// guarantees an answer.
//
// Failure messages are user-safe. Backend diagnostics stay in the logs;
// the user sees a short apology keyed to the failure kind.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/llm"
)

// MaxAnswerRows bounds how many records a textual answer lists.
const MaxAnswerRows = 10

const smallTalkPrompt = `You are OpsPilot, an assistant that answers questions about incident and problem records.
The user said: %q
Reply with one short, friendly sentence. Do not invent any data.`

// Config controls the composer's optional LLM usage.
type Config struct {
	// Timeout bounds the small-talk call. Default 10s.
	Timeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// Composer renders answers. A nil LLM client is valid; small talk then
// always uses the static templates.
type Composer struct {
	client llm.LLMClient
	config Config
}

// New creates a Composer.
func New(client llm.LLMClient, config Config) *Composer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Composer{client: client, config: config}
}

// Greeting answers a greeting-intent turn. LLM small talk when
// available, canned text otherwise.
func (c *Composer) Greeting(ctx context.Context, utterance string) string {
	if c.client != nil {
		ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
		reply, err := c.client.Generate(ctx, fmt.Sprintf(smallTalkPrompt, utterance), llm.GenerationParams{})
		if err == nil {
			if reply = strings.TrimSpace(reply); reply != "" {
				return reply
			}
		} else {
			slog.Debug("small talk generation failed, using fallback", "error", err)
		}
	}
	return "Hello! Ask me about your incident and problem records, for example \"How many critical incidents were opened this month?\""
}

// FeedbackHint answers an utterance that reads as feedback on a prior
// answer; ratings go through the feedback endpoint, not the chat.
func (c *Composer) FeedbackHint() string {
	return "Thanks for the feedback! To record it against an answer, use the feedback controls (like/dislike) rather than the chat."
}

// OutOfDomain answers an utterance the assistant cannot serve.
func (c *Composer) OutOfDomain() string {
	return "I can only answer questions about incident and problem records. Try asking about ticket counts, priorities, categories, or time ranges."
}

// Answer renders a grounded answer for an executed plan.
func (c *Composer) Answer(plan *datatypes.QueryPlan, result *datatypes.ResultSet) string {
	if result == nil || result.Empty() {
		return "No matching records were found."
	}
	if plan.Aggregate != nil {
		return aggregateAnswer(plan, result)
	}
	return rowAnswer(plan, result)
}

// Failure renders a user-safe message for a failed turn.
func (c *Composer) Failure(err error) string {
	if _, ok := datatypes.AsSynthesisError(err); ok {
		return "I couldn't turn that question into a query I'm confident about. Could you rephrase it, naming the records and conditions you're interested in?"
	}
	if execErr, ok := datatypes.AsExecutionError(err); ok {
		switch execErr.Kind {
		case datatypes.ExecErrTimeout:
			return "That query took too long to run. Please try a narrower question."
		case datatypes.ExecErrUnavailable:
			return "The data backend is temporarily unavailable. Please try again in a moment."
		case datatypes.ExecErrMalformed:
			return "I produced a query the backend rejected. Please try rephrasing your question."
		}
	}
	return "Something went wrong while answering that. Please try again."
}

func aggregateAnswer(plan *datatypes.QueryPlan, result *datatypes.ResultSet) string {
	subject := describeSubject(plan)

	// Grouped aggregates list one line per group.
	if len(plan.GroupBy) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s of %s by %s:\n", aggregateNoun(plan.Aggregate.Func), subject,
			strings.Join(plan.GroupBy, ", "))
		for i, row := range result.Rows {
			if i == MaxAnswerRows {
				fmt.Fprintf(&b, "... and %d more groups", result.RowCount-MaxAnswerRows)
				break
			}
			fmt.Fprintf(&b, "  %s: %s\n", strings.Join(row[:len(row)-1], " / "), row[len(row)-1])
		}
		return strings.TrimRight(b.String(), "\n")
	}

	value := ""
	if len(result.Rows) > 0 && len(result.Rows[0]) > 0 {
		value = result.Rows[0][0]
	}
	if plan.Aggregate.Func == datatypes.AggCount {
		if value == "1" {
			return fmt.Sprintf("There is 1 %s.", singular(subject))
		}
		return fmt.Sprintf("There are %s %s.", value, subject)
	}
	return fmt.Sprintf("The %s of %s across %s is %s.",
		aggregateNoun(plan.Aggregate.Func), plan.Aggregate.Field, subject, value)
}

func rowAnswer(plan *datatypes.QueryPlan, result *datatypes.ResultSet) string {
	var b strings.Builder
	subject := describeSubject(plan)

	shown := len(result.Rows)
	if shown > MaxAnswerRows {
		shown = MaxAnswerRows
	}
	if result.Truncated {
		fmt.Fprintf(&b, "Found more than %d %s; showing the first %d:\n", result.RowCount, subject, shown)
	} else if result.RowCount == 1 {
		fmt.Fprintf(&b, "Found 1 %s:\n", singular(subject))
	} else {
		fmt.Fprintf(&b, "Found %d %s", result.RowCount, subject)
		if shown < result.RowCount {
			fmt.Fprintf(&b, "; showing the first %d", shown)
		}
		b.WriteString(":\n")
	}

	b.WriteString("  " + strings.Join(result.Columns, " | ") + "\n")
	for _, row := range result.Rows[:shown] {
		b.WriteString("  " + strings.Join(row, " | ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// describeSubject names what the plan selects, folded with its filters
// so the answer restates the constraints it honored.
func describeSubject(plan *datatypes.QueryPlan) string {
	noun := plan.Table
	var quals []string
	for _, f := range plan.Filters {
		switch f.Op {
		case datatypes.OpEqual:
			quals = append(quals, fmt.Sprintf("%s %s", f.Field, f.Value))
		case datatypes.OpWithin:
			quals = append(quals, "opened "+strings.ReplaceAll(f.Value, "_", " "))
		default:
			quals = append(quals, fmt.Sprintf("%s %s %s", f.Field, f.Op, f.Value))
		}
	}
	if len(quals) == 0 {
		return noun
	}
	return noun + " (" + strings.Join(quals, ", ") + ")"
}

func aggregateNoun(f datatypes.AggregateFunc) string {
	switch f {
	case datatypes.AggCount:
		return "count"
	case datatypes.AggSum:
		return "sum"
	case datatypes.AggAvg:
		return "average"
	case datatypes.AggMin:
		return "minimum"
	case datatypes.AggMax:
		return "maximum"
	default:
		return string(f)
	}
}

func singular(subject string) string {
	if i := strings.IndexAny(subject, " ("); i > 0 {
		return strings.TrimSuffix(subject[:i], "s") + subject[i:]
	}
	return strings.TrimSuffix(subject, "s")
}
