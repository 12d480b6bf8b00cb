// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classifier maps a raw utterance plus recent conversational
// context to one of a closed set of intents.
//
// Classification is total: the LLM path can time out, return garbage, or
// return an unknown label, and Classify still produces an intent. Any
// unrecoverable ambiguity resolves to out_of_domain, never an error.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("opspilot.assistant.classifier")

// classifyPromptTemplate keeps the prompt small: intent labels, a short
// history window and the utterance. The model must answer with a single
// JSON object.
const classifyPromptTemplate = `You classify questions for an operational incident/problem data assistant.

Assign exactly one intent:
- greeting: salutations and small talk openers
- data_query: a self-contained question about incident or problem records
- follow_up: a question that only makes sense relative to the previous data question (e.g. "what about last week?")
- feedback: the user is rating or commenting on a previous answer
- out_of_domain: anything else (weather, general knowledge, requests to write code, ...)

Conversation so far:
%s

User input: %s

Respond with ONLY valid JSON (no markdown, no preamble):
{"intent":"<label>","rephrased":"<self-contained restatement of the question, for data intents>"}`

// Classification is the classifier's outcome for one utterance.
type Classification struct {
	Intent datatypes.Intent
	// Rephrased is a self-contained restatement of the utterance for
	// data intents, carried into synthesis. Falls back to the original
	// utterance when the model provides none.
	Rephrased string
}

// Config controls the classifier's LLM usage.
type Config struct {
	// Timeout bounds each classification call. Default 15s.
	Timeout time.Duration
	// MaxTokens caps the model response. Default 256.
	MaxTokens int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Timeout: 15 * time.Second, MaxTokens: 256}
}

// Classifier assigns intents using an LLM with a keyword fallback.
// Identical in-flight requests are coalesced. Safe for concurrent use.
type Classifier struct {
	client   llm.LLMClient
	config   Config
	inflight singleflight.Group
}

// New creates a Classifier. The client may be nil, in which case only
// the keyword fallback is used (degraded but still total).
func New(client llm.LLMClient, config Config) *Classifier {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 256
	}
	return &Classifier{client: client, config: config}
}

// Classify maps the utterance to an intent. It never returns an error;
// every failure path degrades to the keyword fallback and ultimately to
// out_of_domain.
func (c *Classifier) Classify(ctx context.Context, utterance string,
	recent []datatypes.Turn) Classification {

	ctx, span := tracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Classification{Intent: datatypes.IntentOutOfDomain, Rephrased: utterance}
	}

	if c.client == nil {
		result := c.fallback(utterance, recent)
		span.SetAttributes(attribute.String("intent", string(result.Intent)),
			attribute.Bool("fallback", true))
		return result
	}

	key := classifyKey(utterance, recent)
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		return c.classifyLLM(ctx, utterance, recent), nil
	})
	if err != nil {
		// singleflight itself does not fail here; belt and braces.
		return c.fallback(utterance, recent)
	}
	result := v.(Classification)
	span.SetAttributes(attribute.String("intent", string(result.Intent)))
	return result
}

func (c *Classifier) classifyLLM(ctx context.Context, utterance string,
	recent []datatypes.Turn) Classification {

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(classifyPromptTemplate, HistoryText(recent), utterance)
	maxTokens := c.config.MaxTokens
	raw, err := c.client.Generate(ctx, prompt, llm.GenerationParams{MaxTokens: &maxTokens})
	if err != nil {
		slog.Warn("LLM classification failed, using keyword fallback", "error", err)
		return c.fallback(utterance, recent)
	}

	parsed, err := ExtractJSON(raw)
	if err != nil {
		slog.Warn("classification response had no parseable JSON, using keyword fallback",
			"error", err)
		return c.fallback(utterance, recent)
	}

	label, _ := parsed["intent"].(string)
	intent := datatypes.ParseIntent(label)

	// The model only gets to claim follow_up when there is actually a
	// prior plan to follow up on.
	if intent == datatypes.IntentFollowUp && !hasDataTurn(recent) {
		intent = datatypes.IntentDataQuery
	}

	rephrased, _ := parsed["rephrased"].(string)
	rephrased = strings.TrimSpace(rephrased)
	if rephrased == "" {
		rephrased = utterance
	}

	slog.Debug("classified utterance", "intent", intent)
	return Classification{Intent: intent, Rephrased: rephrased}
}

var greetingWords = []string{"hi", "hello", "hey", "good morning", "good afternoon",
	"good evening", "howdy", "greetings"}

var followUpLeads = []string{"what about", "how about", "and ", "same but", "what if"}

var dataWords = []string{"incident", "incidents", "problem", "problems", "ticket",
	"tickets", "how many", "count", "show me", "list", "average", "critical", "priority"}

// fallback is the keyword classifier used when the LLM path is
// unavailable or unparseable. It errs toward out_of_domain.
func (c *Classifier) fallback(utterance string, recent []datatypes.Turn) Classification {
	lower := strings.ToLower(strings.TrimSpace(utterance))

	for _, g := range greetingWords {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+"!") ||
			strings.HasPrefix(lower, g+",") {
			return Classification{Intent: datatypes.IntentGreeting, Rephrased: utterance}
		}
	}

	if hasDataTurn(recent) {
		for _, lead := range followUpLeads {
			if strings.HasPrefix(lower, lead) {
				return Classification{Intent: datatypes.IntentFollowUp, Rephrased: utterance}
			}
		}
	}

	for _, w := range dataWords {
		if strings.Contains(lower, w) {
			return Classification{Intent: datatypes.IntentDataQuery, Rephrased: utterance}
		}
	}

	return Classification{Intent: datatypes.IntentOutOfDomain, Rephrased: utterance}
}

// HistoryText renders recent turns for prompt inclusion, oldest first.
func HistoryText(recent []datatypes.Turn) string {
	if len(recent) == 0 {
		return "(no prior conversation)"
	}
	var b strings.Builder
	for _, t := range recent {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Utterance, t.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func hasDataTurn(recent []datatypes.Turn) bool {
	for i := range recent {
		if recent[i].Plan != nil {
			return true
		}
	}
	return false
}

func classifyKey(utterance string, recent []datatypes.Turn) string {
	h := sha256.New()
	h.Write([]byte(utterance))
	h.Write([]byte{0})
	for _, t := range recent {
		h.Write([]byte(t.ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
