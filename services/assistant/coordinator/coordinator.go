// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package coordinator drives a turn through the pipeline: classify,
// synthesize, execute, compose, persist.
//
// Concurrency model: at most one turn per user is in flight. Later
// requests for the same user queue on a per-user lock and run in
// arrival order. Different users proceed in parallel.
//
// Failure model: a turn always resolves to an answer and is always
// recorded in the session, whatever went wrong upstream. Persistence
// itself may degrade; the turn is then returned with Persisted=false
// and the conversation continues.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/classifier"
	"github.com/AleutianAI/OpsPilot/services/assistant/composer"
	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/assistant/executor"
	"github.com/AleutianAI/OpsPilot/services/assistant/observability"
	"github.com/AleutianAI/OpsPilot/services/assistant/store"
	"github.com/AleutianAI/OpsPilot/services/assistant/synthesizer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("opspilot.assistant.coordinator")

// ErrTurnNotFound reports feedback against a turn id the session does
// not contain.
var ErrTurnNotFound = errors.New("turn not found")

// Config controls retry behavior.
type Config struct {
	// PersistRetries is how many times a conflicted save is retried
	// before the turn degrades to Persisted=false. Default 3.
	PersistRetries int

	// ExecRetryBackoff is the pause before the single retry of a
	// backend_unavailable execution. Default 1s; zero in tests.
	ExecRetryBackoff time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{PersistRetries: 3, ExecRetryBackoff: time.Second}
}

// TurnResult is the resolved outcome of one utterance.
type TurnResult struct {
	Turn datatypes.Turn

	// GeneratedSQL is the statement the plan translated to, empty for
	// non-data turns and failed synthesis.
	GeneratedSQL string

	// Persisted is false when the session could not be saved; the
	// answer is still valid.
	Persisted bool
}

// FeedbackResult reports how a feedback submission resolved.
type FeedbackResult struct {
	// NewEntry is false for a duplicate (user, turn, rating)
	// submission; duplicates update the comment only.
	NewEntry bool

	// Persisted mirrors TurnResult.Persisted.
	Persisted bool
}

// Coordinator orchestrates the turn pipeline. Safe for concurrent use.
type Coordinator struct {
	classifier  *classifier.Classifier
	synthesizer *synthesizer.Synthesizer
	executor    *executor.Executor
	composer    *composer.Composer
	sessions    store.SessionStore
	metrics     *observability.AssistantMetrics
	config      Config

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// New wires the pipeline. metrics may be nil (tests, console mode).
func New(cl *classifier.Classifier, sy *synthesizer.Synthesizer, ex *executor.Executor,
	co *composer.Composer, sessions store.SessionStore,
	metrics *observability.AssistantMetrics, config Config) *Coordinator {

	if config.PersistRetries <= 0 {
		config.PersistRetries = 3
	}
	return &Coordinator{
		classifier:  cl,
		synthesizer: sy,
		executor:    ex,
		composer:    co,
		sessions:    sessions,
		metrics:     metrics,
		config:      config,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

// Sessions exposes the session store for administrative handlers.
func (c *Coordinator) Sessions() store.SessionStore { return c.sessions }

// lockFor returns the per-user turn lock, creating it on first use.
func (c *Coordinator) lockFor(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		c.userLocks[userID] = lock
	}
	return lock
}

// ProcessTurn resolves one utterance to an answered, recorded turn.
//
// The error return is reserved for infrastructure refusals (context
// cancellation before work started); every pipeline failure instead
// resolves into the turn's answer and outcome.
func (c *Coordinator) ProcessTurn(ctx context.Context, userID, utterance string) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.ProcessTurn")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	lock := c.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.ActiveTurns.Inc()
		defer c.metrics.ActiveTurns.Dec()
	}
	started := time.Now()

	session, err := c.sessions.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		session = datatypes.NewSession(userID)
	} else if err != nil {
		// A session we cannot load is treated as fresh for this turn;
		// the save path will surface persistence problems.
		slog.Error("session load failed, continuing with empty context", "user_id", userID, "error", err)
		session = datatypes.NewSession(userID)
	}

	recent := session.RecentTurns(datatypes.ContextWindow)
	classification := c.classifier.Classify(ctx, utterance, recent)
	span.SetAttributes(attribute.String("intent", string(classification.Intent)))

	turn := datatypes.Turn{
		ID:        uuid.NewString(),
		Utterance: utterance,
		Intent:    classification.Intent,
		Timestamp: time.Now().UTC(),
	}

	var generatedSQL string
	outcome := "answered"

	switch classification.Intent {
	case datatypes.IntentGreeting:
		turn.Answer = c.composer.Greeting(ctx, utterance)

	case datatypes.IntentOutOfDomain:
		turn.Answer = c.composer.OutOfDomain()

	case datatypes.IntentFeedback:
		turn.Answer = c.composer.FeedbackHint()

	case datatypes.IntentDataQuery, datatypes.IntentFollowUp:
		generatedSQL, outcome = c.resolveData(ctx, &turn, classification, recent)

	default:
		turn.Answer = c.composer.OutOfDomain()
	}

	persisted := c.saveTurn(ctx, session, turn)

	if c.metrics != nil {
		c.metrics.TurnsTotal.WithLabelValues(string(classification.Intent), outcome).Inc()
		c.metrics.TurnDurationSeconds.WithLabelValues(string(classification.Intent)).
			Observe(time.Since(started).Seconds())
	}
	slog.Info("turn resolved",
		"user_id", userID,
		"turn_id", turn.ID,
		"intent", classification.Intent,
		"outcome", outcome,
		"persisted", persisted,
		"elapsed", time.Since(started))

	return &TurnResult{Turn: turn, GeneratedSQL: generatedSQL, Persisted: persisted}, nil
}

// resolveData runs synthesis and execution for a data-intent turn,
// filling the turn's plan, outcome and answer. Returns the generated
// SQL (empty on failed synthesis) and the metrics outcome label.
func (c *Coordinator) resolveData(ctx context.Context, turn *datatypes.Turn,
	classification classifier.Classification, recent []datatypes.Turn) (string, string) {

	plan, err := c.synthesizer.Synthesize(ctx, classification.Rephrased, classification.Intent, recent)
	if err != nil {
		turn.Outcome = &datatypes.TurnOutcome{FailureReason: err.Error()}
		turn.Answer = c.composer.Failure(err)
		return "", "synthesis_failed"
	}
	turn.Plan = plan

	result, err := c.execute(ctx, plan)
	if err != nil {
		execErr, _ := datatypes.AsExecutionError(err)
		turn.Outcome = &datatypes.TurnOutcome{ErrorKind: string(execErr.Kind)}
		turn.Answer = c.composer.Failure(err)
		if c.metrics != nil {
			c.metrics.ExecutionErrorsTotal.WithLabelValues(string(execErr.Kind)).Inc()
		}
		return c.executor.SQL(plan), "execution_failed"
	}

	turn.Outcome = &datatypes.TurnOutcome{RowCount: result.RowCount, Truncated: result.Truncated}
	turn.Answer = c.composer.Answer(plan, result)

	outcome := "answered"
	if result.Empty() {
		outcome = "empty"
	}
	return c.executor.SQL(plan), outcome
}

// execute runs the plan, retrying exactly once when the backend was
// unavailable. Timeouts and malformed plans are not retried.
func (c *Coordinator) execute(ctx context.Context, plan *datatypes.QueryPlan) (*datatypes.ResultSet, error) {
	result, err := c.executor.Execute(ctx, plan)
	if err == nil {
		return result, nil
	}
	execErr, ok := datatypes.AsExecutionError(err)
	if !ok || !execErr.Retryable() {
		return nil, err
	}

	slog.Warn("backend unavailable, retrying once", "backoff", c.config.ExecRetryBackoff)
	if c.metrics != nil {
		c.metrics.ExecutionRetriesTotal.Inc()
	}
	select {
	case <-time.After(c.config.ExecRetryBackoff):
	case <-ctx.Done():
		return nil, err
	}
	return c.executor.Execute(ctx, plan)
}

// saveTurn appends the turn and saves the session, retrying version
// conflicts against a freshly loaded copy. After PersistRetries
// conflicts the turn is returned unpersisted rather than failing the
// whole request.
func (c *Coordinator) saveTurn(ctx context.Context, session *datatypes.Session, turn datatypes.Turn) bool {
	session.AppendTurn(turn)

	for attempt := 0; ; attempt++ {
		err := c.sessions.Put(ctx, session, session.Version)
		if err == nil {
			return true
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			slog.Error("session save failed", "user_id", session.UserID, "error", err)
			break
		}
		if c.metrics != nil {
			c.metrics.PersistenceConflictsTotal.Inc()
		}
		if attempt+1 >= c.config.PersistRetries {
			slog.Error("session save conflicted repeatedly, degrading",
				"user_id", session.UserID, "attempts", attempt+1)
			break
		}

		fresh, err := c.sessions.Get(ctx, session.UserID)
		if err != nil {
			slog.Error("session reload after conflict failed", "user_id", session.UserID, "error", err)
			break
		}
		fresh.AppendTurn(turn)
		*session = *fresh
	}

	if c.metrics != nil {
		c.metrics.PersistenceFailuresTotal.Inc()
	}
	return false
}

// RecordFeedback records a rating against a prior turn. Submissions
// are idempotent on (user, turn, rating); a duplicate updates the
// comment and reports NewEntry=false.
func (c *Coordinator) RecordFeedback(ctx context.Context, userID, turnID string,
	rating datatypes.Rating, comment string) (*FeedbackResult, error) {

	ctx, span := tracer.Start(ctx, "Coordinator.RecordFeedback")
	defer span.End()

	// Comment-only submissions carry no rating; the session layer files
	// them under RatingNone or merges them into an existing entry.
	if rating == "" {
		rating = datatypes.RatingNone
	}

	lock := c.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	var newEntry bool
	persisted := false

	for attempt := 0; attempt < c.config.PersistRetries; attempt++ {
		session, err := c.sessions.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if session.FindTurn(turnID) == nil {
			return nil, ErrTurnNotFound
		}

		newEntry = session.AddFeedback(datatypes.FeedbackEntry{
			TurnID:    turnID,
			Rating:    rating,
			Comment:   comment,
			Timestamp: time.Now().UTC(),
		})

		err = c.sessions.Put(ctx, session, session.Version)
		if err == nil {
			persisted = true
			break
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.PersistenceConflictsTotal.Inc()
		}
	}

	if c.metrics != nil {
		c.metrics.FeedbackTotal.WithLabelValues(string(rating), boolLabel(!newEntry)).Inc()
	}
	slog.Info("feedback recorded",
		"user_id", userID, "turn_id", turnID, "rating", rating,
		"duplicate", !newEntry, "persisted", persisted)

	return &FeedbackResult{NewEntry: newEntry, Persisted: persisted}, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
