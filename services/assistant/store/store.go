// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists conversation sessions.
//
// Sessions are versioned documents keyed by user ID. Writes use
// optimistic concurrency: the caller presents the version it read, and
// the store rejects the write with ErrVersionConflict if another writer
// got there first. The coordinator owns the re-read-and-retry loop.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
)

var (
	// ErrNotFound indicates no session exists for the user.
	ErrNotFound = errors.New("session not found")

	// ErrVersionConflict indicates the session was modified since the
	// caller read it. Re-read and retry.
	ErrVersionConflict = errors.New("session version conflict")
)

// SessionStore is the durable session boundary.
//
// Thread Safety: implementations must be safe for concurrent use.
type SessionStore interface {
	// Get loads the session for a user. Returns ErrNotFound when the
	// user has no session yet. The returned session's Version field is
	// the token to present on the next Put.
	Get(ctx context.Context, userID string) (*datatypes.Session, error)

	// Put writes the session if its stored version still equals
	// expectedVersion. Use expectedVersion 0 when creating. On success
	// the session's Version field is advanced in place.
	Put(ctx context.Context, session *datatypes.Session, expectedVersion uint64) error

	// Delete removes a user's session. Deleting a missing session
	// returns ErrNotFound.
	Delete(ctx context.Context, userID string) error

	// List returns summaries of every stored session.
	List(ctx context.Context) ([]datatypes.SessionSummary, error)

	// Close releases store resources.
	Close() error
}
