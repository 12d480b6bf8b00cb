// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
)

// MemoryStore is a map-backed SessionStore for tests and the
// interactive console. It honors the same versioning contract as the
// durable store, including deep-copy isolation via JSON round-trips.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Get implements SessionStore.
func (m *MemoryStore) Get(ctx context.Context, userID string) (*datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	var session datatypes.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Put implements SessionStore.
func (m *MemoryStore) Put(ctx context.Context, session *datatypes.Session, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if payload, ok := m.sessions[session.UserID]; ok {
		var stored struct {
			Version uint64 `json:"version"`
		}
		if err := json.Unmarshal(payload, &stored); err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return ErrVersionConflict
		}
	} else if expectedVersion != 0 {
		return ErrVersionConflict
	}

	session.Version = expectedVersion + 1
	payload, err := json.Marshal(session)
	if err != nil {
		session.Version = expectedVersion
		return err
	}
	m.sessions[session.UserID] = payload
	return nil
}

// Delete implements SessionStore.
func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, userID)
	return nil
}

// List implements SessionStore.
func (m *MemoryStore) List(ctx context.Context) ([]datatypes.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var summaries []datatypes.SessionSummary
	for _, payload := range m.sessions {
		var session datatypes.Session
		if err := json.Unmarshal(payload, &session); err != nil {
			return nil, err
		}
		summaries = append(summaries, session.Summary())
	}
	return summaries, nil
}

// Close implements SessionStore.
func (m *MemoryStore) Close() error { return nil }
