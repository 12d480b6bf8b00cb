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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/dgraph-io/badger/v4"
)

const sessionKeyPrefix = "session/"

// BadgerConfig holds configuration for the embedded session database.
type BadgerConfig struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger receives the database's internal log output.
	// If nil, internal logging is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns sensible defaults for production use.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns configuration optimized for testing.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is the embedded durable SessionStore.
//
// Thread Safety: safe for concurrent use. Version checks and writes
// happen inside a single transaction, so concurrent writers to the
// same user serialize correctly.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the session database.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*BadgerStore - The opened store. Caller must call Close() when done.
//	error - Non-nil if path is invalid or database cannot be opened.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func sessionKey(userID string) []byte {
	return []byte(sessionKeyPrefix + userID)
}

// Get implements SessionStore.
func (s *BadgerStore) Get(ctx context.Context, userID string) (*datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var session datatypes.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", userID, err)
	}
	return &session, nil
}

// Put implements SessionStore. The version check and the write share
// one transaction; the stored version must equal expectedVersion or
// the write fails with ErrVersionConflict.
func (s *BadgerStore) Put(ctx context.Context, session *datatypes.Session, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := sessionKey(session.UserID)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expectedVersion != 0 {
				return ErrVersionConflict
			}
		case err != nil:
			return err
		default:
			var stored struct {
				Version uint64 `json:"version"`
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			if stored.Version != expectedVersion {
				return ErrVersionConflict
			}
		}

		session.Version = expectedVersion + 1
		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		return txn.Set(key, payload)
	})
	if err != nil {
		// Badger's own conflict detection means another writer committed
		// between our read and commit. Same remedy: re-read and retry.
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, badger.ErrConflict) {
			session.Version = expectedVersion
			return ErrVersionConflict
		}
		return fmt.Errorf("store session %s: %w", session.UserID, err)
	}
	return nil
}

// Delete implements SessionStore.
func (s *BadgerStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		key := sessionKey(userID)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	return nil
}

// List implements SessionStore.
func (s *BadgerStore) List(ctx context.Context) ([]datatypes.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var summaries []datatypes.SessionSummary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var session datatypes.Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				return err
			}
			summaries = append(summaries, session.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}

// Close implements SessionStore.
func (s *BadgerStore) Close() error {
	start := time.Now()
	err := s.db.Close()
	slog.Debug("session database closed", "elapsed", time.Since(start))
	return err
}
