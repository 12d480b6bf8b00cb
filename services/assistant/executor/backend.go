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
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Backend is the black-box query executor boundary. It accepts one SQL
// statement with bound arguments and returns raw rows; everything above
// it (translation, timeouts, error taxonomy) lives in the Executor.
type Backend interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// SQLiteBackend is an embedded tabular backend holding the incident and
// problem tables. It satisfies the same narrow contract a remote
// warehouse adapter would.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path and ensures
// the ticket tables exist. Use ":memory:" for an ephemeral backend.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and is
	// plenty for an embedded analytical store.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("SQLite backend ready", "path", path)
	return b, nil
}

func (b *SQLiteBackend) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS %s (
	number            TEXT PRIMARY KEY,
	priority          TEXT NOT NULL,
	state             TEXT NOT NULL,
	category          TEXT,
	assignment_group  TEXT,
	short_description TEXT,
	opened_at         TIMESTAMP NOT NULL,
	resolved_at       TIMESTAMP
);`
	for _, table := range []string{"incidents", "problems"} {
		if _, err := b.db.ExecContext(ctx, fmt.Sprintf(ddl, table)); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return nil
}

// Query implements Backend.
func (b *SQLiteBackend) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, query, args...)
}

// Ping implements Backend.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Ticket is one seed row for LoadSampleData.
type Ticket struct {
	Number           string
	Priority         string
	State            string
	Category         string
	AssignmentGroup  string
	ShortDescription string
	OpenedAt         time.Time
	ResolvedAt       *time.Time
}

// LoadSampleData inserts tickets into the named table, replacing rows
// with matching numbers. Used by the examples runner and tests.
func (b *SQLiteBackend) LoadSampleData(ctx context.Context, table string, tickets []Ticket) error {
	if table != "incidents" && table != "problems" {
		return fmt.Errorf("unknown table %q", table)
	}
	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(number, priority, state, category, assignment_group, short_description, opened_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table)
	for _, t := range tickets {
		var resolved any
		if t.ResolvedAt != nil {
			resolved = t.ResolvedAt.UTC().Format(time.RFC3339)
		}
		_, err := b.db.ExecContext(ctx, stmt,
			t.Number, t.Priority, t.State, t.Category, t.AssignmentGroup,
			t.ShortDescription, t.OpenedAt.UTC().Format(time.RFC3339), resolved)
		if err != nil {
			return fmt.Errorf("insert %s into %s: %w", t.Number, table, err)
		}
	}
	return nil
}
