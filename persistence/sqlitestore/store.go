// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sqlitestore is a SQLite-backed kg.Port adapter.
//
// Each node and triad is written as a full JSON record alongside the
// columns hot paths filter on (type, name, subject, predicate, object).
// Snapshot stats append to graph_snapshots, one row per PersistSnapshot,
// forming a durability audit trail.
//
// The driver is modernc.org/sqlite: pure Go, no cgo, which keeps cross
// compilation trivial.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	name       TEXT NOT NULL,
	namespace  TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);

CREATE TABLE IF NOT EXISTS triads (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	predicate  TEXT NOT NULL,
	object     TEXT NOT NULL,
	confidence REAL NOT NULL,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_triads_subject ON triads(subject);
CREATE INDEX IF NOT EXISTS idx_triads_predicate ON triads(predicate);
CREATE INDEX IF NOT EXISTS idx_triads_object ON triads(object);

CREATE TABLE IF NOT EXISTS graph_snapshots (
	id           TEXT PRIMARY KEY,
	node_count   INTEGER NOT NULL,
	triad_count  INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	taken_at     TIMESTAMP NOT NULL
);
`

// Store is a SQLite-backed persistence adapter implementing kg.Port.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option mutates Store construction.
type Option func(*Store)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite serializes writers internally; a second pooled connection
	// only buys lock contention errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UpsertNode writes the full node record, replacing any previous row.
func (s *Store) UpsertNode(ctx context.Context, node *kg.Node) error {
	payload, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, type, name, namespace, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			namespace = excluded.namespace,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		node.ID, string(node.Type), node.Name, node.Namespace,
		string(payload), node.CreatedAt, node.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", node.ID, err)
	}
	return nil
}

// UpsertTriad writes the full triad record, replacing any previous row.
func (s *Store) UpsertTriad(ctx context.Context, triad *kg.Triad) error {
	payload, err := json.Marshal(triad)
	if err != nil {
		return fmt.Errorf("marshal triad %s: %w", triad.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triads (id, subject, predicate, object, confidence, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			predicate = excluded.predicate,
			object = excluded.object,
			confidence = excluded.confidence,
			payload = excluded.payload`,
		triad.ID, triad.Subject, string(triad.Predicate), triad.Object,
		triad.Confidence, string(payload), triad.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert triad %s: %w", triad.ID, err)
	}
	return nil
}

// DeleteNode removes the node row. Deleting an absent row is not an error.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	return nil
}

// DeleteTriad removes the triad row. Deleting an absent row is not an error.
func (s *Store) DeleteTriad(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM triads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete triad %s: %w", id, err)
	}
	return nil
}

// SaveSnapshot appends one stats row.
func (s *Store) SaveSnapshot(ctx context.Context, stats kg.SnapshotStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_snapshots (id, node_count, triad_count, content_hash, taken_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), stats.NodeCount, stats.TriadCount, stats.ContentHash, stats.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Restore reads every persisted node and triad back into a snapshot,
// suitable for kg.Store.Import at boot.
func (s *Store) Restore(ctx context.Context) (*kg.Snapshot, error) {
	snapshot := &kg.Snapshot{
		Nodes:  make([]kg.Node, 0),
		Triads: make([]kg.Triad, 0),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		var node kg.Node
		if err := json.Unmarshal([]byte(payload), &node); err != nil {
			return nil, fmt.Errorf("decode node: %w", err)
		}
		snapshot.Nodes = append(snapshot.Nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	triadRows, err := s.db.QueryContext(ctx, `SELECT payload FROM triads ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load triads: %w", err)
	}
	defer triadRows.Close()
	for triadRows.Next() {
		var payload string
		if err := triadRows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan triad: %w", err)
		}
		var triad kg.Triad
		if err := json.Unmarshal([]byte(payload), &triad); err != nil {
			return nil, fmt.Errorf("decode triad: %w", err)
		}
		snapshot.Triads = append(snapshot.Triads, triad)
	}
	if err := triadRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triads: %w", err)
	}

	s.logger.Debug("restored graph from sqlite",
		slog.Int("nodes", len(snapshot.Nodes)),
		slog.Int("triads", len(snapshot.Triads)))
	return snapshot, nil
}

// SnapshotHistory returns the recorded stats rows, newest first, up to
// limit. A non-positive limit returns all rows.
func (s *Store) SnapshotHistory(ctx context.Context, limit int) ([]kg.SnapshotStats, error) {
	q := `SELECT node_count, triad_count, content_hash, taken_at
		FROM graph_snapshots ORDER BY taken_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load snapshot history: %w", err)
	}
	defer rows.Close()

	history := make([]kg.SnapshotStats, 0)
	for rows.Next() {
		var stats kg.SnapshotStats
		if err := rows.Scan(&stats.NodeCount, &stats.TriadCount, &stats.ContentHash, &stats.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		history = append(history, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return history, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
