// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore is a BadgerDB-backed kg.Port adapter.
//
// Records are stored as JSON under prefixed keys: "node:" and "triad:"
// for entities, "snapshot:" for durability records.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
)

// Key prefixes.
const (
	nodePrefix     = "node:"
	triadPrefix    = "triad:"
	snapshotPrefix = "snapshot:"
)

// Options configures the Badger adapter.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory runs Badger without a backing directory. Used in tests.
	InMemory bool

	// Logger receives adapter and Badger diagnostics. Nil uses
	// slog.Default.
	Logger *slog.Logger
}

// Store is a Badger-backed persistence adapter implementing kg.Port.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens the Badger database described by opts.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithLogger(&badgerSlogAdapter{logger: logger})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// UpsertNode writes the full node record under its key.
func (s *Store) UpsertNode(_ context.Context, node *kg.Node) error {
	return s.set(nodePrefix+node.ID, node)
}

// UpsertTriad writes the full triad record under its key.
func (s *Store) UpsertTriad(_ context.Context, triad *kg.Triad) error {
	return s.set(triadPrefix+triad.ID, triad)
}

// DeleteNode removes the node record. Deleting an absent key is not an
// error.
func (s *Store) DeleteNode(_ context.Context, id string) error {
	return s.delete(nodePrefix + id)
}

// DeleteTriad removes the triad record. Deleting an absent key is not an
// error.
func (s *Store) DeleteTriad(_ context.Context, id string) error {
	return s.delete(triadPrefix + id)
}

// SaveSnapshot appends one stats record under a fresh key.
func (s *Store) SaveSnapshot(_ context.Context, stats kg.SnapshotStats) error {
	return s.set(snapshotPrefix+uuid.NewString(), stats)
}

// Restore reads every persisted node and triad back into a snapshot,
// suitable for kg.Store.Import at boot.
func (s *Store) Restore(_ context.Context) (*kg.Snapshot, error) {
	snapshot := &kg.Snapshot{
		Nodes:  make([]kg.Node, 0),
		Triads: make([]kg.Triad, 0),
	}

	err := s.db.View(func(txn *badger.Txn) error {
		if err := scanPrefix(txn, nodePrefix, func(value []byte) error {
			var node kg.Node
			if err := json.Unmarshal(value, &node); err != nil {
				return fmt.Errorf("decode node: %w", err)
			}
			snapshot.Nodes = append(snapshot.Nodes, node)
			return nil
		}); err != nil {
			return err
		}
		return scanPrefix(txn, triadPrefix, func(value []byte) error {
			var triad kg.Triad
			if err := json.Unmarshal(value, &triad); err != nil {
				return fmt.Errorf("decode triad: %w", err)
			}
			snapshot.Triads = append(snapshot.Triads, triad)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("restored graph from badger",
		slog.Int("nodes", len(snapshot.Nodes)),
		slog.Int("triads", len(snapshot.Triads)))
	return snapshot, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) set(key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// scanPrefix invokes fn with the value of every key under prefix.
func scanPrefix(txn *badger.Txn, prefix string, fn func(value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// badgerSlogAdapter bridges Badger's logger interface onto slog. Badger
// logs are verbose at INFO, so they map one level down.
type badgerSlogAdapter struct {
	logger *slog.Logger
}

func (a *badgerSlogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (a *badgerSlogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (a *badgerSlogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (a *badgerSlogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}
