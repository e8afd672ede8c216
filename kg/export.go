// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Export returns a full snapshot of the graph: two flat lists of entity
// records, ordered by CreatedAt then id. The records are copies.
func (s *Store) Export() *Snapshot {
	s.mu.RLock()
	snapshot := &Snapshot{
		Nodes:  make([]Node, 0, len(s.nodes)),
		Triads: make([]Triad, 0, len(s.triads)),
	}
	for _, node := range s.nodes {
		snapshot.Nodes = append(snapshot.Nodes, *cloneNode(node))
	}
	for _, triad := range s.triads {
		snapshot.Triads = append(snapshot.Triads, *cloneTriad(triad))
	}
	s.mu.RUnlock()

	sort.Slice(snapshot.Nodes, func(i, j int) bool {
		if !snapshot.Nodes[i].CreatedAt.Equal(snapshot.Nodes[j].CreatedAt) {
			return snapshot.Nodes[i].CreatedAt.Before(snapshot.Nodes[j].CreatedAt)
		}
		return snapshot.Nodes[i].ID < snapshot.Nodes[j].ID
	})
	sort.Slice(snapshot.Triads, func(i, j int) bool {
		if !snapshot.Triads[i].CreatedAt.Equal(snapshot.Triads[j].CreatedAt) {
			return snapshot.Triads[i].CreatedAt.Before(snapshot.Triads[j].CreatedAt)
		}
		return snapshot.Triads[i].ID < snapshot.Triads[j].ID
	})
	return snapshot
}

// Import replaces the store's contents with the snapshot.
//
// Description:
//
//	Re-populates the canonical maps and every secondary index without
//	re-deriving ids: the snapshot's ids are trusted verbatim, so an
//	exported graph round-trips bit-identically. Each imported record is
//	mirrored to the Port (failures logged, never returned).
//
// Errors:
//
//	ErrInvalidSnapshot - nil snapshot, or a record with an empty id
func (s *Store) Import(ctx context.Context, snapshot *Snapshot) error {
	ctx, span := startSpan(ctx, "Import")
	defer span.End()

	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	for i := range snapshot.Nodes {
		if snapshot.Nodes[i].ID == "" {
			return fmt.Errorf("%w: nodes[%d] has empty id", ErrInvalidSnapshot, i)
		}
	}
	for i := range snapshot.Triads {
		if snapshot.Triads[i].ID == "" {
			return fmt.Errorf("%w: triads[%d] has empty id", ErrInvalidSnapshot, i)
		}
	}

	s.mu.Lock()
	s.nodes = make(map[string]*Node, len(snapshot.Nodes))
	s.triads = make(map[string]*Triad, len(snapshot.Triads))
	s.nodesByType = make(map[NodeType]map[string]struct{})
	s.triadsByPredicate = make(map[Predicate]map[string]struct{})
	s.triadsBySubject = make(map[string]map[string]struct{})
	s.triadsByObject = make(map[string]map[string]struct{})

	for i := range snapshot.Nodes {
		node := cloneNode(&snapshot.Nodes[i])
		s.nodes[node.ID] = node
		s.indexNodeLocked(node.ID, node.Type)
	}
	for i := range snapshot.Triads {
		triad := cloneTriad(&snapshot.Triads[i])
		s.triads[triad.ID] = triad
		s.indexTriadLocked(triad.ID, triad)
	}
	s.version++

	mirrors := make([]func(Port) error, 0, len(s.nodes)+len(s.triads))
	for _, node := range s.nodes {
		mirror := cloneNode(node)
		mirrors = append(mirrors, func(p Port) error { return p.UpsertNode(ctx, mirror) })
	}
	for _, triad := range s.triads {
		mirror := cloneTriad(triad)
		mirrors = append(mirrors, func(p Port) error { return p.UpsertTriad(ctx, mirror) })
	}
	s.mu.Unlock()

	for _, op := range mirrors {
		s.writeThrough(ctx, "import", "", op)
	}
	return nil
}

// Stats summarizes the current graph for a periodic durability record.
// The content hash covers the canonical ordered snapshot, so two stores
// with identical contents produce identical hashes.
func (s *Store) Stats() SnapshotStats {
	snapshot := s.Export()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		payload = nil
	}
	sum := sha256.Sum256(payload)
	return SnapshotStats{
		NodeCount:   len(snapshot.Nodes),
		TriadCount:  len(snapshot.Triads),
		ContentHash: hex.EncodeToString(sum[:]),
		TakenAt:     s.now(),
	}
}

// PersistSnapshot writes a stats record to the Port. Like every Port
// interaction, failure is logged and swallowed.
func (s *Store) PersistSnapshot(ctx context.Context) SnapshotStats {
	stats := s.Stats()
	s.writeThrough(ctx, "save_snapshot", "", func(p Port) error {
		return p.SaveSnapshot(ctx, stats)
	})
	return stats
}
