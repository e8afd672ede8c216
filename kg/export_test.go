// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	source := newTestStore(t)
	ctx := context.Background()

	a := addNode(t, source, NodeTypeClass, "auth", "UserService")
	b := addNode(t, source, NodeTypeClass, "billing", "OrderService")
	addTriad(t, source, a, PredicateCalls, b, 0.8)
	addTriad(t, source, a, PredicateThrows, "AuthError", 1.0)

	snapshot := source.Export()
	require.Len(t, snapshot.Nodes, 2)
	require.Len(t, snapshot.Triads, 2)

	target := newTestStore(t)
	require.NoError(t, target.Import(ctx, snapshot))

	assert.Equal(t, source.NodeCount(), target.NodeCount())
	assert.Equal(t, source.TriadCount(), target.TriadCount())
	assert.Equal(t, snapshot, target.Export(), "round trip preserves ids and timestamps verbatim")

	// Indexes are rebuilt: traversal and filtered queries still work.
	result, err := target.Traverse(ctx, TraversalQuery{StartNodes: []string{a}})
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 2)

	calls, err := target.QueryTriads(ctx, TriadFilter{Predicates: []Predicate{PredicateCalls}})
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestImportReplacesExistingContents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addNode(t, s, NodeTypeClass, "", "doomed")

	require.NoError(t, s.Import(ctx, &Snapshot{
		Nodes: []Node{{ID: "n1", Type: NodeTypeService, Name: "svc"}},
	}))

	assert.Equal(t, 1, s.NodeCount())
	_, ok := s.GetNode("n1")
	assert.True(t, ok)
	_, ok = s.GetNode(NodeID(NodeTypeClass, "", "doomed"))
	assert.False(t, ok)
}

func TestImportValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Import(ctx, nil), ErrInvalidSnapshot)
	assert.ErrorIs(t, s.Import(ctx, &Snapshot{
		Nodes: []Node{{Type: NodeTypeClass, Name: "no-id"}},
	}), ErrInvalidSnapshot)
	assert.ErrorIs(t, s.Import(ctx, &Snapshot{
		Triads: []Triad{{Subject: "a", Predicate: PredicateCalls, Object: "b"}},
	}), ErrInvalidSnapshot)
}

func TestImportMirrorsToPort(t *testing.T) {
	port := &recordingPort{}
	s := newTestStore(t, WithPort(port))

	require.NoError(t, s.Import(context.Background(), &Snapshot{
		Nodes:  []Node{{ID: "n1", Type: NodeTypeService, Name: "svc"}},
		Triads: []Triad{{ID: "t1", Subject: "n1", Predicate: PredicateCalls, Object: "x", Confidence: 1}},
	}))

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.ElementsMatch(t, []string{"node:n1", "triad:t1"}, port.upserts)
}

func TestStatsContentHash(t *testing.T) {
	first := newTestStore(t)
	second := newTestStore(t)
	ctx := context.Background()

	snapshot := &Snapshot{
		Nodes: []Node{{ID: "n1", Type: NodeTypeService, Name: "svc"}},
	}
	require.NoError(t, first.Import(ctx, snapshot))
	require.NoError(t, second.Import(ctx, snapshot))

	a, b := first.Stats(), second.Stats()
	assert.Equal(t, 1, a.NodeCount)
	assert.Equal(t, 0, a.TriadCount)
	assert.NotEmpty(t, a.ContentHash)
	assert.Equal(t, a.ContentHash, b.ContentHash, "identical contents hash identically")

	addNode(t, first, NodeTypeClass, "", "extra")
	assert.NotEqual(t, a.ContentHash, first.Stats().ContentHash)
}

func TestPersistSnapshotWritesStats(t *testing.T) {
	port := &recordingPort{}
	s := newTestStore(t, WithPort(port))
	addNode(t, s, NodeTypeClass, "", "x")

	stats := s.PersistSnapshot(context.Background())
	assert.Equal(t, 1, stats.NodeCount)
	assert.False(t, stats.TakenAt.IsZero())
}
