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

// chainStore builds a -> b -> c -> d connected by calls.
func chainStore(t *testing.T) (*Store, []string) {
	t.Helper()
	s := newTestStore(t)
	ids := make([]string, 0, 4)
	for _, name := range []string{"a", "b", "c", "d"} {
		ids = append(ids, addNode(t, s, NodeTypeService, "", name))
	}
	for i := 0; i < len(ids)-1; i++ {
		addTriad(t, s, ids[i], PredicateCalls, ids[i+1], 1)
	}
	return s, ids
}

func TestTraverseValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Traverse(ctx, TraversalQuery{})
	assert.ErrorIs(t, err, ErrInvalidTraversal)

	_, err = s.Traverse(ctx, TraversalQuery{StartNodes: []string{"a"}, Direction: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidTraversal)
}

func TestTraverseAbsentStartNode(t *testing.T) {
	s, ids := chainStore(t)

	result, err := s.Traverse(context.Background(), TraversalQuery{
		StartNodes: []string{"missing", ids[0]},
	})
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 4, "absent start nodes are skipped, not fatal")
}

func TestTraverseDepthBound(t *testing.T) {
	s, ids := chainStore(t)
	ctx := context.Background()

	result, err := s.Traverse(ctx, TraversalQuery{StartNodes: []string{ids[0]}, MaxDepth: 2})
	require.NoError(t, err)

	visited := make([]string, 0, len(result.Nodes))
	for _, node := range result.Nodes {
		visited = append(visited, node.ID)
	}
	assert.Equal(t, []string{ids[0], ids[1], ids[2]}, visited)

	for _, path := range result.Paths {
		assert.LessOrEqual(t, path.Depth(), 2)
	}
}

func TestTraverseDirection(t *testing.T) {
	s, ids := chainStore(t)
	ctx := context.Background()

	incoming, err := s.Traverse(ctx, TraversalQuery{
		StartNodes: []string{ids[3]},
		Direction:  DirectionIncoming,
	})
	require.NoError(t, err)
	assert.Len(t, incoming.Nodes, 4, "incoming walk follows edges backwards")

	outgoing, err := s.Traverse(ctx, TraversalQuery{
		StartNodes: []string{ids[3]},
		Direction:  DirectionOutgoing,
	})
	require.NoError(t, err)
	assert.Len(t, outgoing.Nodes, 1, "tail node has no outgoing edges")
}

func TestTraversePredicateRestriction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	c := addNode(t, s, NodeTypeService, "", "c")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, a, PredicateImports, c, 1)

	result, err := s.Traverse(ctx, TraversalQuery{
		StartNodes: []string{a},
		Predicates: []Predicate{PredicateCalls},
	})
	require.NoError(t, err)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, b, result.Nodes[1].ID)
}

func TestTraverseGlobalVisitedSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Diamond: a -> b, a -> c, b -> d, c -> d. d is reachable twice but
	// visited once.
	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	c := addNode(t, s, NodeTypeService, "", "c")
	d := addNode(t, s, NodeTypeService, "", "d")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, a, PredicateCalls, c, 1)
	addTriad(t, s, b, PredicateCalls, d, 1)
	addTriad(t, s, c, PredicateCalls, d, 1)

	result, err := s.Traverse(ctx, TraversalQuery{StartNodes: []string{a}})
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, node := range result.Nodes {
		seen[node.ID]++
	}
	assert.Len(t, result.Nodes, 4)
	assert.Equal(t, 1, seen[d], "each node appears at most once")
}

func TestTraverseCycleTerminates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, b, PredicateCalls, a, 1)

	result, err := s.Traverse(ctx, TraversalQuery{StartNodes: []string{a}, MaxDepth: 50})
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 2)
	assert.False(t, result.Truncated)
}

func TestTraverseLiteralObjectsSkipped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := addNode(t, s, NodeTypeFunction, "", "parse")
	addTriad(t, s, a, PredicateThrows, "ParseError", 1)

	result, err := s.Traverse(ctx, TraversalQuery{StartNodes: []string{a}})
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 1, "literal objects are not expandable")
	assert.Empty(t, result.Paths)
}

func TestTraversePathReconstruction(t *testing.T) {
	s, ids := chainStore(t)

	result, err := s.Traverse(context.Background(), TraversalQuery{StartNodes: []string{ids[0]}})
	require.NoError(t, err)
	require.Len(t, result.Paths, 3)

	// The deepest path walks the whole chain.
	deepest := result.Paths[len(result.Paths)-1]
	require.Equal(t, 3, deepest.Depth())
	assert.Equal(t, ids[0], deepest.Steps[0].From)
	assert.Equal(t, ids[3], deepest.Steps[2].To)
	for _, step := range deepest.Steps {
		assert.Equal(t, PredicateCalls, step.Predicate)
		assert.NotEmpty(t, step.TriadID)
	}
}

func TestTraverseCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	// Wide star so the walk needs more than one context check interval.
	hub := addNode(t, s, NodeTypeService, "", "hub")
	for i := 0; i < 300; i++ {
		leaf := addNode(t, s, NodeTypeFunction, "leaves", string(rune('a'+i%26))+string(rune('0'+i%10))+string(rune('A'+i/26%26)))
		addTriad(t, s, hub, PredicateCalls, leaf, 1)
	}
	cancel()

	result, err := s.Traverse(ctx, TraversalQuery{StartNodes: []string{hub}})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Less(t, len(result.Nodes), 301)
}
