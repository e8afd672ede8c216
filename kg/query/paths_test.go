// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
)

func TestFindShortestPathValidation(t *testing.T) {
	e := NewEngine(newTestStore(t))
	ctx := context.Background()

	_, err := e.FindShortestPath(ctx, PathQuery{To: "b"})
	assert.ErrorIs(t, err, ErrInvalidPathQuery)

	_, err = e.FindShortestPath(ctx, PathQuery{From: "a"})
	assert.ErrorIs(t, err, ErrInvalidPathQuery)

	_, err = e.FindShortestPath(ctx, PathQuery{From: "a", To: "b", MaxDepth: -1})
	assert.ErrorIs(t, err, ErrInvalidPathQuery)
}

func TestFindShortestPathPrefersConfidence(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// Two routes from a to d: direct with low confidence, and a two-hop
	// route through b with high confidence. Weight is 1 - confidence, so
	// the longer route is cheaper (0.1 + 0.1 < 0.9).
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	d := mustNode(t, s, kg.NodeTypeService, "", "d")
	mustTriad(t, s, a, kg.PredicateCalls, d, 0.1)
	t1 := mustTriad(t, s, a, kg.PredicateCalls, b, 0.9)
	t2 := mustTriad(t, s, b, kg.PredicateCalls, d, 0.9)

	path, err := e.FindShortestPath(ctx, PathQuery{From: a, To: d})
	require.NoError(t, err)
	require.NotNil(t, path)

	assert.Equal(t, []string{a, b, d}, path.Nodes)
	assert.Equal(t, []string{t1, t2}, path.Triads)
	assert.InDelta(t, 0.2, path.TotalWeight, 1e-9)
	assert.Equal(t, 2, path.Len())
}

func TestFindShortestPathDegeneratesToHopCount(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// With uniform confidence 0.5 every edge costs the same, so the
	// cheapest path is the fewest-hops path.
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	c := mustNode(t, s, kg.NodeTypeService, "", "c")
	d := mustNode(t, s, kg.NodeTypeService, "", "d")
	mustTriad(t, s, a, kg.PredicateCalls, b, 0.5)
	mustTriad(t, s, b, kg.PredicateCalls, c, 0.5)
	mustTriad(t, s, c, kg.PredicateCalls, d, 0.5)
	mustTriad(t, s, a, kg.PredicateImports, d, 0.5)

	path, err := e.FindShortestPath(ctx, PathQuery{From: a, To: d})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{a, d}, path.Nodes)
}

func TestFindShortestPathUndirected(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	mustTriad(t, s, b, kg.PredicateCalls, a, 0.8)

	// Edge orientation does not matter for reachability.
	path, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{a, b}, path.Nodes)
}

func TestFindShortestPathUnreachable(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")

	path, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err, "unreachable is a nil result, not an error")
	assert.Nil(t, path)

	// Absent endpoints behave like unreachable ones.
	path, err = e.FindShortestPath(ctx, PathQuery{From: a, To: "missing"})
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindShortestPathSameNode(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	path, err := e.FindShortestPath(context.Background(), PathQuery{From: a, To: a})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{a}, path.Nodes)
	assert.Zero(t, path.TotalWeight)
	assert.Zero(t, path.Len())
}

func TestFindShortestPathPredicateRestriction(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	mustTriad(t, s, a, kg.PredicateImports, b, 1)

	path, err := e.FindShortestPath(ctx, PathQuery{
		From: a, To: b,
		Predicates: []kg.Predicate{kg.PredicateCalls},
	})
	require.NoError(t, err)
	assert.Nil(t, path, "edges outside the predicate set are not crossable")
}

func TestFindShortestPathDepthBoundIsApproximate(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// m is reachable two ways: a cheap two-hop route through x and an
	// expensive direct edge. The cheap route wins the search tree, so m
	// carries two hops and a MaxDepth of 2 stops expansion there, hiding
	// the two-hop a-m-z route that crosses the direct edge.
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	x := mustNode(t, s, kg.NodeTypeService, "", "x")
	m := mustNode(t, s, kg.NodeTypeService, "", "m")
	z := mustNode(t, s, kg.NodeTypeService, "", "z")
	mustTriad(t, s, a, kg.PredicateCalls, x, 0.99)
	mustTriad(t, s, x, kg.PredicateCalls, m, 0.99)
	mustTriad(t, s, a, kg.PredicateCalls, m, 0.5)
	mustTriad(t, s, m, kg.PredicateCalls, z, 0.99)

	path, err := e.FindShortestPath(ctx, PathQuery{From: a, To: z, MaxDepth: 2})
	require.NoError(t, err)
	assert.Nil(t, path, "the bound prunes the cost-optimal tree, not every route")

	// Unbounded search finds the cheap three-hop route.
	path, err = e.FindShortestPath(ctx, PathQuery{From: a, To: z})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{a, x, m, z}, path.Nodes)

	// All-paths enumeration honors the depth bound exactly.
	paths, err := e.FindAllPaths(ctx, AllPathsQuery{From: a, To: z, MaxDepth: 2})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{a, m, z}, paths[0].Nodes)
}

func TestFindShortestPathCaching(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	mustTriad(t, s, a, kg.PredicateCalls, b, 0.5)

	first, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, e.CacheLen())

	// A mutation does not invalidate by default: the cached answer is
	// served until the TTL lapses.
	mustTriad(t, s, a, kg.PredicateImports, b, 0.99)
	second, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	assert.Equal(t, first.Triads, second.Triads)

	// Equivalent queries share an entry regardless of predicate order.
	_, err = e.FindShortestPath(ctx, PathQuery{
		From: a, To: b,
		Predicates: []kg.Predicate{kg.PredicateCalls, kg.PredicateImports},
	})
	require.NoError(t, err)
	_, err = e.FindShortestPath(ctx, PathQuery{
		From: a, To: b,
		Predicates: []kg.Predicate{kg.PredicateImports, kg.PredicateCalls},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, e.CacheLen())

	e.PurgeCache()
	assert.Zero(t, e.CacheLen())
}

func TestFindShortestPathInvalidateOnWrite(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, WithInvalidateOnWrite())
	ctx := context.Background()

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	low := mustTriad(t, s, a, kg.PredicateCalls, b, 0.2)

	first, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	require.Equal(t, []string{low}, first.Triads)

	// A new, cheaper edge must be seen immediately in this mode.
	high := mustTriad(t, s, a, kg.PredicateImports, b, 0.9)
	second, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	assert.Equal(t, []string{high}, second.Triads)
}

func TestFindShortestPathCachesNegativeResult(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")

	path, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	assert.Nil(t, path)
	assert.Equal(t, 1, e.CacheLen(), "unreachable is a cacheable answer")

	// Connecting the nodes is invisible until the TTL lapses.
	mustTriad(t, s, a, kg.PredicateCalls, b, 1)
	path, err = e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindShortestPathCancelledNotCached(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	mustTriad(t, s, a, kg.PredicateCalls, b, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.FindShortestPath(ctx, PathQuery{From: a, To: b})
	require.Error(t, err)
	assert.Zero(t, e.CacheLen())
}

func TestFindAllPaths(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// Diamond: two distinct simple paths from a to d.
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	c := mustNode(t, s, kg.NodeTypeService, "", "c")
	d := mustNode(t, s, kg.NodeTypeService, "", "d")
	mustTriad(t, s, a, kg.PredicateCalls, b, 0.9)
	mustTriad(t, s, b, kg.PredicateCalls, d, 0.9)
	mustTriad(t, s, a, kg.PredicateCalls, c, 0.5)
	mustTriad(t, s, c, kg.PredicateCalls, d, 0.5)

	paths, err := e.FindAllPaths(ctx, AllPathsQuery{From: a, To: d})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, path := range paths {
		assert.Equal(t, a, path.Nodes[0])
		assert.Equal(t, d, path.Nodes[len(path.Nodes)-1])
		assert.Len(t, path.Triads, len(path.Nodes)-1)
	}
}

func TestFindAllPathsDepthBound(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// Direct edge plus a three-hop detour.
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	c := mustNode(t, s, kg.NodeTypeService, "", "c")
	d := mustNode(t, s, kg.NodeTypeService, "", "d")
	mustTriad(t, s, a, kg.PredicateCalls, d, 0.5)
	mustTriad(t, s, a, kg.PredicateCalls, b, 0.5)
	mustTriad(t, s, b, kg.PredicateCalls, c, 0.5)
	mustTriad(t, s, c, kg.PredicateCalls, d, 0.5)

	all, err := e.FindAllPaths(ctx, AllPathsQuery{From: a, To: d})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	short, err := e.FindAllPaths(ctx, AllPathsQuery{From: a, To: d, MaxDepth: 1})
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, []string{a, d}, short[0].Nodes)
}

func TestFindAllPathsMaxPaths(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// Three parallel two-hop routes.
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	z := mustNode(t, s, kg.NodeTypeService, "", "z")
	for _, name := range []string{"m1", "m2", "m3"} {
		mid := mustNode(t, s, kg.NodeTypeService, "", name)
		mustTriad(t, s, a, kg.PredicateCalls, mid, 0.5)
		mustTriad(t, s, mid, kg.PredicateCalls, z, 0.5)
	}

	paths, err := e.FindAllPaths(ctx, AllPathsQuery{From: a, To: z, MaxPaths: 2})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestFindAllPathsSimplePathsOnly(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// Cycle a <-> b plus exit b -> c. No path may revisit a node, so the
	// cycle cannot be walked; the reciprocal triads are distinct edges,
	// giving one a-b-c path per crossing.
	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	b := mustNode(t, s, kg.NodeTypeService, "", "b")
	c := mustNode(t, s, kg.NodeTypeService, "", "c")
	ab := mustTriad(t, s, a, kg.PredicateCalls, b, 0.5)
	ba := mustTriad(t, s, b, kg.PredicateCalls, a, 0.5)
	mustTriad(t, s, b, kg.PredicateCalls, c, 0.5)

	paths, err := e.FindAllPaths(ctx, AllPathsQuery{From: a, To: c, MaxDepth: 10})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, path := range paths {
		assert.Equal(t, []string{a, b, c}, path.Nodes)
		seen := make(map[string]int)
		for _, id := range path.Nodes {
			seen[id]++
		}
		for id, count := range seen {
			assert.Equal(t, 1, count, "node %s repeated within a simple path", id)
		}
	}
	assert.NotEqual(t, paths[0].Triads[0], paths[1].Triads[0],
		"each crossing of a-b uses a different triad")
	for _, path := range paths {
		assert.Contains(t, []string{ab, ba}, path.Triads[0])
	}
}

func TestFindAllPathsValidation(t *testing.T) {
	e := NewEngine(newTestStore(t))
	ctx := context.Background()

	_, err := e.FindAllPaths(ctx, AllPathsQuery{From: "a"})
	assert.ErrorIs(t, err, ErrInvalidPathQuery)

	_, err = e.FindAllPaths(ctx, AllPathsQuery{From: "a", To: "b", MaxPaths: -1})
	assert.ErrorIs(t, err, ErrInvalidPathQuery)
}

func TestFindAllPathsAbsentEndpoints(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s)

	a := mustNode(t, s, kg.NodeTypeService, "", "a")
	paths, err := e.FindAllPaths(context.Background(), AllPathsQuery{From: a, To: "missing"})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestPathSignatureNormalizesPredicates(t *testing.T) {
	a := pathSignature(PathQuery{
		From: "x", To: "y",
		Predicates: []kg.Predicate{kg.PredicateCalls, kg.PredicateImports},
	})
	b := pathSignature(PathQuery{
		From: "x", To: "y",
		Predicates: []kg.Predicate{kg.PredicateImports, kg.PredicateCalls},
	})
	assert.Equal(t, a, b)

	c := pathSignature(PathQuery{From: "x", To: "y", MaxDepth: 3})
	assert.NotEqual(t, a, c)
}

func TestPathCacheTTLExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	e := NewEngine(newTestStore(t), WithCacheTTL(time.Minute), WithClock(clock))
	ctx := context.Background()

	e.cache.put(ctx, "k", &Path{Nodes: []string{"a"}}, 0)
	_, ok := e.cache.get(ctx, "k", 0)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = e.cache.get(ctx, "k", 0)
	assert.False(t, ok, "entry past its TTL is dropped")
	assert.Zero(t, e.CacheLen())
}
