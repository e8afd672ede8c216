// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentralityScoresEmptyGraph(t *testing.T) {
	s := newTestStore(t)
	result := s.CentralityScores(context.Background(), nil)
	require.NotNil(t, result)
	assert.Empty(t, result.Scores)
}

func TestCentralityScoresHubDominates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hub := addNode(t, s, NodeTypeService, "", "hub")
	leaves := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		leaf := addNode(t, s, NodeTypeService, "", fmt.Sprintf("leaf%d", i))
		leaves = append(leaves, leaf)
		addTriad(t, s, leaf, PredicateDependsOn, hub, 1)
	}

	result := s.CentralityScores(ctx, nil)
	require.NotNil(t, result)
	require.Len(t, result.Scores, 6)

	for _, leaf := range leaves {
		assert.Greater(t, result.Scores[hub], result.Scores[leaf],
			"node with all incoming edges must outrank its sources")
	}

	total := 0.0
	for _, score := range result.Scores {
		total += score
	}
	assert.InDelta(t, 1.0, total, 0.01, "scores are a probability distribution")
}

func TestCentralityScoresConverges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, b, PredicateCalls, a, 1)

	result := s.CentralityScores(ctx, &CentralityOptions{MaxIterations: 100, Convergence: 1e-6})
	assert.True(t, result.Converged)
	assert.Less(t, result.Iterations, 100)
	assert.InDelta(t, result.Scores[a], result.Scores[b], 1e-6, "symmetric graph yields symmetric scores")
}

func TestConnectedComponents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Component 1: a - b - c (direction must not matter).
	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	c := addNode(t, s, NodeTypeService, "", "c")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, c, PredicateCalls, b, 1)

	// Component 2: d - e.
	d := addNode(t, s, NodeTypeService, "", "d")
	e := addNode(t, s, NodeTypeService, "", "e")
	addTriad(t, s, d, PredicateImports, e, 1)

	// Isolated node.
	f := addNode(t, s, NodeTypeService, "", "f")

	components := s.ConnectedComponents(ctx)
	require.Len(t, components, 3)

	// Largest first; members sorted.
	assert.Len(t, components[0], 3)
	assert.Len(t, components[1], 2)
	assert.Equal(t, []string{f}, components[2])

	assert.ElementsMatch(t, []string{a, b, c}, components[0])
	assert.ElementsMatch(t, []string{d, e}, components[1])
}

func TestClusteringCoefficient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Triangle: every node's neighbors are fully connected.
	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	c := addNode(t, s, NodeTypeService, "", "c")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, b, PredicateCalls, c, 1)
	addTriad(t, s, c, PredicateCalls, a, 1)

	assert.InDelta(t, 1.0, s.ClusteringCoefficient(ctx), 1e-9)

	// Adding a pendant node dilutes the average.
	d := addNode(t, s, NodeTypeService, "", "d")
	addTriad(t, s, a, PredicateCalls, d, 1)
	assert.Less(t, s.ClusteringCoefficient(ctx), 1.0)
}

func TestClusteringCoefficientPathGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := addNode(t, s, NodeTypeService, "", "a")
	b := addNode(t, s, NodeTypeService, "", "b")
	c := addNode(t, s, NodeTypeService, "", "c")
	addTriad(t, s, a, PredicateCalls, b, 1)
	addTriad(t, s, b, PredicateCalls, c, 1)

	assert.Zero(t, s.ClusteringCoefficient(ctx), "no triangles means zero coefficient")
}

func TestSemanticClusters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Cluster via semantic predicates.
	a := addNode(t, s, NodeTypeConcept, "", "cache")
	b := addNode(t, s, NodeTypeConcept, "", "memo")
	c := addNode(t, s, NodeTypeConcept, "", "buffer")
	addTriad(t, s, a, PredicateIsSimilarTo, b, 0.9)
	addTriad(t, s, c, PredicateIsTypeOf, a, 0.8)

	// Structurally connected but not semantically.
	d := addNode(t, s, NodeTypeService, "", "svc")
	addTriad(t, s, a, PredicateCalls, d, 1)

	// Semantic pair forming a second cluster.
	e := addNode(t, s, NodeTypeConcept, "", "queue")
	f := addNode(t, s, NodeTypeConcept, "", "stack")
	addTriad(t, s, e, PredicateIsSimilarTo, f, 0.7)

	clusters := s.SemanticClusters(ctx)
	require.Len(t, clusters, 2, "singletons and non-semantic edges are excluded")
	assert.ElementsMatch(t, []string{a, b, c}, clusters[0])
	assert.ElementsMatch(t, []string{e, f}, clusters[1])
}
