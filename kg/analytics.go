// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Centrality (power iteration)
// =============================================================================

// Centrality configuration constants.
const (
	// DefaultDampingFactor is the probability of following a link (vs
	// random jump). Standard value from the original PageRank paper.
	DefaultDampingFactor = 0.85

	// DefaultMaxIterations is the maximum iterations before stopping.
	DefaultMaxIterations = 100

	// DefaultConvergence is the threshold for convergence detection.
	DefaultConvergence = 1e-6

	// smallGraphThreshold is the node count below which convergence checks
	// are skipped.
	smallGraphThreshold = 10
)

// CentralityOptions configures the power-iteration centrality
// approximation.
type CentralityOptions struct {
	// DampingFactor must be in [0, 1]. Default: 0.85
	DampingFactor float64

	// MaxIterations must be > 0. Default: 100
	MaxIterations int

	// Convergence must be > 0. Default: 1e-6
	Convergence float64
}

// Validate checks options and applies defaults for invalid values.
func (o *CentralityOptions) Validate() {
	if o.DampingFactor < 0 || o.DampingFactor > 1 {
		o.DampingFactor = DefaultDampingFactor
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Convergence <= 0 {
		o.Convergence = DefaultConvergence
	}
}

// DefaultCentralityOptions returns sensible defaults.
func DefaultCentralityOptions() *CentralityOptions {
	return &CentralityOptions{
		DampingFactor: DefaultDampingFactor,
		MaxIterations: DefaultMaxIterations,
		Convergence:   DefaultConvergence,
	}
}

// CentralityResult contains the output of the centrality computation.
type CentralityResult struct {
	// Scores maps node id to centrality score. Scores sum to
	// approximately 1.0.
	Scores map[string]float64

	// Iterations is the actual number of iterations performed.
	Iterations int

	// Converged indicates whether the run converged before MaxIterations.
	Converged bool
}

// CentralityScores approximates node importance by power iteration.
//
// Description:
//
//	Converges toward a PageRank-like score: each node's score is fed by
//	its incoming edges, each contribution weighted by the source node's
//	out-degree. Sink nodes redistribute their score evenly across the
//	graph so rank does not leak. Only triads whose both endpoints are
//	present nodes participate; literal objects are ignored.
//
// Thread Safety: Safe for concurrent use.
//
// Complexity: O(k × E) where k = iterations to converge.
func (s *Store) CentralityScores(ctx context.Context, opts *CentralityOptions) *CentralityResult {
	ctx, span := startSpan(ctx, "CentralityScores")
	defer span.End()

	if opts == nil {
		opts = DefaultCentralityOptions()
	} else {
		opts.Validate()
	}

	s.mu.RLock()
	incoming, outDegree := s.directedAdjacencyLocked()
	n := float64(len(s.nodes))
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	if n == 0 {
		span.AddEvent("empty_graph")
		return &CentralityResult{Scores: make(map[string]float64), Converged: true}
	}

	d := opts.DampingFactor
	scores := make(map[string]float64, len(ids))
	newScores := make(map[string]float64, len(ids))
	initial := 1.0 / n
	sinks := make([]string, 0)
	for _, id := range ids {
		scores[id] = initial
		if outDegree[id] == 0 {
			sinks = append(sinks, id)
		}
	}

	var iterations int
	var converged bool
	var maxDiff float64

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("kg.iterations_completed", iter),
			))
			return &CentralityResult{Scores: scores, Iterations: iter}
		}

		maxDiff = 0.0

		sinkContribution := 0.0
		for _, id := range sinks {
			sinkContribution += scores[id]
		}
		sinkContribution = d * sinkContribution / n

		for _, id := range ids {
			newScore := (1-d)/n + sinkContribution
			for _, from := range incoming[id] {
				if deg := outDegree[from]; deg > 0 {
					newScore += d * scores[from] / float64(deg)
				}
			}
			newScores[id] = newScore

			if diff := math.Abs(newScore - scores[id]); diff > maxDiff {
				maxDiff = diff
			}
		}

		// Swap maps instead of reallocating.
		scores, newScores = newScores, scores
		iterations = iter + 1

		if int(n) < smallGraphThreshold || maxDiff < opts.Convergence {
			converged = true
			break
		}
	}

	s.logger.Debug("centrality completed",
		slog.Int("iterations", iterations),
		slog.Bool("converged", converged),
		slog.Int("node_count", int(n)),
	)
	span.SetAttributes(
		attribute.Int("kg.iterations", iterations),
		attribute.Bool("kg.converged", converged),
	)

	return &CentralityResult{Scores: scores, Iterations: iterations, Converged: converged}
}

// =============================================================================
// Connected components
// =============================================================================

// ConnectedComponents groups nodes into components of the triad graph
// treated as undirected.
//
// Description:
//
//	Repeated DFS over the undirected adjacency, with an explicit work
//	stack. Treating edges as undirected is a deliberate simplification:
//	these are weakly, not strongly, connected components. Components are
//	sorted by size descending (ties by first member id) and each
//	component's members are sorted, so output is deterministic.
func (s *Store) ConnectedComponents(ctx context.Context) [][]string {
	ctx, span := startSpan(ctx, "ConnectedComponents")
	defer span.End()

	s.mu.RLock()
	adjacency := s.undirectedAdjacencyLocked()
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	visited := make(map[string]bool, len(ids))
	components := make([][]string, 0)

	for _, root := range ids {
		if visited[root] {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		component := make([]string, 0)
		stack := []string{root}
		visited[root] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, id)
			for _, next := range adjacency[id] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}

	sort.Slice(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})

	span.SetAttributes(attribute.Int("kg.components", len(components)))
	return components
}

// =============================================================================
// Clustering coefficient
// =============================================================================

// ClusteringCoefficient measures how tightly the graph's neighborhoods
// are knit.
//
// Description:
//
//	For each node with at least two undirected neighbors, the ratio of
//	realized to possible triangles among those neighbors; the result is
//	the average over all such nodes. Returns 0 for graphs with no
//	qualifying node.
func (s *Store) ClusteringCoefficient(ctx context.Context) float64 {
	_, span := startSpan(ctx, "ClusteringCoefficient")
	defer span.End()

	s.mu.RLock()
	adjacency := s.undirectedAdjacencyLocked()
	s.mu.RUnlock()

	neighborSets := make(map[string]map[string]struct{}, len(adjacency))
	for id, neighbors := range adjacency {
		set := make(map[string]struct{}, len(neighbors))
		for _, n := range neighbors {
			set[n] = struct{}{}
		}
		neighborSets[id] = set
	}

	total := 0.0
	counted := 0
	for _, neighbors := range adjacency {
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if _, ok := neighborSets[neighbors[i]][neighbors[j]]; ok {
					links++
				}
			}
		}
		total += float64(2*links) / float64(k*(k-1))
		counted++
	}

	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

// =============================================================================
// Semantic clusters
// =============================================================================

// SemanticClusters expands clusters breadth-first along is_similar_to and
// is_type_of edges only (both directions). Singletons are not reported.
// Output ordering matches ConnectedComponents.
func (s *Store) SemanticClusters(ctx context.Context) [][]string {
	ctx, span := startSpan(ctx, "SemanticClusters")
	defer span.End()

	s.mu.RLock()
	adjacency := make(map[string][]string)
	for id, triadIDs := range s.triadsBySubject {
		if _, ok := s.nodes[id]; !ok {
			continue
		}
		for triadID := range triadIDs {
			triad := s.triads[triadID]
			if _, ok := semanticPredicates[triad.Predicate]; !ok {
				continue
			}
			if _, ok := s.nodes[triad.Object]; !ok {
				continue
			}
			adjacency[triad.Subject] = append(adjacency[triad.Subject], triad.Object)
			adjacency[triad.Object] = append(adjacency[triad.Object], triad.Subject)
		}
	}
	s.mu.RUnlock()

	seeds := make([]string, 0, len(adjacency))
	for id := range adjacency {
		seeds = append(seeds, id)
	}
	sort.Strings(seeds)

	visited := make(map[string]bool, len(adjacency))
	clusters := make([][]string, 0)

	for _, seed := range seeds {
		if visited[seed] {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		cluster := make([]string, 0)
		queue := []string{seed}
		visited[seed] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			cluster = append(cluster, id)
			for _, next := range adjacency[id] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		if len(cluster) < 2 {
			continue
		}
		sort.Strings(cluster)
		clusters = append(clusters, cluster)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})

	span.SetAttributes(attribute.Int("kg.clusters", len(clusters)))
	return clusters
}

// =============================================================================
// Adjacency helpers
// =============================================================================

// directedAdjacencyLocked returns incoming edge lists and out-degrees over
// node endpoints. Caller holds at least the read lock.
func (s *Store) directedAdjacencyLocked() (incoming map[string][]string, outDegree map[string]int) {
	incoming = make(map[string][]string, len(s.nodes))
	outDegree = make(map[string]int, len(s.nodes))
	for _, triad := range s.triads {
		if _, ok := s.nodes[triad.Subject]; !ok {
			continue
		}
		if _, ok := s.nodes[triad.Object]; !ok {
			continue
		}
		incoming[triad.Object] = append(incoming[triad.Object], triad.Subject)
		outDegree[triad.Subject]++
	}
	return incoming, outDegree
}

// undirectedAdjacencyLocked returns deduplicated undirected neighbor
// lists over node endpoints. Caller holds at least the read lock.
func (s *Store) undirectedAdjacencyLocked() map[string][]string {
	seen := make(map[string]map[string]struct{}, len(s.nodes))
	link := func(a, b string) {
		set := seen[a]
		if set == nil {
			set = make(map[string]struct{})
			seen[a] = set
		}
		set[b] = struct{}{}
	}
	for _, triad := range s.triads {
		if triad.Subject == triad.Object {
			continue
		}
		if _, ok := s.nodes[triad.Subject]; !ok {
			continue
		}
		if _, ok := s.nodes[triad.Object]; !ok {
			continue
		}
		link(triad.Subject, triad.Object)
		link(triad.Object, triad.Subject)
	}

	adjacency := make(map[string][]string, len(seen))
	for id, set := range seen {
		neighbors := make([]string, 0, len(set))
		for n := range set {
			neighbors = append(neighbors, n)
		}
		sort.Strings(neighbors)
		adjacency[id] = neighbors
	}
	return adjacency
}
