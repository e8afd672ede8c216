// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"container/heap"
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Centrality computation limits.
const (
	// maxBetweennessNodes caps the graph size for betweenness: the
	// computation is all-pairs shortest paths, cubic in the worst case,
	// and unusable beyond a few hundred nodes. Larger graphs get a zero
	// betweenness and a debug log.
	maxBetweennessNodes = 500

	// eigenvectorIterations bounds the power iteration.
	eigenvectorIterations = 100

	// eigenvectorConvergence is the L1 delta below which the power
	// iteration stops early.
	eigenvectorConvergence = 1e-6

	// minDistanceSum keeps closeness finite when every reachable node sits
	// at zero weight (all edges carry confidence 1).
	minDistanceSum = 1e-9
)

// CentralityReport collects four centrality measures for one node. All
// values are normalized to be comparable across graphs of different
// sizes, though betweenness is exact only up to maxBetweennessNodes.
type CentralityReport struct {
	NodeID string `json:"node_id"`

	// Degree is the fraction of other nodes this node touches directly.
	Degree float64 `json:"degree"`

	// Closeness is reachable-count over summed shortest-path weight.
	Closeness float64 `json:"closeness"`

	// Betweenness is the fraction of shortest paths between other node
	// pairs that route through this node.
	Betweenness float64 `json:"betweenness"`

	// Eigenvector scores the node by the scores of its neighbors.
	Eigenvector float64 `json:"eigenvector"`
}

// AnalyzeNodeCentrality computes the centrality profile of one node.
//
// Description:
//
//	All four measures run over the undirected view of the graph with
//	every predicate crossable. Degree and eigenvector use the deduplicated
//	neighbor sets; closeness and betweenness use shortest-path weights
//	(1 - confidence). The whole computation works from one consistent
//	snapshot, so a concurrent write cannot skew individual measures
//	against each other.
//
// Outputs:
//
//	*CentralityReport - nil when the node does not exist.
func (e *Engine) AnalyzeNodeCentrality(ctx context.Context, nodeID string) (*CentralityReport, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "AnalyzeNodeCentrality", attribute.String("kg.node_id", nodeID))
	defer span.End()

	adjacency, nodes := e.undirectedAdjacency(nil)
	if _, ok := nodes[nodeID]; !ok {
		return nil, nil
	}

	n := len(nodes)
	report := &CentralityReport{NodeID: nodeID}
	if n < 2 {
		recordOp(ctx, "centrality", time.Since(start))
		return report, nil
	}

	neighbors := neighborSets(adjacency)
	report.Degree = float64(len(neighbors[nodeID])) / float64(n-1)

	dist, _ := dijkstraTree(ctx, adjacency, nodeID)
	reachable := 0
	sum := 0.0
	for id, d := range dist {
		if id == nodeID {
			continue
		}
		reachable++
		sum += d
	}
	if reachable > 0 {
		report.Closeness = float64(reachable) / math.Max(sum, minDistanceSum)
	}

	if n <= maxBetweennessNodes {
		report.Betweenness = e.betweenness(ctx, adjacency, nodes, nodeID)
	} else {
		e.logger.Debug("betweenness skipped, graph too large",
			slog.Int("nodes", n),
			slog.Int("limit", maxBetweennessNodes))
		span.SetAttributes(attribute.Bool("kg.betweenness_skipped", true))
	}

	report.Eigenvector = eigenvectorScore(ctx, neighbors, nodeID)

	recordOp(ctx, "centrality", time.Since(start))
	return report, nil
}

// betweenness computes the fraction of pairwise shortest paths passing
// through nodeID. One shortest path per pair is counted (the one the
// search discovers), which approximates the textbook measure without
// path-counting bookkeeping.
func (e *Engine) betweenness(ctx context.Context, adjacency map[string][]graphEdge, nodes map[string]struct{}, nodeID string) float64 {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	through := 0
	pairs := 0
	for _, source := range ids {
		if source == nodeID {
			continue
		}
		if ctx.Err() != nil {
			return 0
		}
		_, prev := dijkstraTree(ctx, adjacency, source)
		for _, target := range ids {
			if target == source || target == nodeID {
				continue
			}
			onPath, reachable := pathContains(prev, source, target, nodeID)
			if !reachable {
				continue
			}
			pairs++
			if onPath {
				through++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(through) / float64(pairs)
}

// pathContains walks the predecessor tree from target back to source and
// reports whether via appears as an intermediate node.
func pathContains(prev map[string]graphEdge, source, target, via string) (onPath, reachable bool) {
	current := target
	for current != source {
		edge, ok := prev[current]
		if !ok {
			return false, false
		}
		current = edge.to
		if current == via && current != source {
			onPath = true
		}
	}
	return onPath, true
}

// dijkstraTree computes shortest-path distances and predecessors from
// source to every reachable node. prev values point backward: prev[v].to
// is the node before v on its shortest path.
func dijkstraTree(ctx context.Context, adjacency map[string][]graphEdge, source string) (map[string]float64, map[string]graphEdge) {
	dist := map[string]float64{source: 0}
	prev := make(map[string]graphEdge)
	done := make(map[string]struct{})

	pq := &pathHeap{}
	heap.Init(pq)
	heap.Push(pq, &pathHeapItem{nodeID: source, dist: 0})

	checkCounter := 0
	for pq.Len() > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 && ctx.Err() != nil {
			break
		}

		item := heap.Pop(pq).(*pathHeapItem)
		if _, ok := done[item.nodeID]; ok {
			continue
		}
		done[item.nodeID] = struct{}{}

		for _, edge := range adjacency[item.nodeID] {
			if _, ok := done[edge.to]; ok {
				continue
			}
			candidate := dist[item.nodeID] + edge.weight
			current, seen := dist[edge.to]
			if seen && candidate >= current {
				continue
			}
			dist[edge.to] = candidate
			prev[edge.to] = graphEdge{to: item.nodeID, triadID: edge.triadID, weight: edge.weight}
			heap.Push(pq, &pathHeapItem{nodeID: edge.to, dist: candidate})
		}
	}
	return dist, prev
}

// neighborSets deduplicates parallel edges into per-node neighbor sets.
func neighborSets(adjacency map[string][]graphEdge) map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{}, len(adjacency))
	for id, edges := range adjacency {
		set := make(map[string]struct{}, len(edges))
		for _, edge := range edges {
			set[edge.to] = struct{}{}
		}
		sets[id] = set
	}
	return sets
}

// eigenvectorScore runs unweighted power iteration over the neighbor
// sets and returns the converged score of nodeID, max-normalized so the
// best-connected node scores 1.
func eigenvectorScore(ctx context.Context, neighbors map[string]map[string]struct{}, nodeID string) float64 {
	if len(neighbors[nodeID]) == 0 {
		return 0
	}

	ids := make([]string, 0, len(neighbors))
	for id := range neighbors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		scores[id] = 1
	}

	for iter := 0; iter < eigenvectorIterations; iter++ {
		if iter%10 == 0 && ctx.Err() != nil {
			break
		}
		next := make(map[string]float64, len(ids))
		maxScore := 0.0
		for _, id := range ids {
			// Self term shifts the matrix by the identity, which breaks the
			// period-2 oscillation on bipartite graphs without changing the
			// eigenvector ranking.
			total := scores[id]
			for neighbor := range neighbors[id] {
				total += scores[neighbor]
			}
			next[id] = total
			if total > maxScore {
				maxScore = total
			}
		}
		if maxScore == 0 {
			return 0
		}
		delta := 0.0
		for _, id := range ids {
			next[id] /= maxScore
			delta += math.Abs(next[id] - scores[id])
		}
		scores = next
		if delta < eigenvectorConvergence {
			break
		}
	}
	return scores[nodeID]
}
