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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
)

// Path search limits.
const (
	// DefaultAllPathsDepth is the default maximum length for all-paths
	// enumeration. Deliberately tighter than the traversal default: path
	// enumeration grows combinatorially with depth.
	DefaultAllPathsDepth = 5

	// MaxAllPathsDepth caps all-paths enumeration depth.
	MaxAllPathsDepth = 20

	// DefaultMaxPaths bounds how many paths one enumeration returns.
	DefaultMaxPaths = 100

	// MaxPathsCap is the hard upper bound on requested path counts.
	MaxPathsCap = 1000

	// contextCheckInterval is how often to check context during search.
	contextCheckInterval = 100
)

// Path is a walk through the graph from one node to another. Nodes holds
// the node ids in order; Triads holds the id of the edge crossed between
// each consecutive pair, so len(Triads) == len(Nodes)-1. TotalWeight is
// the sum of edge weights (1 - confidence): lower means the path crosses
// higher-confidence facts.
type Path struct {
	Nodes       []string `json:"nodes"`
	Triads      []string `json:"triads"`
	TotalWeight float64  `json:"total_weight"`
}

// Len is the number of edges in the path.
func (p *Path) Len() int {
	return len(p.Triads)
}

// PathQuery describes a shortest-path request. Edges are crossed in
// either direction regardless of triad orientation.
type PathQuery struct {
	// From and To are node ids. Required.
	From string `json:"from"`
	To   string `json:"to"`

	// Predicates restricts which triads are crossable. Empty means all.
	Predicates []kg.Predicate `json:"predicates,omitempty"`

	// MaxDepth bounds the path length in edges. Zero means unbounded.
	// The bound prunes the cost-optimal search tree: when the cheapest
	// route to an intermediate node already exceeds it, a costlier route
	// within the bound is not explored, so a path can be reported
	// unreachable even though one exists under the bound. Use FindAllPaths
	// when the depth bound must be exact.
	MaxDepth int `json:"max_depth,omitempty"`
}

// AllPathsQuery describes a bounded all-paths enumeration.
type AllPathsQuery struct {
	From string `json:"from"`
	To   string `json:"to"`

	// Predicates restricts which triads are crossable. Empty means all.
	Predicates []kg.Predicate `json:"predicates,omitempty"`

	// MaxDepth bounds path length in edges. Zero uses DefaultAllPathsDepth.
	MaxDepth int `json:"max_depth,omitempty"`

	// MaxPaths bounds the result count. Zero uses DefaultMaxPaths.
	MaxPaths int `json:"max_paths,omitempty"`
}

// graphEdge is one crossable edge in the search adjacency, oriented from
// the map key toward To.
type graphEdge struct {
	to      string
	triadID string
	weight  float64
}

// FindShortestPath returns the minimum-weight path between two nodes.
//
// Description:
//
//	Runs Dijkstra's algorithm over an undirected view of the graph where
//	each triad costs 1 - confidence, so the search prefers routes through
//	high-confidence facts. Results, including the unreachable outcome,
//	are cached by query signature for the configured TTL; concurrent
//	identical queries share one computation.
//
// Outputs:
//
//	*Path - The cheapest path, or nil when To is unreachable from From
//	(including when either node is absent). Ties break toward the path
//	discovered first, which is deterministic given insertion order.
//	error - ErrInvalidPathQuery for a missing endpoint or negative depth.
func (e *Engine) FindShortestPath(ctx context.Context, q PathQuery) (*Path, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "FindShortestPath",
		attribute.String("kg.from", q.From),
		attribute.String("kg.to", q.To),
	)
	defer span.End()

	if q.From == "" || q.To == "" {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidPathQuery)
	}
	if q.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: negative max depth", ErrInvalidPathQuery)
	}

	key := pathSignature(q)
	var minVersion int64
	if e.options.InvalidateOnWrite {
		minVersion = e.store.Version()
	}
	if path, ok := e.cache.get(ctx, key, minVersion); ok {
		span.SetAttributes(attribute.Bool("kg.cache_hit", true))
		recordOp(ctx, "shortest_path", time.Since(start))
		return clonePath(path), nil
	}

	value, err, _ := e.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry between our miss and this computation.
		if path, ok := e.cache.get(ctx, key, minVersion); ok {
			return path, nil
		}
		path := e.dijkstra(ctx, q)
		if err := ctx.Err(); err != nil {
			// A cancelled search proves nothing about reachability.
			return nil, err
		}
		e.cache.put(ctx, key, path, e.store.Version())
		return path, nil
	})
	if err != nil {
		return nil, err
	}

	recordOp(ctx, "shortest_path", time.Since(start))
	path, _ := value.(*Path)
	span.SetAttributes(attribute.Bool("kg.found", path != nil))
	return clonePath(path), nil
}

// dijkstra computes the cheapest path for q, or nil when unreachable.
func (e *Engine) dijkstra(ctx context.Context, q PathQuery) *Path {
	if q.From == q.To {
		if _, ok := e.store.GetNode(q.From); !ok {
			return nil
		}
		return &Path{Nodes: []string{q.From}, Triads: []string{}}
	}

	adjacency, nodes := e.undirectedAdjacency(q.Predicates)
	if _, ok := nodes[q.From]; !ok {
		return nil
	}
	if _, ok := nodes[q.To]; !ok {
		return nil
	}

	dist := map[string]float64{q.From: 0}
	hops := map[string]int{q.From: 0}
	prev := make(map[string]graphEdge) // value.to is the PREVIOUS node
	done := make(map[string]struct{})

	pq := &pathHeap{}
	heap.Init(pq)
	heap.Push(pq, &pathHeapItem{nodeID: q.From, dist: 0})

	checkCounter := 0
	for pq.Len() > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 && ctx.Err() != nil {
			return nil
		}

		item := heap.Pop(pq).(*pathHeapItem)
		if _, ok := done[item.nodeID]; ok {
			continue
		}
		done[item.nodeID] = struct{}{}
		if item.nodeID == q.To {
			break
		}
		if q.MaxDepth > 0 && hops[item.nodeID] >= q.MaxDepth {
			continue
		}

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
			hops[edge.to] = hops[item.nodeID] + 1
			prev[edge.to] = graphEdge{to: item.nodeID, triadID: edge.triadID, weight: edge.weight}
			heap.Push(pq, &pathHeapItem{nodeID: edge.to, dist: candidate})
		}
	}

	if _, ok := done[q.To]; !ok {
		return nil
	}
	return reconstruct(prev, q.From, q.To, dist[q.To])
}

// FindAllPaths enumerates simple paths between two nodes, up to a depth
// and count bound.
//
// Description:
//
//	Depth-first enumeration over the undirected view. Unlike Traverse,
//	the visited check is scoped to the current path, so a node may appear
//	in many paths but never twice within one. Paths are returned in
//	discovery order, which follows edge creation order.
//
// Errors:
//
//	ErrInvalidPathQuery - missing endpoint or negative bounds
func (e *Engine) FindAllPaths(ctx context.Context, q AllPathsQuery) ([]*Path, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "FindAllPaths",
		attribute.String("kg.from", q.From),
		attribute.String("kg.to", q.To),
	)
	defer span.End()

	if q.From == "" || q.To == "" {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidPathQuery)
	}
	if q.MaxDepth < 0 || q.MaxPaths < 0 {
		return nil, fmt.Errorf("%w: negative bound", ErrInvalidPathQuery)
	}
	maxDepth := q.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultAllPathsDepth
	}
	if maxDepth > MaxAllPathsDepth {
		maxDepth = MaxAllPathsDepth
	}
	maxPaths := q.MaxPaths
	if maxPaths == 0 {
		maxPaths = DefaultMaxPaths
	}
	if maxPaths > MaxPathsCap {
		maxPaths = MaxPathsCap
	}

	adjacency, nodes := e.undirectedAdjacency(q.Predicates)
	results := make([]*Path, 0)
	if _, ok := nodes[q.From]; !ok {
		return results, nil
	}
	if _, ok := nodes[q.To]; !ok {
		return results, nil
	}
	if q.From == q.To {
		results = append(results, &Path{Nodes: []string{q.From}, Triads: []string{}})
		return results, nil
	}

	// Each frame owns its path copies: simple and safe at the expense of
	// allocation, which the depth and count bounds keep acceptable.
	type frame struct {
		nodeID string
		nodes  []string
		triads []string
		weight float64
	}
	stack := []frame{{nodeID: q.From, nodes: []string{q.From}, triads: []string{}}}

	checkCounter := 0
	for len(stack) > 0 && len(results) < maxPaths {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 && ctx.Err() != nil {
			break
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.nodeID == q.To {
			results = append(results, &Path{
				Nodes:       top.nodes,
				Triads:      top.triads,
				TotalWeight: top.weight,
			})
			continue
		}
		if len(top.triads) >= maxDepth {
			continue
		}

		onPath := make(map[string]struct{}, len(top.nodes))
		for _, id := range top.nodes {
			onPath[id] = struct{}{}
		}
		edges := adjacency[top.nodeID]
		// Reverse push keeps discovery order on a LIFO stack.
		for i := len(edges) - 1; i >= 0; i-- {
			edge := edges[i]
			if _, ok := onPath[edge.to]; ok {
				continue
			}
			nextNodes := append(append(make([]string, 0, len(top.nodes)+1), top.nodes...), edge.to)
			nextTriads := append(append(make([]string, 0, len(top.triads)+1), top.triads...), edge.triadID)
			stack = append(stack, frame{
				nodeID: edge.to,
				nodes:  nextNodes,
				triads: nextTriads,
				weight: top.weight + edge.weight,
			})
		}
	}

	recordOp(ctx, "all_paths", time.Since(start))
	span.SetAttributes(attribute.Int("kg.paths", len(results)))
	return results, nil
}

// undirectedAdjacency builds the search adjacency from a consistent
// snapshot of the store. Triads whose object is a literal or a dangling
// reference are not crossable; self loops are dropped. Edge lists follow
// snapshot order (creation time, then id), which makes every search
// deterministic.
func (e *Engine) undirectedAdjacency(preds []kg.Predicate) (map[string][]graphEdge, map[string]struct{}) {
	snapshot := e.store.Export()

	nodes := make(map[string]struct{}, len(snapshot.Nodes))
	for i := range snapshot.Nodes {
		nodes[snapshot.Nodes[i].ID] = struct{}{}
	}

	var allowed map[kg.Predicate]struct{}
	if len(preds) > 0 {
		allowed = make(map[kg.Predicate]struct{}, len(preds))
		for _, p := range preds {
			allowed[p] = struct{}{}
		}
	}

	adjacency := make(map[string][]graphEdge)
	for i := range snapshot.Triads {
		triad := &snapshot.Triads[i]
		if allowed != nil {
			if _, ok := allowed[triad.Predicate]; !ok {
				continue
			}
		}
		if triad.Subject == triad.Object {
			continue
		}
		if _, ok := nodes[triad.Subject]; !ok {
			continue
		}
		if _, ok := nodes[triad.Object]; !ok {
			continue
		}
		weight := triad.Weight()
		adjacency[triad.Subject] = append(adjacency[triad.Subject],
			graphEdge{to: triad.Object, triadID: triad.ID, weight: weight})
		adjacency[triad.Object] = append(adjacency[triad.Object],
			graphEdge{to: triad.Subject, triadID: triad.ID, weight: weight})
	}
	return adjacency, nodes
}

// reconstruct walks the predecessor map from to back to from.
func reconstruct(prev map[string]graphEdge, from, to string, total float64) *Path {
	nodes := []string{to}
	triads := make([]string, 0)
	current := to
	for current != from {
		edge, ok := prev[current]
		if !ok {
			return nil
		}
		triads = append(triads, edge.triadID)
		nodes = append(nodes, edge.to)
		current = edge.to
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(triads)-1; i < j; i, j = i+1, j-1 {
		triads[i], triads[j] = triads[j], triads[i]
	}
	return &Path{Nodes: nodes, Triads: triads, TotalWeight: total}
}

// pathSignature derives the cache key for a shortest-path query. The
// predicate set is sorted so equivalent queries share an entry.
func pathSignature(q PathQuery) string {
	preds := make([]string, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		preds = append(preds, string(p))
	}
	sort.Strings(preds)
	return fmt.Sprintf("%s|%s|%s|%d", q.From, q.To, strings.Join(preds, ","), q.MaxDepth)
}

// clonePath returns an independent copy so cached slices cannot be
// mutated by callers.
func clonePath(p *Path) *Path {
	if p == nil {
		return nil
	}
	out := &Path{
		Nodes:       make([]string, len(p.Nodes)),
		Triads:      make([]string, len(p.Triads)),
		TotalWeight: p.TotalWeight,
	}
	copy(out.Nodes, p.Nodes)
	copy(out.Triads, p.Triads)
	return out
}

// pathHeapItem is one priority queue entry for Dijkstra.
type pathHeapItem struct {
	nodeID string
	dist   float64
	index  int
}

// pathHeap is a min-heap on distance, with node id as the tie breaker so
// heap order is deterministic.
type pathHeap []*pathHeapItem

func (h pathHeap) Len() int { return len(h) }

func (h pathHeap) Less(i, j int) bool {
	if math.Abs(h[i].dist-h[j].dist) > 1e-12 {
		return h[i].dist < h[j].dist
	}
	return h[i].nodeID < h[j].nodeID
}

func (h pathHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pathHeap) Push(x any) {
	item := x.(*pathHeapItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
