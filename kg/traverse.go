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
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Traversal limits.
const (
	// DefaultTraversalDepth is the default maximum traversal depth.
	DefaultTraversalDepth = 10

	// MaxTraversalDepth is the maximum allowed traversal depth.
	MaxTraversalDepth = 100

	// contextCheckInterval is how often to check context during traversal.
	contextCheckInterval = 100
)

// traverseFrame is one work-stack entry. The walk uses an explicit stack
// instead of recursion so adversarially deep graphs cannot exhaust the
// goroutine stack.
type traverseFrame struct {
	nodeID string
	depth  int
}

// Traverse performs a depth-first walk from the query's start nodes.
//
// Description:
//
//	The walk tracks a single visited set across the whole call: a node is
//	expanded at most once even if reachable from several start nodes, so
//	the result trades path-enumeration completeness for guaranteed
//	termination and bounded work. Callers needing every path between two
//	nodes should use the query engine's all-paths search instead. Each
//	node visited beyond depth 0 contributes the edge-path that first
//	reached it.
//
// Inputs:
//
//	ctx - Context for cancellation, checked every 100 expansions.
//	q - Start nodes (required), permitted predicates (empty = all),
//	direction (default outgoing), max depth (0 = default 10, capped 100).
//
// Outputs:
//
//	*TraversalResult - Visited nodes in visit order plus discovered paths.
//	error - ErrInvalidTraversal for missing start nodes or a bad direction.
func (s *Store) Traverse(ctx context.Context, q TraversalQuery) (*TraversalResult, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "Traverse",
		attribute.Int("kg.start_nodes", len(q.StartNodes)),
		attribute.String("kg.direction", string(q.Direction)),
	)
	defer span.End()

	if len(q.StartNodes) == 0 {
		return nil, fmt.Errorf("%w: no start nodes", ErrInvalidTraversal)
	}
	if q.Direction == "" {
		q.Direction = DirectionOutgoing
	}
	if !q.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidTraversal, q.Direction)
	}
	maxDepth := q.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultTraversalDepth
	}
	if maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}
	allowed := predicateSet(q.Predicates)

	result := &TraversalResult{
		Nodes: make([]*Node, 0),
		Paths: make([]TraversalPath, 0),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]bool)
	// parentStep records the edge that first reached a node, for path
	// reconstruction.
	parentStep := make(map[string]PathStep)

	stack := make([]traverseFrame, 0, len(q.StartNodes))
	// Push in reverse so the walk expands start nodes in the given order.
	for i := len(q.StartNodes) - 1; i >= 0; i-- {
		id := q.StartNodes[i]
		if _, ok := s.nodes[id]; !ok {
			continue // Absent start nodes are a normal outcome.
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, traverseFrame{nodeID: id, depth: 0})
	}

	checkCounter := 0
	for len(stack) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				result.Truncated = true
				break
			}
		}

		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		result.Nodes = append(result.Nodes, cloneNode(s.nodes[frame.nodeID]))
		if frame.depth > 0 {
			result.Paths = append(result.Paths, reconstructPath(parentStep, frame.nodeID))
		}

		if frame.depth >= maxDepth {
			continue
		}

		steps := s.neighborStepsLocked(frame.nodeID, q.Direction, allowed)
		// Reverse push keeps deterministic visit order on a LIFO stack.
		for i := len(steps) - 1; i >= 0; i-- {
			step := steps[i]
			if visited[step.To] {
				continue
			}
			if _, ok := s.nodes[step.To]; !ok {
				continue // Literal object or dangling reference.
			}
			visited[step.To] = true
			parentStep[step.To] = step
			stack = append(stack, traverseFrame{nodeID: step.To, depth: frame.depth + 1})
		}
	}

	recordTraversal(ctx, len(result.Nodes))
	recordQuery(ctx, "traverse", time.Since(start))
	span.SetAttributes(attribute.Int("kg.visited", len(result.Nodes)))
	return result, nil
}

// neighborStepsLocked lists the crossable edges at a node, oriented so
// that To is the far endpoint. Caller holds at least the read lock.
func (s *Store) neighborStepsLocked(nodeID string, direction Direction, allowed map[Predicate]struct{}) []PathStep {
	steps := make([]PathStep, 0)

	appendFrom := func(index map[string]map[string]struct{}, incoming bool) {
		ids := make([]string, 0, len(index[nodeID]))
		for id := range index[nodeID] {
			ids = append(ids, id)
		}
		// Deterministic expansion order: creation time, then id.
		sort.Slice(ids, func(i, j int) bool {
			a, b := s.triads[ids[i]], s.triads[ids[j]]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		for _, id := range ids {
			triad := s.triads[id]
			if allowed != nil {
				if _, ok := allowed[triad.Predicate]; !ok {
					continue
				}
			}
			step := PathStep{From: nodeID, Predicate: triad.Predicate, TriadID: triad.ID}
			if incoming {
				step.To = triad.Subject
			} else {
				step.To = triad.Object
			}
			if step.To == nodeID {
				continue // Self loop.
			}
			steps = append(steps, step)
		}
	}

	switch direction {
	case DirectionIncoming:
		appendFrom(s.triadsByObject, true)
	case DirectionBoth:
		appendFrom(s.triadsBySubject, false)
		appendFrom(s.triadsByObject, true)
	default:
		appendFrom(s.triadsBySubject, false)
	}
	return steps
}

// reconstructPath follows parent steps back to a start node.
func reconstructPath(parentStep map[string]PathStep, nodeID string) TraversalPath {
	steps := make([]PathStep, 0)
	for {
		step, ok := parentStep[nodeID]
		if !ok {
			break
		}
		steps = append(steps, step)
		nodeID = step.From
	}
	// Steps were collected leaf-first.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return TraversalPath{Steps: steps}
}
