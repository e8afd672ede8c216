// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
)

// DefaultPatternLimit bounds matches returned when the caller passes no
// limit.
const DefaultPatternLimit = 100

// NodeConstraint restricts which nodes can bind to one pattern slot.
// All populated fields combine by logical AND.
type NodeConstraint struct {
	// Types matches nodes whose type is in the set.
	Types []kg.NodeType `json:"types,omitempty"`

	// NamePattern matches nodes whose name contains the substring,
	// case-insensitively.
	NamePattern string `json:"name_pattern,omitempty"`

	// Namespaces matches nodes whose namespace is in the set.
	Namespaces []string `json:"namespaces,omitempty"`

	// Metadata matches nodes whose metadata field equals the given value.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EdgeConstraint requires a triad between two bound pattern slots. From
// and To are indexes into Pattern.Nodes; the triad must run from the
// node bound at From to the node bound at To.
type EdgeConstraint struct {
	From int `json:"from"`
	To   int `json:"to"`

	// Predicates restricts the triad's label. Empty means any.
	Predicates []kg.Predicate `json:"predicates,omitempty"`

	// MinConfidence drops triads below the threshold.
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// Pattern is a small subgraph template: typed node slots connected by
// required edges.
type Pattern struct {
	Nodes []NodeConstraint `json:"nodes"`
	Edges []EdgeConstraint `json:"edges,omitempty"`
}

// Match is one binding of a pattern against the graph. NodeIDs is
// index-aligned with Pattern.Nodes; Triads holds one witness triad per
// edge constraint, in constraint order.
type Match struct {
	NodeIDs []string `json:"node_ids"`
	Triads  []string `json:"triads"`
}

// FindPattern binds a subgraph template against the graph.
//
// Description:
//
//	Matching is greedy, not exhaustive: slots are bound in declaration
//	order, each taking the first unused candidate that satisfies its
//	constraints and every edge constraint against already-bound slots.
//	There is no backtracking, so a viable binding can be missed when an
//	earlier slot grabs the wrong candidate. That trade keeps worst-case
//	cost near linear in the candidate sets, which is the right default
//	for interactive use.
//
// Inputs:
//
//	limit - Maximum matches to return. Non-positive uses
//	DefaultPatternLimit.
//
// Errors:
//
//	ErrInvalidPattern - no node slots, an edge referencing a slot index
//	out of range, or a confidence threshold outside [0,1]
func (e *Engine) FindPattern(ctx context.Context, pattern Pattern, limit int) ([]Match, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "FindPattern",
		attribute.Int("kg.pattern_nodes", len(pattern.Nodes)),
		attribute.Int("kg.pattern_edges", len(pattern.Edges)),
	)
	defer span.End()

	if len(pattern.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no node constraints", ErrInvalidPattern)
	}
	for i, edge := range pattern.Edges {
		if edge.From < 0 || edge.From >= len(pattern.Nodes) ||
			edge.To < 0 || edge.To >= len(pattern.Nodes) {
			return nil, fmt.Errorf("%w: edge %d references slot out of range", ErrInvalidPattern, i)
		}
		if edge.MinConfidence < 0 || edge.MinConfidence > 1 {
			return nil, fmt.Errorf("%w: edge %d confidence outside [0,1]", ErrInvalidPattern, i)
		}
	}
	if limit <= 0 {
		limit = DefaultPatternLimit
	}

	// Resolve candidate sets once per slot. QueryNodes orders by creation
	// time then id, which fixes the greedy binding order.
	candidates := make([][]*kg.Node, len(pattern.Nodes))
	for i, constraint := range pattern.Nodes {
		filter := kg.NodeFilter{
			Types:      constraint.Types,
			Namespaces: constraint.Namespaces,
			Metadata:   constraint.Metadata,
		}
		if constraint.NamePattern != "" {
			filter.Names = []string{constraint.NamePattern}
		}
		found, err := e.store.QueryNodes(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			// An unsatisfiable slot means no match can exist.
			recordOp(ctx, "find_pattern", time.Since(start))
			return []Match{}, nil
		}
		candidates[i] = found
	}

	// edgesBySlot[i] lists edge constraints whose later endpoint is i, so
	// they become checkable the moment slot i binds.
	type slotEdge struct {
		index int
		edge  EdgeConstraint
	}
	edgesBySlot := make([][]slotEdge, len(pattern.Nodes))
	for i, edge := range pattern.Edges {
		later := edge.From
		if edge.To > later {
			later = edge.To
		}
		edgesBySlot[later] = append(edgesBySlot[later], slotEdge{index: i, edge: edge})
	}

	matches := make([]Match, 0)
	for _, seed := range candidates[0] {
		if len(matches) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		bound := make([]string, len(pattern.Nodes))
		used := map[string]struct{}{seed.ID: {}}
		witnesses := make([]string, len(pattern.Edges))
		bound[0] = seed.ID

		ok := true
		for _, se := range edgesBySlot[0] {
			// Possible only for a self-referential single-slot pattern.
			triadID, found := e.witnessTriad(bound[se.edge.From], bound[se.edge.To], se.edge)
			if !found {
				ok = false
				break
			}
			witnesses[se.index] = triadID
		}

		for slot := 1; ok && slot < len(pattern.Nodes); slot++ {
			bound[slot] = ""
			for _, candidate := range candidates[slot] {
				if _, taken := used[candidate.ID]; taken {
					continue
				}
				satisfied := true
				pending := make(map[int]string, len(edgesBySlot[slot]))
				for _, se := range edgesBySlot[slot] {
					from, to := bound[se.edge.From], bound[se.edge.To]
					if se.edge.From == slot {
						from = candidate.ID
					}
					if se.edge.To == slot {
						to = candidate.ID
					}
					triadID, found := e.witnessTriad(from, to, se.edge)
					if !found {
						satisfied = false
						break
					}
					pending[se.index] = triadID
				}
				if !satisfied {
					continue
				}
				bound[slot] = candidate.ID
				used[candidate.ID] = struct{}{}
				for index, triadID := range pending {
					witnesses[index] = triadID
				}
				break
			}
			if bound[slot] == "" {
				ok = false
			}
		}

		if ok {
			matches = append(matches, Match{NodeIDs: bound, Triads: witnesses})
		}
	}

	recordOp(ctx, "find_pattern", time.Since(start))
	span.SetAttributes(attribute.Int("kg.matches", len(matches)))
	return matches, nil
}

// witnessTriad finds a triad from subject to object satisfying the edge
// constraint, returning its id.
func (e *Engine) witnessTriad(subject, object string, edge EdgeConstraint) (string, bool) {
	for _, triad := range e.store.TriadsFor(subject, kg.DirectionOutgoing, edge.Predicates) {
		if triad.Object != object {
			continue
		}
		if triad.Confidence < edge.MinConfidence {
			continue
		}
		return triad.ID, true
	}
	return "", false
}
