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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
)

// Community detection selectors accepted by FindCommunities.
const (
	// AlgorithmSemantic expands communities along the semantic predicates
	// (is_similar_to, is_type_of). This is the native algorithm.
	AlgorithmSemantic = "semantic"

	// AlgorithmComponents treats every undirected connected component as a
	// community.
	AlgorithmComponents = "connected_components"

	// AlgorithmLouvain and AlgorithmModularity are accepted for
	// compatibility with callers that request a modularity-based
	// algorithm. Both currently resolve to the semantic expansion; the
	// selector is honored so a real implementation can slot in without an
	// API change.
	AlgorithmLouvain    = "louvain"
	AlgorithmModularity = "modularity"
)

// EngineOptions configures a query engine.
type EngineOptions struct {
	// CacheTTL bounds shortest-path result staleness. Zero uses
	// DefaultCacheTTL.
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached path results. Zero uses
	// DefaultCacheSize.
	CacheSize int

	// InvalidateOnWrite drops cached paths computed against an older store
	// version instead of serving them until the TTL lapses.
	InvalidateOnWrite bool

	// Logger receives engine diagnostics. Nil uses slog.Default.
	Logger *slog.Logger

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// EngineOption mutates EngineOptions.
type EngineOption func(*EngineOptions)

// WithCacheTTL sets the path cache TTL.
func WithCacheTTL(ttl time.Duration) EngineOption {
	return func(o *EngineOptions) { o.CacheTTL = ttl }
}

// WithCacheSize sets the path cache capacity.
func WithCacheSize(size int) EngineOption {
	return func(o *EngineOptions) { o.CacheSize = size }
}

// WithInvalidateOnWrite enables version-checked cache entries.
func WithInvalidateOnWrite() EngineOption {
	return func(o *EngineOptions) { o.InvalidateOnWrite = true }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *EngineOptions) { o.Logger = logger }
}

// WithClock overrides the engine clock.
func WithClock(clock func() time.Time) EngineOption {
	return func(o *EngineOptions) { o.Clock = clock }
}

// Engine answers read-only queries against a kg.Store. All methods are
// safe for concurrent use; none of them mutate the graph.
type Engine struct {
	store   *kg.Store
	cache   *guardedCache
	flight  singleflight.Group
	logger  *slog.Logger
	options EngineOptions
}

// NewEngine creates a query engine over the given store.
func NewEngine(store *kg.Store, opts ...EngineOption) *Engine {
	options := EngineOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		cache:   newGuardedCache(options.CacheTTL, options.CacheSize, options.Clock),
		logger:  logger,
		options: options,
	}
}

// FindNode returns the node with the given id, or nil if absent.
func (e *Engine) FindNode(ctx context.Context, id string) (*kg.Node, error) {
	_, span := startSpan(ctx, "FindNode", attribute.String("kg.node_id", id))
	defer span.End()

	node, ok := e.store.GetNode(id)
	if !ok {
		return nil, nil
	}
	return node, nil
}

// FindNodesByType returns up to limit nodes of the given type, ordered by
// creation time then id. A non-positive limit means no bound.
func (e *Engine) FindNodesByType(ctx context.Context, nodeType kg.NodeType, limit int) ([]*kg.Node, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "FindNodesByType", attribute.String("kg.node_type", string(nodeType)))
	defer span.End()

	nodes := e.store.NodesByType(nodeType, limit)
	recordOp(ctx, "find_nodes_by_type", time.Since(start))
	return nodes, nil
}

// FindRelatedNodes expands the neighborhood of a node.
//
// Description:
//
//	Runs a bounded traversal from nodeID, optionally restricted to a
//	predicate set and direction. An absent node yields an empty result,
//	not an error.
//
// Inputs:
//
//	predicates - Permitted edge labels. Empty means all.
//	direction - Edge orientation. Empty defaults to outgoing.
//	depth - Maximum walk depth. Zero uses the store default.
func (e *Engine) FindRelatedNodes(ctx context.Context, nodeID string, predicates []kg.Predicate, direction kg.Direction, depth int) (*kg.TraversalResult, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "FindRelatedNodes", attribute.String("kg.node_id", nodeID))
	defer span.End()

	result, err := e.store.Traverse(ctx, kg.TraversalQuery{
		StartNodes: []string{nodeID},
		Predicates: predicates,
		Direction:  direction,
		MaxDepth:   depth,
	})
	if err != nil {
		return nil, err
	}
	recordOp(ctx, "find_related_nodes", time.Since(start))
	return result, nil
}

// FindCommunities groups nodes into communities using the selected
// algorithm. Each community is a sorted slice of node ids.
//
// Errors:
//
//	ErrUnsupportedAlgorithm - unknown selector
func (e *Engine) FindCommunities(ctx context.Context, algorithm string) ([][]string, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "FindCommunities", attribute.String("kg.algorithm", algorithm))
	defer span.End()

	var communities [][]string
	switch algorithm {
	case "", AlgorithmSemantic, AlgorithmLouvain, AlgorithmModularity:
		if algorithm == AlgorithmLouvain || algorithm == AlgorithmModularity {
			e.logger.Debug("community algorithm resolved to semantic expansion",
				slog.String("requested", algorithm))
		}
		communities = e.store.SemanticClusters(ctx)
	case AlgorithmComponents:
		communities = e.store.ConnectedComponents(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	recordOp(ctx, "find_communities", time.Since(start))
	span.SetAttributes(attribute.Int("kg.communities", len(communities)))
	return communities, nil
}

// CreateSubgraph extracts the induced subgraph selected by the filters: the
// matching nodes, plus the matching triads whose subject and object are
// both in the selected node set. Triads pointing at literals or at nodes
// outside the selection are dropped.
func (e *Engine) CreateSubgraph(ctx context.Context, nodes kg.NodeFilter, triads kg.TriadFilter) (*kg.Snapshot, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "CreateSubgraph")
	defer span.End()

	matched, err := e.store.QueryNodes(ctx, nodes)
	if err != nil {
		return nil, err
	}
	selected := make(map[string]struct{}, len(matched))
	snapshot := &kg.Snapshot{
		Nodes:  make([]kg.Node, 0, len(matched)),
		Triads: make([]kg.Triad, 0),
	}
	for _, node := range matched {
		selected[node.ID] = struct{}{}
		snapshot.Nodes = append(snapshot.Nodes, *node)
	}

	candidates, err := e.store.QueryTriads(ctx, triads)
	if err != nil {
		return nil, err
	}
	for _, triad := range candidates {
		if _, ok := selected[triad.Subject]; !ok {
			continue
		}
		if _, ok := selected[triad.Object]; !ok {
			continue
		}
		snapshot.Triads = append(snapshot.Triads, *triad)
	}

	recordOp(ctx, "create_subgraph", time.Since(start))
	span.SetAttributes(
		attribute.Int("kg.subgraph_nodes", len(snapshot.Nodes)),
		attribute.Int("kg.subgraph_triads", len(snapshot.Triads)),
	)
	return snapshot, nil
}

// CacheLen reports the number of live path cache entries.
func (e *Engine) CacheLen() int {
	return e.cache.len()
}

// PurgeCache drops every cached path result.
func (e *Engine) PurgeCache() {
	e.cache.purge()
}
