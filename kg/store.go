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
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// StoreOptions configures Store behavior and limits.
type StoreOptions struct {
	// MaxNodes is the maximum number of nodes the store can hold.
	// Default: 1,000,000
	MaxNodes int

	// MaxTriads is the maximum number of triads the store can hold.
	// Default: 10,000,000
	MaxTriads int

	// Logger receives write-through failures and analytics diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger

	// Port is the optional durable mirror. Default: NopPort.
	Port Port

	// Clock supplies timestamps. Overridable for tests.
	Clock func() time.Time
}

// DefaultStoreOptions returns sensible defaults.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		MaxNodes:  DefaultMaxNodes,
		MaxTriads: DefaultMaxTriads,
		Logger:    slog.Default(),
		Port:      NewNopPort(),
		Clock:     time.Now,
	}
}

// StoreOption is a functional option for configuring Store.
type StoreOption func(*StoreOptions)

// WithMaxNodes sets the maximum number of nodes the store can hold.
func WithMaxNodes(n int) StoreOption {
	return func(o *StoreOptions) {
		o.MaxNodes = n
	}
}

// WithMaxTriads sets the maximum number of triads the store can hold.
func WithMaxTriads(n int) StoreOption {
	return func(o *StoreOptions) {
		o.MaxTriads = n
	}
}

// WithLogger sets the logger used for write-through failures.
func WithLogger(l *slog.Logger) StoreOption {
	return func(o *StoreOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithPort sets the durable mirror.
func WithPort(p Port) StoreOption {
	return func(o *StoreOptions) {
		if p != nil {
			o.Port = p
		}
	}
}

// WithClock sets the timestamp source. Intended for tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(o *StoreOptions) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// Store owns the canonical node and triad maps plus the secondary indexes.
//
// Thread Safety:
//
//	Store is safe for concurrent use. Reads (Get*, Query*, Traverse,
//	analytics) take a read lock and may run in parallel; writes (Add*,
//	Update*, Remove*, Mutate, Import) are mutually exclusive with each
//	other and with in-flight reads.
type Store struct {
	mu sync.RWMutex

	// nodes maps node id to the canonical record.
	nodes map[string]*Node

	// triads maps triad id to the canonical record.
	triads map[string]*Triad

	// nodesByType indexes node ids by node type.
	nodesByType map[NodeType]map[string]struct{}

	// triadsByPredicate indexes triad ids by predicate.
	triadsByPredicate map[Predicate]map[string]struct{}

	// triadsBySubject and triadsByObject are adjacency indexes: node id to
	// the set of triad ids referencing it. They serve traversal and the
	// cascade on RemoveNode.
	triadsBySubject map[string]map[string]struct{}
	triadsByObject  map[string]map[string]struct{}

	// version counts mutations. Read by caches to detect staleness.
	version int64

	options StoreOptions
	logger  *slog.Logger
	port    Port
	now     func() time.Time
}

// NewStore creates an empty store.
//
// Example:
//
//	store := kg.NewStore(
//	    kg.WithMaxNodes(100_000),
//	    kg.WithPort(mirror),
//	    kg.WithLogger(logger),
//	)
func NewStore(opts ...StoreOption) *Store {
	options := DefaultStoreOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Store{
		nodes:             make(map[string]*Node),
		triads:            make(map[string]*Triad),
		nodesByType:       make(map[NodeType]map[string]struct{}),
		triadsByPredicate: make(map[Predicate]map[string]struct{}),
		triadsBySubject:   make(map[string]map[string]struct{}),
		triadsByObject:    make(map[string]map[string]struct{}),
		options:           options,
		logger:            options.Logger,
		port:              options.Port,
		now:               options.Clock,
	}
}

// NodeCount returns the number of nodes in the store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// TriadCount returns the number of triads in the store.
func (s *Store) TriadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triads)
}

// Version returns the mutation counter. It increases on every successful
// write and lets read-side caches detect staleness cheaply.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AddNode inserts or upserts a node.
//
// Description:
//
//	The id is derived from (Type, Namespace, Name); any caller-supplied ID
//	is ignored. First insertion sets CreatedAt=UpdatedAt=now. Re-insertion
//	under the same semantic key preserves the original CreatedAt,
//	refreshes UpdatedAt, and replaces the remaining fields. The type index
//	is updated in the same critical section; the change is mirrored to the
//	Port afterwards (failure logged, never returned).
//
// Errors:
//
//	ErrInvalidNode - unknown type or empty name
//	ErrIDCollision - id maps to a different semantic key (guarded, not expected)
//	ErrMaxNodesExceeded - store is at node capacity
func (s *Store) AddNode(ctx context.Context, node Node) (string, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "AddNode")
	defer span.End()

	if !node.Type.Valid() {
		recordMutation(ctx, "add_node", time.Since(start), false)
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidNode, node.Type)
	}
	if node.Name == "" {
		recordMutation(ctx, "add_node", time.Since(start), false)
		return "", fmt.Errorf("%w: name is empty", ErrInvalidNode)
	}

	id := NodeID(node.Type, node.Namespace, node.Name)
	node.ID = id

	s.mu.Lock()
	existing, ok := s.nodes[id]
	if ok {
		if existing.Type != node.Type || existing.Namespace != node.Namespace || existing.Name != node.Name {
			s.mu.Unlock()
			recordMutation(ctx, "add_node", time.Since(start), false)
			return "", fmt.Errorf("%w: %s", ErrIDCollision, id)
		}
		node.CreatedAt = existing.CreatedAt
		node.UpdatedAt = s.now()
		s.nodes[id] = cloneNode(&node)
		// Type bucket is unchanged: same id implies same semantic key.
	} else {
		if len(s.nodes) >= s.options.MaxNodes {
			s.mu.Unlock()
			recordMutation(ctx, "add_node", time.Since(start), false)
			return "", ErrMaxNodesExceeded
		}
		now := s.now()
		node.CreatedAt = now
		node.UpdatedAt = now
		s.nodes[id] = cloneNode(&node)
		s.indexNodeLocked(id, node.Type)
	}
	s.version++
	mirror := cloneNode(s.nodes[id])
	s.mu.Unlock()

	s.writeThrough(ctx, "upsert_node", id, func(p Port) error {
		return p.UpsertNode(ctx, mirror)
	})
	recordMutation(ctx, "add_node", time.Since(start), true)
	span.SetAttributes(attribute.String("kg.node_id", id))
	return id, nil
}

// AddTriad inserts or upserts a triad.
//
// Description:
//
//	The id is derived from (Subject, Predicate, Object). Re-insertion of
//	the same triple preserves CreatedAt; the confidence, source, and
//	metadata of the most recent write win. The object may be a node id or
//	a literal; neither endpoint is required to exist as a node.
//
// Errors:
//
//	ErrInvalidTriad - unknown predicate, empty subject/object, or
//	confidence outside [0,1]
//	ErrMaxTriadsExceeded - store is at triad capacity
func (s *Store) AddTriad(ctx context.Context, triad Triad) (string, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "AddTriad")
	defer span.End()

	if err := validateTriad(&triad); err != nil {
		recordMutation(ctx, "add_triad", time.Since(start), false)
		return "", err
	}

	id := TriadID(triad.Subject, triad.Predicate, triad.Object)
	triad.ID = id

	s.mu.Lock()
	existing, ok := s.triads[id]
	if ok {
		if existing.Subject != triad.Subject || existing.Predicate != triad.Predicate || existing.Object != triad.Object {
			s.mu.Unlock()
			recordMutation(ctx, "add_triad", time.Since(start), false)
			return "", fmt.Errorf("%w: %s", ErrIDCollision, id)
		}
		triad.CreatedAt = existing.CreatedAt
		s.triads[id] = cloneTriad(&triad)
	} else {
		if len(s.triads) >= s.options.MaxTriads {
			s.mu.Unlock()
			recordMutation(ctx, "add_triad", time.Since(start), false)
			return "", ErrMaxTriadsExceeded
		}
		triad.CreatedAt = s.now()
		s.triads[id] = cloneTriad(&triad)
		s.indexTriadLocked(id, &triad)
	}
	s.version++
	mirror := cloneTriad(s.triads[id])
	s.mu.Unlock()

	s.writeThrough(ctx, "upsert_triad", id, func(p Port) error {
		return p.UpsertTriad(ctx, mirror)
	})
	recordMutation(ctx, "add_triad", time.Since(start), true)
	span.SetAttributes(attribute.String("kg.triad_id", id))
	return id, nil
}

// UpdateNode applies an in-place update to an existing node and refreshes
// UpdatedAt. Returns ErrNodeNotFound if the id does not exist.
func (s *Store) UpdateNode(ctx context.Context, id string, update NodeUpdate) error {
	start := time.Now()

	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		recordMutation(ctx, "update_node", time.Since(start), false)
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if update.SourceLocation != nil {
		loc := *update.SourceLocation
		node.SourceLocation = &loc
	}
	if update.Metadata != nil {
		node.Metadata = *cloneNodeMetadata(update.Metadata)
	}
	node.UpdatedAt = s.now()
	s.version++
	mirror := cloneNode(node)
	s.mu.Unlock()

	s.writeThrough(ctx, "upsert_node", id, func(p Port) error {
		return p.UpsertNode(ctx, mirror)
	})
	recordMutation(ctx, "update_node", time.Since(start), true)
	return nil
}

// UpdateTriad applies an in-place update to an existing triad. CreatedAt
// is never touched. Returns ErrTriadNotFound if the id does not exist.
func (s *Store) UpdateTriad(ctx context.Context, id string, update TriadUpdate) error {
	start := time.Now()

	if update.Confidence != nil && (*update.Confidence < 0 || *update.Confidence > 1) {
		recordMutation(ctx, "update_triad", time.Since(start), false)
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidTriad, *update.Confidence)
	}

	s.mu.Lock()
	triad, ok := s.triads[id]
	if !ok {
		s.mu.Unlock()
		recordMutation(ctx, "update_triad", time.Since(start), false)
		return fmt.Errorf("%w: %s", ErrTriadNotFound, id)
	}
	if update.Confidence != nil {
		triad.Confidence = *update.Confidence
	}
	if update.Source != nil {
		triad.Source = *update.Source
	}
	if update.Metadata != nil {
		triad.Metadata = *cloneTriadMetadata(update.Metadata)
	}
	s.version++
	mirror := cloneTriad(triad)
	s.mu.Unlock()

	s.writeThrough(ctx, "upsert_triad", id, func(p Port) error {
		return p.UpsertTriad(ctx, mirror)
	})
	recordMutation(ctx, "update_triad", time.Since(start), true)
	return nil
}

// RemoveNode deletes a node and cascades to every triad referencing it as
// subject or object. Removing an id that does not exist is a no-op.
func (s *Store) RemoveNode(ctx context.Context, id string) error {
	start := time.Now()
	ctx, span := startSpan(ctx, "RemoveNode", attribute.String("kg.node_id", id))
	defer span.End()

	s.mu.Lock()
	removedTriads := s.removeNodeLocked(id)
	if removedTriads < 0 {
		s.mu.Unlock()
		recordMutation(ctx, "remove_node", time.Since(start), true)
		return nil
	}
	s.version++
	s.mu.Unlock()

	s.writeThrough(ctx, "delete_node", id, func(p Port) error {
		return p.DeleteNode(ctx, id)
	})
	span.SetAttributes(attribute.Int("kg.cascaded_triads", removedTriads))
	recordMutation(ctx, "remove_node", time.Since(start), true)
	return nil
}

// RemoveTriad deletes a triad. Removing an id that does not exist is a
// no-op.
func (s *Store) RemoveTriad(ctx context.Context, id string) error {
	start := time.Now()

	s.mu.Lock()
	removed := s.removeTriadLocked(id)
	if removed {
		s.version++
	}
	s.mu.Unlock()

	if removed {
		s.writeThrough(ctx, "delete_triad", id, func(p Port) error {
			return p.DeleteTriad(ctx, id)
		})
	}
	recordMutation(ctx, "remove_triad", time.Since(start), true)
	return nil
}

// GetNode retrieves a node by id. The returned record is a copy; absence
// is a normal outcome, not an error.
func (s *Store) GetNode(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return cloneNode(node), true
}

// GetTriad retrieves a triad by id. The returned record is a copy.
func (s *Store) GetTriad(id string) (*Triad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	triad, ok := s.triads[id]
	if !ok {
		return nil, false
	}
	return cloneTriad(triad), true
}

// QueryNodes returns the nodes matching the filter.
//
// Description:
//
//	Filter fields combine by logical AND; absent fields are
//	unconstrained. Results are ordered by CreatedAt then id so that
//	Offset/Limit paging is stable. Offset is applied before Limit.
func (s *Store) QueryNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	start := time.Now()
	defer func() { recordQuery(ctx, "nodes", time.Since(start)) }()

	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidFilter)
	}

	s.mu.RLock()
	matched := make([]*Node, 0)
	for _, node := range s.nodes {
		if matchNode(node, &filter) {
			matched = append(matched, cloneNode(node))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return page(matched, filter.Offset, filter.Limit), nil
}

// QueryTriads returns the triads matching the filter, ordered by CreatedAt
// then id. Offset is applied before Limit.
func (s *Store) QueryTriads(ctx context.Context, filter TriadFilter) ([]*Triad, error) {
	start := time.Now()
	defer func() { recordQuery(ctx, "triads", time.Since(start)) }()

	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidFilter)
	}

	s.mu.RLock()
	// Narrow the scan through the predicate index when possible.
	matched := make([]*Triad, 0)
	if len(filter.Predicates) > 0 {
		for _, p := range filter.Predicates {
			for id := range s.triadsByPredicate[p] {
				triad := s.triads[id]
				if matchTriad(triad, &filter) {
					matched = append(matched, cloneTriad(triad))
				}
			}
		}
	} else {
		for _, triad := range s.triads {
			if matchTriad(triad, &filter) {
				matched = append(matched, cloneTriad(triad))
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return page(matched, filter.Offset, filter.Limit), nil
}

// NodesByType returns up to limit nodes of the given type via the type
// index, ordered by CreatedAt then id. limit <= 0 means no limit.
func (s *Store) NodesByType(nodeType NodeType, limit int) []*Node {
	s.mu.RLock()
	bucket := s.nodesByType[nodeType]
	matched := make([]*Node, 0, len(bucket))
	for id := range bucket {
		matched = append(matched, cloneNode(s.nodes[id]))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// TriadsFor returns the triads attached to a node in the given direction,
// optionally restricted to a predicate set, ordered by CreatedAt then id.
// The discovery order is deterministic, which path search relies on for
// tie-breaking.
func (s *Store) TriadsFor(nodeID string, direction Direction, preds []Predicate) []*Triad {
	allowed := predicateSet(preds)

	s.mu.RLock()
	matched := make([]*Triad, 0)
	collect := func(index map[string]map[string]struct{}) {
		for id := range index[nodeID] {
			triad := s.triads[id]
			if allowed != nil {
				if _, ok := allowed[triad.Predicate]; !ok {
					continue
				}
			}
			matched = append(matched, cloneTriad(triad))
		}
	}
	switch direction {
	case DirectionIncoming:
		collect(s.triadsByObject)
	case DirectionBoth:
		collect(s.triadsBySubject)
		collect(s.triadsByObject)
	default:
		collect(s.triadsBySubject)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

// NodeIDs returns every node id, sorted.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Mutate applies a batched change atomically with respect to the writer
// critical section.
//
// Description:
//
//	Groups apply in fixed order: addNodes, addTriads, removeNodes,
//	removeTriads, updateNodes, updateTriads. The ordering lets a batch
//	create a node and immediately reference it from a triad. Adds are
//	validated up front so a malformed batch fails before any change is
//	applied; removes and updates targeting missing ids are skipped, since
//	absence is a normal outcome.
func (s *Store) Mutate(ctx context.Context, batch Mutation) (*MutationResult, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "Mutate",
		attribute.Int("kg.add_nodes", len(batch.AddNodes)),
		attribute.Int("kg.add_triads", len(batch.AddTriads)),
	)
	defer span.End()

	// Validate adds before touching state.
	for i := range batch.AddNodes {
		n := &batch.AddNodes[i]
		if !n.Type.Valid() {
			return nil, fmt.Errorf("%w: addNodes[%d]: unknown type %q", ErrInvalidNode, i, n.Type)
		}
		if n.Name == "" {
			return nil, fmt.Errorf("%w: addNodes[%d]: name is empty", ErrInvalidNode, i)
		}
	}
	for i := range batch.AddTriads {
		if err := validateTriad(&batch.AddTriads[i]); err != nil {
			return nil, fmt.Errorf("addTriads[%d]: %w", i, err)
		}
	}
	for i, req := range batch.UpdateTriads {
		if req.Update.Confidence != nil && (*req.Update.Confidence < 0 || *req.Update.Confidence > 1) {
			return nil, fmt.Errorf("%w: updateTriads[%d]: confidence outside [0,1]", ErrInvalidTriad, i)
		}
	}

	result := &MutationResult{}
	var mirrors []func(Port) error

	s.mu.Lock()
	for i := range batch.AddNodes {
		node := batch.AddNodes[i]
		id, err := s.addNodeLocked(&node)
		if err != nil {
			s.mu.Unlock()
			recordMutation(ctx, "mutate", time.Since(start), false)
			return result, err
		}
		result.AddedNodes = append(result.AddedNodes, id)
		mirror := cloneNode(s.nodes[id])
		mirrors = append(mirrors, func(p Port) error { return p.UpsertNode(ctx, mirror) })
	}
	for i := range batch.AddTriads {
		triad := batch.AddTriads[i]
		id, err := s.addTriadLocked(&triad)
		if err != nil {
			s.mu.Unlock()
			recordMutation(ctx, "mutate", time.Since(start), false)
			return result, err
		}
		result.AddedTriads = append(result.AddedTriads, id)
		mirror := cloneTriad(s.triads[id])
		mirrors = append(mirrors, func(p Port) error { return p.UpsertTriad(ctx, mirror) })
	}
	for _, id := range batch.RemoveNodes {
		if cascaded := s.removeNodeLocked(id); cascaded >= 0 {
			result.RemovedNodes++
			result.RemovedTriads += cascaded
			nodeID := id
			mirrors = append(mirrors, func(p Port) error { return p.DeleteNode(ctx, nodeID) })
		}
	}
	for _, id := range batch.RemoveTriads {
		if s.removeTriadLocked(id) {
			result.RemovedTriads++
			triadID := id
			mirrors = append(mirrors, func(p Port) error { return p.DeleteTriad(ctx, triadID) })
		}
	}
	for _, req := range batch.UpdateNodes {
		node, ok := s.nodes[req.ID]
		if !ok {
			continue
		}
		if req.Update.SourceLocation != nil {
			loc := *req.Update.SourceLocation
			node.SourceLocation = &loc
		}
		if req.Update.Metadata != nil {
			node.Metadata = *cloneNodeMetadata(req.Update.Metadata)
		}
		node.UpdatedAt = s.now()
		result.UpdatedNodes++
		mirror := cloneNode(node)
		mirrors = append(mirrors, func(p Port) error { return p.UpsertNode(ctx, mirror) })
	}
	for _, req := range batch.UpdateTriads {
		triad, ok := s.triads[req.ID]
		if !ok {
			continue
		}
		if req.Update.Confidence != nil {
			triad.Confidence = *req.Update.Confidence
		}
		if req.Update.Source != nil {
			triad.Source = *req.Update.Source
		}
		if req.Update.Metadata != nil {
			triad.Metadata = *cloneTriadMetadata(req.Update.Metadata)
		}
		result.UpdatedTriads++
		mirror := cloneTriad(triad)
		mirrors = append(mirrors, func(p Port) error { return p.UpsertTriad(ctx, mirror) })
	}
	s.version++
	s.mu.Unlock()

	for _, op := range mirrors {
		s.writeThrough(ctx, "mutate", "", op)
	}
	recordMutation(ctx, "mutate", time.Since(start), true)
	return result, nil
}

// =============================================================================
// Locked helpers
// =============================================================================

// addNodeLocked upserts a node. Caller holds the write lock.
func (s *Store) addNodeLocked(node *Node) (string, error) {
	id := NodeID(node.Type, node.Namespace, node.Name)
	node.ID = id

	existing, ok := s.nodes[id]
	if ok {
		if existing.Type != node.Type || existing.Namespace != node.Namespace || existing.Name != node.Name {
			return "", fmt.Errorf("%w: %s", ErrIDCollision, id)
		}
		node.CreatedAt = existing.CreatedAt
		node.UpdatedAt = s.now()
		s.nodes[id] = cloneNode(node)
		return id, nil
	}

	if len(s.nodes) >= s.options.MaxNodes {
		return "", ErrMaxNodesExceeded
	}
	now := s.now()
	node.CreatedAt = now
	node.UpdatedAt = now
	s.nodes[id] = cloneNode(node)
	s.indexNodeLocked(id, node.Type)
	return id, nil
}

// addTriadLocked upserts a triad. Caller holds the write lock.
func (s *Store) addTriadLocked(triad *Triad) (string, error) {
	id := TriadID(triad.Subject, triad.Predicate, triad.Object)
	triad.ID = id

	existing, ok := s.triads[id]
	if ok {
		if existing.Subject != triad.Subject || existing.Predicate != triad.Predicate || existing.Object != triad.Object {
			return "", fmt.Errorf("%w: %s", ErrIDCollision, id)
		}
		triad.CreatedAt = existing.CreatedAt
		s.triads[id] = cloneTriad(triad)
		return id, nil
	}

	if len(s.triads) >= s.options.MaxTriads {
		return "", ErrMaxTriadsExceeded
	}
	triad.CreatedAt = s.now()
	s.triads[id] = cloneTriad(triad)
	s.indexTriadLocked(id, triad)
	return id, nil
}

// removeNodeLocked deletes a node and its referencing triads, returning
// the number of cascaded triads, or -1 if the node did not exist.
func (s *Store) removeNodeLocked(id string) int {
	node, ok := s.nodes[id]
	if !ok {
		return -1
	}

	// Collect first: removeTriadLocked mutates the indexes being ranged.
	cascade := make([]string, 0)
	for triadID := range s.triadsBySubject[id] {
		cascade = append(cascade, triadID)
	}
	for triadID := range s.triadsByObject[id] {
		cascade = append(cascade, triadID)
	}

	removed := 0
	for _, triadID := range cascade {
		if s.removeTriadLocked(triadID) {
			removed++
		}
	}

	delete(s.nodes, id)
	if bucket := s.nodesByType[node.Type]; bucket != nil {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.nodesByType, node.Type)
		}
	}
	return removed
}

// removeTriadLocked deletes a triad and strips it from every index.
func (s *Store) removeTriadLocked(id string) bool {
	triad, ok := s.triads[id]
	if !ok {
		return false
	}
	delete(s.triads, id)

	if bucket := s.triadsByPredicate[triad.Predicate]; bucket != nil {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.triadsByPredicate, triad.Predicate)
		}
	}
	if bucket := s.triadsBySubject[triad.Subject]; bucket != nil {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.triadsBySubject, triad.Subject)
		}
	}
	if bucket := s.triadsByObject[triad.Object]; bucket != nil {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.triadsByObject, triad.Object)
		}
	}
	return true
}

func (s *Store) indexNodeLocked(id string, nodeType NodeType) {
	bucket := s.nodesByType[nodeType]
	if bucket == nil {
		bucket = make(map[string]struct{})
		s.nodesByType[nodeType] = bucket
	}
	bucket[id] = struct{}{}
}

func (s *Store) indexTriadLocked(id string, triad *Triad) {
	bucket := s.triadsByPredicate[triad.Predicate]
	if bucket == nil {
		bucket = make(map[string]struct{})
		s.triadsByPredicate[triad.Predicate] = bucket
	}
	bucket[id] = struct{}{}

	subj := s.triadsBySubject[triad.Subject]
	if subj == nil {
		subj = make(map[string]struct{})
		s.triadsBySubject[triad.Subject] = subj
	}
	subj[id] = struct{}{}

	obj := s.triadsByObject[triad.Object]
	if obj == nil {
		obj = make(map[string]struct{})
		s.triadsByObject[triad.Object] = obj
	}
	obj[id] = struct{}{}
}

// writeThrough mirrors a mutation to the Port. Failures are logged and
// swallowed: the in-memory operation has already succeeded.
func (s *Store) writeThrough(ctx context.Context, op, id string, fn func(Port) error) {
	if s.port == nil {
		return
	}
	if err := fn(s.port); err != nil {
		s.logger.Warn("persistence write-through failed",
			slog.String("op", op),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// =============================================================================
// Matching helpers
// =============================================================================

func validateTriad(t *Triad) error {
	if !t.Predicate.Valid() {
		return fmt.Errorf("%w: unknown predicate %q", ErrInvalidTriad, t.Predicate)
	}
	if t.Subject == "" {
		return fmt.Errorf("%w: subject is empty", ErrInvalidTriad)
	}
	if t.Object == "" {
		return fmt.Errorf("%w: object is empty", ErrInvalidTriad)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidTriad, t.Confidence)
	}
	return nil
}

func matchNode(node *Node, filter *NodeFilter) bool {
	if len(filter.Types) > 0 && !containsType(filter.Types, node.Type) {
		return false
	}
	if len(filter.Names) > 0 && !containsSubstring(filter.Names, node.Name) {
		return false
	}
	if len(filter.Namespaces) > 0 && !containsString(filter.Namespaces, node.Namespace) {
		return false
	}
	for key, want := range filter.Metadata {
		if metadataValue(&node.Metadata, key) != want {
			return false
		}
	}
	return true
}

func matchTriad(triad *Triad, filter *TriadFilter) bool {
	if len(filter.Subjects) > 0 && !containsString(filter.Subjects, triad.Subject) {
		return false
	}
	if len(filter.Predicates) > 0 && !containsPredicate(filter.Predicates, triad.Predicate) {
		return false
	}
	if len(filter.Objects) > 0 && !containsString(filter.Objects, triad.Object) {
		return false
	}
	if len(filter.Sources) > 0 && !containsSource(filter.Sources, triad.Source) {
		return false
	}
	if filter.MinConfidence > 0 && triad.Confidence < filter.MinConfidence {
		return false
	}
	return true
}

// metadataValue resolves a known metadata field by name, falling back to
// the Extra map. Missing fields resolve to "".
func metadataValue(m *NodeMetadata, key string) string {
	switch key {
	case "complexity":
		if m.Complexity == 0 {
			return ""
		}
		return strconv.Itoa(m.Complexity)
	case "importance":
		if m.Importance == 0 {
			return ""
		}
		return strconv.FormatFloat(m.Importance, 'f', -1, 64)
	case "stability":
		if m.Stability == 0 {
			return ""
		}
		return strconv.FormatFloat(m.Stability, 'f', -1, 64)
	case "test_coverage":
		if m.TestCoverage == 0 {
			return ""
		}
		return strconv.FormatFloat(m.TestCoverage, 'f', -1, 64)
	case "visibility":
		return m.Visibility
	default:
		return m.Extra[key]
	}
}

func containsType(set []NodeType, t NodeType) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

func containsPredicate(set []Predicate, p Predicate) bool {
	for _, v := range set {
		if v == p {
			return true
		}
	}
	return false
}

func containsSource(set []Source, s Source) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsSubstring(substrings []string, s string) bool {
	for _, sub := range substrings {
		if sub == "" || stringsContainsFold(s, sub) {
			return true
		}
	}
	return false
}

// stringsContainsFold reports whether s contains sub, ignoring case.
func stringsContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func predicateSet(preds []Predicate) map[Predicate]struct{} {
	if len(preds) == 0 {
		return nil
	}
	set := make(map[Predicate]struct{}, len(preds))
	for _, p := range preds {
		set[p] = struct{}{}
	}
	return set
}

// page applies offset-before-limit slicing.
func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// =============================================================================
// Clone helpers
// =============================================================================

// The store hands out copies so readers never alias mutable state.

func cloneNode(n *Node) *Node {
	c := *n
	if n.SourceLocation != nil {
		loc := *n.SourceLocation
		c.SourceLocation = &loc
	}
	c.Metadata = *cloneNodeMetadata(&n.Metadata)
	return &c
}

func cloneNodeMetadata(m *NodeMetadata) *NodeMetadata {
	c := *m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.Extra != nil {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func cloneTriad(t *Triad) *Triad {
	c := *t
	c.Metadata = *cloneTriadMetadata(&t.Metadata)
	return &c
}

func cloneTriadMetadata(m *TriadMetadata) *TriadMetadata {
	c := *m
	if m.Evidence != nil {
		c.Evidence = append([]string(nil), m.Evidence...)
	}
	if m.Extra != nil {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
