// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package kg provides the semantic knowledge graph store.
//
// The store owns typed entities (nodes) and typed directed facts between
// them (triads: subject-predicate-object with a confidence score). Node and
// triad identity is content-addressed: ids are derived from the semantic key
// (type+namespace+name for nodes, subject+predicate+object for triads), so
// re-adding an entity under the same key is always an upsert, never a
// duplicate.
//
// # Indexes
//
// Besides the canonical id maps, the store maintains four secondary
// indexes: node ids by type, triad ids by predicate, and triad ids by
// subject/object (adjacency). Every mutation updates the canonical map and
// its index buckets inside the same writer critical section.
//
// # Thread Safety
//
// The store follows a multi-reader/single-writer discipline: all query,
// traversal, and analytics methods take a read lock and may run
// concurrently; all mutating methods take the write lock.
//
// # Persistence
//
// An optional Port mirrors every mutation to a durable backend. Port
// failures are logged and never propagate: the in-memory store is
// authoritative and fully functional without one.
package kg

import "errors"

// Sentinel errors for store operations.
var (
	// ErrInvalidNode is returned when a node fails validation (unknown
	// type, empty name).
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidTriad is returned when a triad fails validation (unknown
	// predicate, empty subject/object, confidence outside [0,1]).
	ErrInvalidTriad = errors.New("invalid triad")

	// ErrIDCollision is returned when a derived id already maps to an
	// entity with a different semantic key. Not expected given the hash
	// derivation, but guarded per the store invariants.
	ErrIDCollision = errors.New("id collision across distinct semantic keys")

	// ErrNodeNotFound is returned by update operations targeting a node id
	// that does not exist. Lookups return empty results instead.
	ErrNodeNotFound = errors.New("node not found")

	// ErrTriadNotFound is returned by update operations targeting a triad
	// id that does not exist.
	ErrTriadNotFound = errors.New("triad not found")

	// ErrInvalidFilter is returned when a query filter is structurally
	// malformed (negative limit or offset).
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidTraversal is returned when a traversal query is missing
	// start nodes or carries an unknown direction.
	ErrInvalidTraversal = errors.New("invalid traversal query")

	// ErrMaxNodesExceeded is returned when the store has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxTriadsExceeded is returned when the store has reached its
	// configured maximum triad capacity.
	ErrMaxTriadsExceeded = errors.New("maximum triad count exceeded")

	// ErrInvalidSnapshot is returned when an import payload is nil or
	// internally inconsistent.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
