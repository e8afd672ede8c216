// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package query provides the read-only query engine over a kg.Store.
//
// The engine layers stateless algorithms on top of the store: point
// lookup, neighborhood expansion, weighted shortest-path, bounded
// all-paths enumeration, subgraph pattern matching, centrality metrics,
// community detection, and lexical semantic search. It never mutates the
// store.
//
// Shortest-path results are cached by query signature with a fixed TTL.
// Entries are not invalidated on graph mutation by default; staleness is
// bounded by the TTL. WithInvalidateOnWrite enables the stricter mode.
package query

import "errors"

// Sentinel errors for query operations.
var (
	// ErrInvalidPathQuery is returned when a path request is structurally
	// incomplete (missing from/to) or carries non-positive bounds.
	ErrInvalidPathQuery = errors.New("invalid path query")

	// ErrInvalidPattern is returned when a pattern template is malformed:
	// no node constraints, or an edge constraint referencing a node index
	// that does not exist.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrUnsupportedAlgorithm is returned for an unrecognized community
	// detection selector. Silently returning nothing would hide a caller
	// bug.
	ErrUnsupportedAlgorithm = errors.New("unsupported community algorithm")

	// ErrInvalidSearch is returned for an unrecognized search target.
	ErrInvalidSearch = errors.New("invalid search request")
)
