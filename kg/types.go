// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import "time"

// Default store configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a store can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxTriads is the default maximum number of triads a store can hold.
	DefaultMaxTriads = 10_000_000
)

// NodeType classifies the entity a node represents.
type NodeType string

// Closed enumeration of node types.
const (
	NodeTypeClass         NodeType = "class"
	NodeTypeFunction      NodeType = "function"
	NodeTypeModule        NodeType = "module"
	NodeTypeInterface     NodeType = "interface"
	NodeTypeService       NodeType = "service"
	NodeTypePattern       NodeType = "pattern"
	NodeTypeConcept       NodeType = "concept"
	NodeTypeDatabaseTable NodeType = "database_table"
	NodeTypeAPIEndpoint   NodeType = "api_endpoint"
	NodeTypeConfigFile    NodeType = "config_file"
	NodeTypeLibrary       NodeType = "library"
)

// nodeTypes is the set of valid node types.
var nodeTypes = map[NodeType]struct{}{
	NodeTypeClass:         {},
	NodeTypeFunction:      {},
	NodeTypeModule:        {},
	NodeTypeInterface:     {},
	NodeTypeService:       {},
	NodeTypePattern:       {},
	NodeTypeConcept:       {},
	NodeTypeDatabaseTable: {},
	NodeTypeAPIEndpoint:   {},
	NodeTypeConfigFile:    {},
	NodeTypeLibrary:       {},
}

// Valid reports whether t is a member of the closed node type enumeration.
func (t NodeType) Valid() bool {
	_, ok := nodeTypes[t]
	return ok
}

// Predicate is the typed relation label connecting the subject and object
// of a triad.
type Predicate string

// Closed enumeration of predicates, grouped by relation family.
const (
	// Structural
	PredicateExtends  Predicate = "extends"
	PredicateContains Predicate = "contains"
	PredicatePartOf   Predicate = "part_of"

	// Behavioral
	PredicateCalls   Predicate = "calls"
	PredicateThrows  Predicate = "throws"
	PredicateHandles Predicate = "handles"

	// Data flow
	PredicateReadsFrom Predicate = "reads_from"
	PredicateProduces  Predicate = "produces"

	// Dependency
	PredicateDependsOn Predicate = "depends_on"
	PredicateImports   Predicate = "imports"

	// Pattern
	PredicateFollowsPattern  Predicate = "follows_pattern"
	PredicateViolatesPattern Predicate = "violates_pattern"

	// Semantic
	PredicateIsSimilarTo Predicate = "is_similar_to"
	PredicateIsTypeOf    Predicate = "is_type_of"

	// Quality
	PredicateDuplicates Predicate = "duplicates"
	PredicateRefactors  Predicate = "refactors"
)

// predicates is the set of valid predicates.
var predicates = map[Predicate]struct{}{
	PredicateExtends:         {},
	PredicateContains:        {},
	PredicatePartOf:          {},
	PredicateCalls:           {},
	PredicateThrows:          {},
	PredicateHandles:         {},
	PredicateReadsFrom:       {},
	PredicateProduces:        {},
	PredicateDependsOn:       {},
	PredicateImports:         {},
	PredicateFollowsPattern:  {},
	PredicateViolatesPattern: {},
	PredicateIsSimilarTo:     {},
	PredicateIsTypeOf:        {},
	PredicateDuplicates:      {},
	PredicateRefactors:       {},
}

// semanticPredicates are the predicates followed by semantic cluster
// expansion.
var semanticPredicates = map[Predicate]struct{}{
	PredicateIsSimilarTo: {},
	PredicateIsTypeOf:    {},
}

// Valid reports whether p is a member of the closed predicate enumeration.
func (p Predicate) Valid() bool {
	_, ok := predicates[p]
	return ok
}

// Source tags the provenance of a triad.
type Source string

// Known provenance tags. The set is advisory, not validated: new producers
// may introduce their own tags.
const (
	SourceStaticAnalysis  Source = "static_analysis"
	SourcePatternDetector Source = "pattern_detector"
	SourceUserInput       Source = "user_input"
	SourceInference       Source = "inference"
	SourceImport          Source = "import"
)

// SourceLocation pins a node to a position in a repository.
type SourceLocation struct {
	FilePath    string `json:"file_path"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	StartColumn int    `json:"start_column,omitempty"`
	EndColumn   int    `json:"end_column,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Commit      string `json:"commit,omitempty"`
}

// NodeMetadata carries the recognized optional node fields plus a free-form
// string extension map for anything producers want to attach beyond them.
type NodeMetadata struct {
	Complexity   int               `json:"complexity,omitempty"`
	Importance   float64           `json:"importance,omitempty"`
	Stability    float64           `json:"stability,omitempty"`
	TestCoverage float64           `json:"test_coverage,omitempty"`
	Visibility   string            `json:"visibility,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Node is a typed, named entity in the graph: a code construct, an
// architectural concept, or an infrastructure artifact.
//
// ID is content-addressed from (Type, Namespace, Name); see NodeID. The
// store recomputes it on insert, so callers may leave it empty.
type Node struct {
	ID             string          `json:"id"`
	Type           NodeType        `json:"type"`
	Name           string          `json:"name"`
	Namespace      string          `json:"namespace,omitempty"`
	SourceLocation *SourceLocation `json:"source_location,omitempty"`
	Metadata       NodeMetadata    `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TriadMetadata carries the recognized optional triad fields plus a
// free-form string extension map.
type TriadMetadata struct {
	Strength  float64           `json:"strength,omitempty"`
	Frequency int               `json:"frequency,omitempty"`
	Context   string            `json:"context,omitempty"`
	Evidence  []string          `json:"evidence,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Triad is a directed, typed fact: subject --predicate--> object, with a
// confidence score in [0,1] expressing the engine's belief that the fact
// holds. Object is usually a node id but may be a literal.
//
// ID is content-addressed from (Subject, Predicate, Object); see TriadID.
type Triad struct {
	ID         string        `json:"id"`
	Subject    string        `json:"subject"`
	Predicate  Predicate     `json:"predicate"`
	Object     string        `json:"object"`
	Confidence float64       `json:"confidence"`
	Source     Source        `json:"source,omitempty"`
	Metadata   TriadMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Weight is the edge weight used by path search: higher-confidence facts
// cost less to cross.
func (t *Triad) Weight() float64 {
	return 1 - t.Confidence
}

// Direction selects which edges a traversal follows relative to the
// current node.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Valid reports whether d is a recognized direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// NodeFilter selects nodes. All populated fields combine by logical AND;
// an absent field is unconstrained. Offset is applied before Limit.
type NodeFilter struct {
	// Types matches nodes whose type is in the set.
	Types []NodeType `json:"types,omitempty"`

	// Names matches nodes whose name contains any of the given substrings.
	Names []string `json:"names,omitempty"`

	// Namespaces matches nodes whose namespace is in the set.
	Namespaces []string `json:"namespaces,omitempty"`

	// Metadata matches nodes whose metadata field (known field name or
	// Extra key) equals the given value.
	Metadata map[string]string `json:"metadata,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// TriadFilter selects triads. All populated fields combine by logical AND;
// an absent field is unconstrained. Offset is applied before Limit.
type TriadFilter struct {
	Subjects   []string    `json:"subjects,omitempty"`
	Predicates []Predicate `json:"predicates,omitempty"`
	Objects    []string    `json:"objects,omitempty"`
	Sources    []Source    `json:"sources,omitempty"`

	// MinConfidence drops triads below the threshold. Zero is
	// unconstrained.
	MinConfidence float64 `json:"min_confidence,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// TraversalQuery describes a bounded walk from a set of start nodes.
type TraversalQuery struct {
	// StartNodes are the node ids the walk expands from. Required.
	StartNodes []string `json:"start_nodes"`

	// Predicates restricts which triads are followed. Empty means all.
	Predicates []Predicate `json:"predicates,omitempty"`

	// Direction selects edge orientation. Defaults to outgoing.
	Direction Direction `json:"direction,omitempty"`

	// MaxDepth bounds the walk. Zero or negative uses the store default.
	MaxDepth int `json:"max_depth,omitempty"`
}

// PathStep is one edge crossing within a traversal path.
type PathStep struct {
	From      string    `json:"from"`
	Predicate Predicate `json:"predicate"`
	To        string    `json:"to"`
	TriadID   string    `json:"triad_id"`
}

// TraversalPath is a sequence of edge crossings discovered beyond depth 0.
type TraversalPath struct {
	Steps []PathStep `json:"steps"`
}

// Depth is the number of edges in the path.
func (p TraversalPath) Depth() int {
	return len(p.Steps)
}

// TraversalResult contains the nodes visited by a traversal and every
// edge-path discovered beyond depth 0.
type TraversalResult struct {
	// Nodes are the visited nodes, in visit order. Each node appears at
	// most once across the whole traversal.
	Nodes []*Node `json:"nodes"`

	// Paths are the discovered edge-paths.
	Paths []TraversalPath `json:"paths"`

	// Truncated is true if the walk stopped early due to cancellation.
	Truncated bool `json:"truncated,omitempty"`
}

// NodeUpdate carries in-place node changes. Nil fields are left untouched.
type NodeUpdate struct {
	SourceLocation *SourceLocation `json:"source_location,omitempty"`
	Metadata       *NodeMetadata   `json:"metadata,omitempty"`
}

// TriadUpdate carries in-place triad changes. Nil fields are left
// untouched.
type TriadUpdate struct {
	Confidence *float64       `json:"confidence,omitempty"`
	Source     *Source        `json:"source,omitempty"`
	Metadata   *TriadMetadata `json:"metadata,omitempty"`
}

// NodeUpdateRequest pairs a node id with its update for batch mutation.
type NodeUpdateRequest struct {
	ID     string     `json:"id"`
	Update NodeUpdate `json:"update"`
}

// TriadUpdateRequest pairs a triad id with its update for batch mutation.
type TriadUpdateRequest struct {
	ID     string      `json:"id"`
	Update TriadUpdate `json:"update"`
}

// Mutation is a batched graph change. Mutate applies the groups in the
// declared field order (adds, then removes, then updates), so a single
// batch can create a node and immediately reference it.
type Mutation struct {
	AddNodes     []Node               `json:"add_nodes,omitempty"`
	AddTriads    []Triad              `json:"add_triads,omitempty"`
	RemoveNodes  []string             `json:"remove_nodes,omitempty"`
	RemoveTriads []string             `json:"remove_triads,omitempty"`
	UpdateNodes  []NodeUpdateRequest  `json:"update_nodes,omitempty"`
	UpdateTriads []TriadUpdateRequest `json:"update_triads,omitempty"`
}

// MutationResult reports the outcome of a batch mutation.
type MutationResult struct {
	AddedNodes    []string `json:"added_nodes,omitempty"`
	AddedTriads   []string `json:"added_triads,omitempty"`
	RemovedNodes  int      `json:"removed_nodes"`
	RemovedTriads int      `json:"removed_triads"`
	UpdatedNodes  int      `json:"updated_nodes"`
	UpdatedTriads int      `json:"updated_triads"`
}

// Snapshot is the import/export format: two flat lists of full entity
// records. Ids are included and trusted verbatim on import.
type Snapshot struct {
	Nodes  []Node  `json:"nodes"`
	Triads []Triad `json:"triads"`
}
