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
	"sort"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
)

// Search tuning.
const (
	// SearchScoreThreshold drops candidates scoring below it.
	SearchScoreThreshold = 0.3

	// DefaultSearchLimit bounds results when the caller passes no limit.
	DefaultSearchLimit = 10

	// tagBonus is added once per metadata tag sharing a word with the
	// query.
	tagBonus = 0.1
)

// SearchTarget selects which entity kinds a search considers.
type SearchTarget string

const (
	SearchNodes  SearchTarget = "nodes"
	SearchTriads SearchTarget = "triads"
	SearchBoth   SearchTarget = "both"
)

// SearchResult is one scored search hit.
type SearchResult struct {
	// Kind is "node" or "triad".
	Kind string `json:"kind"`

	ID string `json:"id"`

	// Text is the candidate text the score was computed against.
	Text string `json:"text"`

	Score float64 `json:"score"`
}

// SemanticSearch ranks nodes and triads against a free-text query.
//
// Description:
//
//	Scoring is lexical, not embedding-based. A case-insensitive substring
//	hit scores 1.0 outright. Otherwise the score is word overlap between
//	query and candidate, normalized by the larger word count; identifier
//	names are split on case and separator boundaries, so "user service"
//	finds UserService. Each node tag sharing a word with the query adds
//	0.1, capped so no score exceeds 1. Candidates below 0.3 are dropped.
//
// Inputs:
//
//	target - Entity kinds to consider. Empty means both.
//	limit - Maximum results. Non-positive uses DefaultSearchLimit.
//
// Outputs:
//
//	Results sorted by score descending, then id, truncated to limit.
//
// Errors:
//
//	ErrInvalidSearch - blank query or unknown target
func (e *Engine) SemanticSearch(ctx context.Context, queryText string, target SearchTarget, limit int) ([]SearchResult, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, "SemanticSearch", attribute.String("kg.target", string(target)))
	defer span.End()

	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("%w: blank query", ErrInvalidSearch)
	}
	if target == "" {
		target = SearchBoth
	}
	switch target {
	case SearchNodes, SearchTriads, SearchBoth:
	default:
		return nil, fmt.Errorf("%w: unknown target %q", ErrInvalidSearch, target)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryWords := tokenize(queryText)
	queryLower := strings.ToLower(strings.TrimSpace(queryText))
	snapshot := e.store.Export()

	results := make([]SearchResult, 0)
	if target == SearchNodes || target == SearchBoth {
		for i := range snapshot.Nodes {
			node := &snapshot.Nodes[i]
			text := node.Name
			if node.Namespace != "" {
				text = node.Namespace + " " + node.Name
			}
			score := lexicalScore(queryLower, queryWords, text, node.Metadata.Tags)
			if score < SearchScoreThreshold {
				continue
			}
			results = append(results, SearchResult{Kind: "node", ID: node.ID, Text: text, Score: score})
		}
	}
	if target == SearchTriads || target == SearchBoth {
		for i := range snapshot.Triads {
			triad := &snapshot.Triads[i]
			text := triad.Subject + " " + string(triad.Predicate) + " " + triad.Object
			if triad.Metadata.Context != "" {
				text += " " + triad.Metadata.Context
			}
			score := lexicalScore(queryLower, queryWords, text, nil)
			if score < SearchScoreThreshold {
				continue
			}
			results = append(results, SearchResult{Kind: "triad", ID: triad.ID, Text: text, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	recordOp(ctx, "semantic_search", time.Since(start))
	span.SetAttributes(attribute.Int("kg.results", len(results)))
	return results, nil
}

// lexicalScore computes the match score of one candidate. queryLower and
// queryWords are precomputed from the same query text.
func lexicalScore(queryLower string, queryWords []string, text string, tags []string) float64 {
	var score float64
	if strings.Contains(strings.ToLower(text), queryLower) {
		score = 1.0
	} else {
		textWords := tokenize(text)
		if len(queryWords) == 0 || len(textWords) == 0 {
			return 0
		}
		textSet := make(map[string]struct{}, len(textWords))
		for _, w := range textWords {
			textSet[w] = struct{}{}
		}
		overlap := 0
		for _, w := range queryWords {
			if _, ok := textSet[w]; ok {
				overlap++
			}
		}
		denom := len(queryWords)
		if len(textWords) > denom {
			denom = len(textWords)
		}
		score = float64(overlap) / float64(denom)
	}

	if len(tags) > 0 {
		querySet := make(map[string]struct{}, len(queryWords))
		for _, w := range queryWords {
			querySet[w] = struct{}{}
		}
		for _, tag := range tags {
			for _, w := range tokenize(tag) {
				if _, ok := querySet[w]; ok {
					score += tagBonus
					break
				}
			}
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// tokenize splits text into lowercase words on separator characters and
// camel-case boundaries, so UserService yields ["user", "service"].
func tokenize(text string) []string {
	words := make([]string, 0)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			if unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]) {
				flush()
			}
			current.WriteRune(r)
		case unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}
