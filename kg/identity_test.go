// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeIDDeterministic(t *testing.T) {
	a := NodeID(NodeTypeClass, "auth", "UserService")
	b := NodeID(NodeTypeClass, "auth", "UserService")
	assert.Equal(t, a, b)
	assert.Len(t, a, idBytes*2)
}

func TestNodeIDDistinguishesComponents(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
	}{
		{
			name:  "different type",
			left:  NodeID(NodeTypeClass, "auth", "UserService"),
			right: NodeID(NodeTypeService, "auth", "UserService"),
		},
		{
			name:  "different namespace",
			left:  NodeID(NodeTypeClass, "auth", "UserService"),
			right: NodeID(NodeTypeClass, "billing", "UserService"),
		},
		{
			name:  "different name",
			left:  NodeID(NodeTypeClass, "auth", "UserService"),
			right: NodeID(NodeTypeClass, "auth", "OrderService"),
		},
		{
			name:  "component boundary shift",
			left:  NodeID(NodeTypeClass, "ab", "c"),
			right: NodeID(NodeTypeClass, "a", "bc"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.left, tt.right)
		})
	}
}

func TestTriadIDDeterministic(t *testing.T) {
	a := TriadID("s1", PredicateCalls, "s2")
	b := TriadID("s1", PredicateCalls, "s2")
	assert.Equal(t, a, b)
}

func TestTriadIDDirectional(t *testing.T) {
	forward := TriadID("s1", PredicateCalls, "s2")
	reverse := TriadID("s2", PredicateCalls, "s1")
	assert.NotEqual(t, forward, reverse)

	other := TriadID("s1", PredicateImports, "s2")
	assert.NotEqual(t, forward, other)
}
