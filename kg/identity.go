// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"crypto/sha256"
	"encoding/hex"
)

// idBytes is the number of SHA-256 bytes retained for an id (hex-encoded
// to twice as many characters).
const idBytes = 16

// deriveID hashes the NUL-joined parts and truncates. The NUL separator
// keeps component boundaries unambiguous ("ab","c" never collides with
// "a","bc").
func deriveID(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:idBytes])
}

// NodeID derives the content-addressed id for a node from its semantic
// key. Identity never depends on insertion order: the same
// (type, namespace, name) always yields the same id.
func NodeID(nodeType NodeType, namespace, name string) string {
	return deriveID(string(nodeType), namespace, name)
}

// TriadID derives the content-addressed id for a triad from its
// (subject, predicate, object) triple. Re-inserting the same triple is
// idempotent with respect to identity.
func TriadID(subject string, predicate Predicate, object string) string {
	return deriveID(subject, string(predicate), object)
}
