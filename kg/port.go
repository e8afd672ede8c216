// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"context"
	"time"
)

// SnapshotStats is a periodic durability record: entity counts plus a
// content hash over the exported snapshot.
type SnapshotStats struct {
	NodeCount   int       `json:"node_count"`
	TriadCount  int       `json:"triad_count"`
	ContentHash string    `json:"content_hash"`
	TakenAt     time.Time `json:"taken_at"`
}

// Port is the optional durable mirror consumed by the store.
//
// Every mutation is written through, but the in-memory store remains
// authoritative: Port errors are logged at the call site and never
// propagate to the caller. Implementations must be idempotent on the
// entity id for both upsert operations.
type Port interface {
	UpsertNode(ctx context.Context, node *Node) error
	UpsertTriad(ctx context.Context, triad *Triad) error
	DeleteNode(ctx context.Context, id string) error
	DeleteTriad(ctx context.Context, id string) error
	SaveSnapshot(ctx context.Context, stats SnapshotStats) error
	Close() error
}

// NopPort is the default Port: every operation succeeds without doing
// anything. It keeps the store fully testable without a durable backend.
type NopPort struct{}

// NewNopPort returns a no-op Port.
func NewNopPort() *NopPort {
	return &NopPort{}
}

func (*NopPort) UpsertNode(context.Context, *Node) error          { return nil }
func (*NopPort) UpsertTriad(context.Context, *Triad) error        { return nil }
func (*NopPort) DeleteNode(context.Context, string) error         { return nil }
func (*NopPort) DeleteTriad(context.Context, string) error        { return nil }
func (*NopPort) SaveSnapshot(context.Context, SnapshotStats) error { return nil }
func (*NopPort) Close() error                                     { return nil }
