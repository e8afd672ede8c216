// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kg

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for store operations.
var (
	tracer = otel.Tracer("codeseeker.kg")
	meter  = otel.Meter("codeseeker.kg")
)

// Metrics for store operations.
var (
	mutationTotal    metric.Int64Counter
	mutationLatency  metric.Float64Histogram
	queryLatency     metric.Float64Histogram
	traversalVisited metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		mutationTotal, err = meter.Int64Counter(
			"kg_mutations_total",
			metric.WithDescription("Total number of store mutations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mutationLatency, err = meter.Float64Histogram(
			"kg_mutation_duration_seconds",
			metric.WithDescription("Duration of store mutations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryLatency, err = meter.Float64Histogram(
			"kg_query_duration_seconds",
			metric.WithDescription("Duration of store queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		traversalVisited, err = meter.Int64Histogram(
			"kg_traversal_visited_nodes",
			metric.WithDescription("Number of nodes visited per traversal"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordMutation records metrics for a single mutation.
func recordMutation(ctx context.Context, op string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	)
	mutationTotal.Add(ctx, 1, attrs)
	mutationLatency.Record(ctx, duration.Seconds(), attrs)
}

// recordQuery records metrics for a query operation.
func recordQuery(ctx context.Context, queryType string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	queryLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("query_type", queryType)),
	)
}

// recordTraversal records the visited-node count of a traversal.
func recordTraversal(ctx context.Context, visited int) {
	if err := initMetrics(); err != nil {
		return
	}
	traversalVisited.Record(ctx, int64(visited))
}

// startSpan creates a span for a store operation.
func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Store."+op, trace.WithAttributes(attrs...))
}
