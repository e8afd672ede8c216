// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for query engine operations.
var (
	tracer = otel.Tracer("codeseeker.query")
	meter  = otel.Meter("codeseeker.query")
)

// Metrics for the query engine and its path cache.
var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
	opLatency      metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"query_path_cache_hits_total",
			metric.WithDescription("Path cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"query_path_cache_misses_total",
			metric.WithDescription("Path cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheEvictions, err = meter.Int64Counter(
			"query_path_cache_evictions_total",
			metric.WithDescription("Path cache evictions, by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opLatency, err = meter.Float64Histogram(
			"query_op_duration_seconds",
			metric.WithDescription("Duration of query engine operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCacheHit(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheHits.Add(ctx, 1)
}

func recordCacheMiss(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordCacheEviction(ctx context.Context, reason string) {
	if initMetrics() != nil {
		return
	}
	cacheEvictions.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// recordOp records the latency of one engine operation.
func recordOp(ctx context.Context, op string, duration time.Duration) {
	if initMetrics() != nil {
		return
	}
	opLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("op", op)),
	)
}

// startSpan creates a span for an engine operation.
func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine."+op, trace.WithAttributes(attrs...))
}
