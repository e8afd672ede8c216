// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// kgraph is the command-line front end for the knowledge graph: it loads
// a graph from a snapshot file or a persistence backend, runs one query
// or mutation, and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jghiringhelli/codeseeker-sub003/config"
	"github.com/jghiringhelli/codeseeker-sub003/kg"
	"github.com/jghiringhelli/codeseeker-sub003/kg/query"
	"github.com/jghiringhelli/codeseeker-sub003/persistence/badgerstore"
	"github.com/jghiringhelli/codeseeker-sub003/persistence/sqlitestore"
)

// restorer is implemented by persistence adapters that can load the full
// graph back.
type restorer interface {
	Restore(ctx context.Context) (*kg.Snapshot, error)
}

// app carries the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *kg.Store
	engine *query.Engine
	port   kg.Port

	configPath   string
	snapshotPath string
	logLevel     string
	logFormat    string
}

func main() {
	a := &app{}
	root := newRootCmd(a)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kgraph",
		Short:         "Semantic knowledge graph query tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.snapshotPath, "snapshot", "", "graph snapshot JSON file to load")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log format (text, json)")

	root.AddCommand(
		newStatsCmd(a),
		newIDCmd(),
		newNodesCmd(a),
		newTriadsCmd(a),
		newPathCmd(a),
		newSearchCmd(a),
		newCentralityCmd(a),
		newCommunitiesCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// setup wires config, logger, persistence, store, and engine.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.logger = logger

	port, err := buildPort(cfg.Persistence, logger)
	if err != nil {
		return err
	}
	a.port = port

	storeOpts := []kg.StoreOption{
		kg.WithLogger(logger),
		kg.WithPort(port),
	}
	if cfg.Store.MaxNodes > 0 {
		storeOpts = append(storeOpts, kg.WithMaxNodes(cfg.Store.MaxNodes))
	}
	if cfg.Store.MaxTriads > 0 {
		storeOpts = append(storeOpts, kg.WithMaxTriads(cfg.Store.MaxTriads))
	}
	a.store = kg.NewStore(storeOpts...)

	engineOpts := []query.EngineOption{
		query.WithLogger(logger),
		query.WithCacheTTL(cfg.Query.CacheTTL),
		query.WithCacheSize(cfg.Query.CacheSize),
	}
	if cfg.Query.InvalidateOnWrite {
		engineOpts = append(engineOpts, query.WithInvalidateOnWrite())
	}
	a.engine = query.NewEngine(a.store, engineOpts...)

	ctx := cmd.Context()
	if cfg.Persistence.RestoreOnStart {
		if r, ok := port.(restorer); ok {
			snapshot, err := r.Restore(ctx)
			if err != nil {
				return fmt.Errorf("restore from %s: %w", cfg.Persistence.Driver, err)
			}
			if err := a.store.Import(ctx, snapshot); err != nil {
				return err
			}
		}
	}
	if a.snapshotPath != "" {
		snapshot, err := readSnapshotFile(a.snapshotPath)
		if err != nil {
			return err
		}
		if err := a.store.Import(ctx, snapshot); err != nil {
			return err
		}
		logger.Debug("loaded snapshot",
			slog.String("path", a.snapshotPath),
			slog.Int("nodes", a.store.NodeCount()),
			slog.Int("triads", a.store.TriadCount()))
	}
	return nil
}

func (a *app) teardown() error {
	if a.port == nil {
		return nil
	}
	return a.port.Close()
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

func buildPort(cfg config.PersistenceConfig, logger *slog.Logger) (kg.Port, error) {
	switch cfg.Driver {
	case "", "none":
		return kg.NewNopPort(), nil
	case "sqlite":
		return sqlitestore.Open(cfg.Path, sqlitestore.WithLogger(logger))
	case "badger":
		return badgerstore.Open(badgerstore.Options{
			Path:     cfg.Path,
			InMemory: cfg.InMemory,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
}

func readSnapshotFile(path string) (*kg.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", path, err)
	}
	var snapshot kg.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot %q: %w", path, err)
	}
	return &snapshot, nil
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
