// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jghiringhelli/codeseeker-sub003/kg"
	"github.com/jghiringhelli/codeseeker-sub003/kg/query"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print graph counts and content hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, a.store.Stats())
		},
	}
}

func newIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id <type> <namespace> <name>",
		Short: "Derive the content-addressed id of a node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), kg.NodeID(kg.NodeType(args[0]), args[1], args[2]))
			return nil
		},
	}
}

func newNodesCmd(a *app) *cobra.Command {
	var (
		types      []string
		names      []string
		namespaces []string
		limit      int
		offset     int
	)
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Query nodes by type, name, or namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := kg.NodeFilter{
				Names:      names,
				Namespaces: namespaces,
				Limit:      limit,
				Offset:     offset,
			}
			for _, t := range types {
				filter.Types = append(filter.Types, kg.NodeType(t))
			}
			nodes, err := a.store.QueryNodes(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, nodes)
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "node types to match")
	cmd.Flags().StringSliceVar(&names, "name", nil, "name substrings to match")
	cmd.Flags().StringSliceVar(&namespaces, "namespace", nil, "namespaces to match")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "results to skip")
	return cmd
}

func newTriadsCmd(a *app) *cobra.Command {
	var (
		subjects      []string
		predicateArgs []string
		objects       []string
		minConfidence float64
		limit         int
		offset        int
	)
	cmd := &cobra.Command{
		Use:   "triads",
		Short: "Query triads by subject, predicate, or object",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := kg.TriadFilter{
				Subjects:      subjects,
				Objects:       objects,
				MinConfidence: minConfidence,
				Limit:         limit,
				Offset:        offset,
			}
			for _, p := range predicateArgs {
				filter.Predicates = append(filter.Predicates, kg.Predicate(p))
			}
			triads, err := a.store.QueryTriads(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, triads)
		},
	}
	cmd.Flags().StringSliceVar(&subjects, "subject", nil, "subject node ids")
	cmd.Flags().StringSliceVar(&predicateArgs, "predicate", nil, "predicates to match")
	cmd.Flags().StringSliceVar(&objects, "object", nil, "object ids or literals")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "minimum confidence")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "results to skip")
	return cmd
}

func newPathCmd(a *app) *cobra.Command {
	var (
		predicateArgs []string
		all           bool
		maxDepth      int
		maxPaths      int
	)
	cmd := &cobra.Command{
		Use:   "path <from-id> <to-id>",
		Short: "Find the cheapest path, or all paths, between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var predicates []kg.Predicate
			for _, p := range predicateArgs {
				predicates = append(predicates, kg.Predicate(p))
			}
			if all {
				paths, err := a.engine.FindAllPaths(cmd.Context(), query.AllPathsQuery{
					From:       args[0],
					To:         args[1],
					Predicates: predicates,
					MaxDepth:   maxDepth,
					MaxPaths:   maxPaths,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, paths)
			}
			path, err := a.engine.FindShortestPath(cmd.Context(), query.PathQuery{
				From:       args[0],
				To:         args[1],
				Predicates: predicates,
				MaxDepth:   maxDepth,
			})
			if err != nil {
				return err
			}
			if path == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no path")
				return nil
			}
			return printJSON(cmd, path)
		},
	}
	cmd.Flags().StringSliceVar(&predicateArgs, "predicate", nil, "crossable predicates (empty = all)")
	cmd.Flags().BoolVar(&all, "all", false, "enumerate all simple paths instead of the cheapest")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum path length in edges")
	cmd.Flags().IntVar(&maxPaths, "max-paths", 0, "maximum paths with --all")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		target string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank nodes and triads against a free-text query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.engine.SemanticSearch(cmd.Context(), args[0], query.SearchTarget(target), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}
	cmd.Flags().StringVar(&target, "target", "both", "search target: nodes, triads, or both")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	return cmd
}

func newCentralityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "centrality <node-id>",
		Short: "Compute the centrality profile of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.engine.AnalyzeNodeCentrality(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if report == nil {
				return fmt.Errorf("node %s not found", args[0])
			}
			return printJSON(cmd, report)
		},
	}
}

func newCommunitiesCmd(a *app) *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "communities",
		Short: "Group nodes into communities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			communities, err := a.engine.FindCommunities(cmd.Context(), algorithm)
			if err != nil {
				return err
			}
			return printJSON(cmd, communities)
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "selector: semantic, connected_components, louvain, modularity")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the graph snapshot to a JSON file (\"-\" for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot := a.store.Export()
			if args[0] == "-" {
				return printJSON(cmd, snapshot)
			}
			data, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("write snapshot %q: %w", args[0], err)
			}
			a.logger.Info("exported snapshot",
				"path", args[0],
				"nodes", len(snapshot.Nodes),
				"triads", len(snapshot.Triads))
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the graph with a snapshot file and persist it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := readSnapshotFile(args[0])
			if err != nil {
				return err
			}
			if err := a.store.Import(cmd.Context(), snapshot); err != nil {
				return err
			}
			stats := a.store.PersistSnapshot(cmd.Context())
			return printJSON(cmd, stats)
		},
	}
}
