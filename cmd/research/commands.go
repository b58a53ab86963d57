// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianResearch/pkg/logging"
	"github.com/AleutianAI/AleutianResearch/services/research"
	"github.com/AleutianAI/AleutianResearch/services/research/export"
	"github.com/AleutianAI/AleutianResearch/services/research/storage/badger"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	logLevel     string
	logDir       string
	port         int
	dataDir      string
	otelEndpoint string
	configFile   string
	exportFormat string

	rootCmd = &cobra.Command{
		Use:   "research",
		Short: "The Aleutian research graph service",
		Long: `research keeps event-sourced research session graphs, lays them
out for rendering, pushes live snapshots over websockets, and persists
sessions in BadgerDB.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// JSON on pipes and in containers, text on an interactive
			// terminal.
			jsonLogs := !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
			logger := logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				LogDir:  logDir,
				Service: "research",
				JSON:    jsonLogs,
			})
			slog.SetDefault(logger.Slog())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the research graph HTTP server",
		RunE:  runServe,
	}

	exportCmd = &cobra.Command{
		Use:   "export [session-id]",
		Short: "Export a stored session as JSON or a Mermaid diagram",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the research service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("research %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for dated log files (disabled when empty)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "BadgerDB snapshot directory (in-memory when empty)")

	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default 12230)")
	serveCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OpenTelemetry collector endpoint (disabled when empty)")
	serveCmd.Flags().StringVar(&configFile, "config", "", "YAML config file, watched for limit changes")

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or mermaid")

	rootCmd.AddCommand(serveCmd, exportCmd, versionCmd)
}

// runServe builds the config from environment variables, applies flag
// overrides, and runs the server until it stops.
func runServe(cmd *cobra.Command, args []string) error {
	cfg := research.ConfigFromEnv()
	if port != 0 {
		cfg.Port = port
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if otelEndpoint != "" {
		cfg.OTelEndpoint = otelEndpoint
	}
	if configFile != "" {
		cfg.ConfigFile = configFile
	}

	slog.Info("Starting research service",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"otel_endpoint", cfg.OTelEndpoint)

	svc, err := research.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create research service: %w", err)
	}
	return svc.Run()
}

// runExport reads one stored session snapshot and writes it to stdout.
func runExport(cmd *cobra.Command, args []string) error {
	if dataDir == "" {
		return fmt.Errorf("--data-dir is required for export")
	}
	sessionID := args[0]

	store, err := badger.NewSnapshotStore(badger.DefaultConfig(dataDir))
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer store.Close()

	blob, err := store.Get(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	switch exportFormat {
	case "json":
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, blob, "", "  "); err != nil {
			return fmt.Errorf("malformed snapshot for %s: %w", sessionID, err)
		}
		fmt.Println(pretty.String())
	case "mermaid":
		graphStore, err := export.Deserialize(blob)
		if err != nil {
			return fmt.Errorf("failed to restore session %s: %w", sessionID, err)
		}
		fmt.Println(export.Mermaid(graphStore, nil))
	default:
		return fmt.Errorf("unknown format %q (want json or mermaid)", exportFormat)
	}
	return nil
}
