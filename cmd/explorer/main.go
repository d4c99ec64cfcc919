// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/config"
)

// --- Global Command Variables ---
var (
	flagConfig  string
	flagRoot    string
	flagVerbose bool
	flagForce   bool
	flagTrace   bool
	flagPort    int

	rootCmd = &cobra.Command{
		Use:   "explorer",
		Short: "Explore a codebase and answer questions about it",
		Long: `Explorer builds a compact signature index of a project, then answers
questions by letting an oracle steer which files to inspect, what to
prune, and which code ranges to read.`,
	}

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Build the signature index for the project",
		Run:   runIndexCommand, // Defined in cmd_index.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the codebase",
		Args:  cobra.ArbitraryArgs,
		Run:   runAskCommand, // Defined in cmd_ask.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the exploration HTTP service",
		Run:   runServeCommand, // Defined in cmd_serve.go
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "",
		"Project directory to explore (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&flagForce, "force", false,
		"Rebuild even when an index file already exists")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&flagTrace, "trace", false,
		"Print the per-iteration exploration trace")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&flagPort, "port", 0,
		"Listen port (overrides config)")
}

// loadConfig resolves the effective configuration for a command run:
// the config file and environment first, then command-line flags on
// top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagRoot != "" {
		cfg.Root = flagRoot
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	if flagPort != 0 {
		cfg.Server.Port = flagPort
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
