// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/AleutianAI/OpsPilot/cmd/opspilot/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "opspilot",
	Short: "A CLI for the OpsPilot incident data assistant",
	Long: `OpsPilot answers natural language questions about incident and
problem records. This CLI runs the service, seeds sample data, and
talks to a running service from the terminal.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := config.Load(); err != nil {
			log.Fatalf("Error loading the config: %v", err)
		}
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(examplesCmd)
}
