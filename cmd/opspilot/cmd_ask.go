// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
)

var showSQL bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Asks a single question about your incident and problem records",
	Long: `Sends one question to the assistant service and prints the grounded
answer. Follow-ups share the same session, so "what about last week?"
after a question continues the previous one.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAskCommand,
}

func init() {
	askCmd.Flags().BoolVar(&showSQL, "show-sql", false, "Print the generated SQL alongside the answer")
}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	resp, err := sendQuery(question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\n%s\n", resp.ModelResponse)
	if showSQL && resp.GeneratedQuery != "" {
		fmt.Printf("\nSQL: %s\n", resp.GeneratedQuery)
	}
	if !resp.Persisted {
		fmt.Println("\n(warning: this turn could not be saved to the session)")
	}
	fmt.Println("\n---")
}
