// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Runs a tour of example questions against the running service",
	Long: `Sends a fixed sequence of questions, including a follow-up, to show
what the assistant can do. Requires a running service with seeded data
('opspilot seed' then 'opspilot serve').`,
	Run: runExamplesCommand,
}

var exampleQuestions = []string{
	"Hi there!",
	"How many critical incidents were opened this month?",
	"what about last week?",
	"Show me open problems in the network category",
	"How many incidents per priority this year?",
	"what's the meaning of life?",
}

func runExamplesCommand(cmd *cobra.Command, args []string) {
	for i, question := range exampleQuestions {
		fmt.Printf("\n[%d/%d] %s\n", i+1, len(exampleQuestions), question)
		fmt.Println("---")

		resp, err := sendQuery(question)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(resp.ModelResponse)
		if resp.GeneratedQuery != "" {
			fmt.Printf("(sql: %s)\n", resp.GeneratedQuery)
		}
	}
	fmt.Println()
}
