// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Starts an interactive conversation with the assistant",
	Long: `Opens a read-eval-print loop against the assistant service. Every
question shares one session, so follow-ups work naturally.

Console commands:
  /like [comment]     rate the last answer up
  /dislike [comment]  rate the last answer down
  /sql                show the SQL behind the last answer
  /quit               leave the console`,
	Run: runConsoleCommand,
}

func runConsoleCommand(cmd *cobra.Command, args []string) {
	fmt.Println("OpsPilot console. Ask about your incidents and problems; /quit to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	var lastTurnID, lastSQL string

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if line == "/quit" || line == "/exit" {
				fmt.Println("Bye.")
				return
			}
			handleConsoleCommand(line, lastTurnID, lastSQL)
			continue
		}

		resp, err := sendQuery(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		lastTurnID = resp.TurnID
		lastSQL = resp.GeneratedQuery
		fmt.Printf("\n%s\n", resp.ModelResponse)
		if !resp.Persisted {
			fmt.Println("(warning: this turn could not be saved to the session)")
		}
	}
}

func handleConsoleCommand(line, lastTurnID, lastSQL string) {
	fields := strings.SplitN(line, " ", 2)
	command := fields[0]
	comment := ""
	if len(fields) > 1 {
		comment = strings.TrimSpace(fields[1])
	}

	switch command {
	case "/like", "/dislike":
		if lastTurnID == "" {
			fmt.Println("Nothing to rate yet; ask a question first.")
			return
		}
		resp, err := sendFeedback(lastTurnID, strings.TrimPrefix(command, "/"), comment)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if resp.Duplicate {
			fmt.Println("Already recorded that rating for this answer.")
		} else {
			fmt.Println("Thanks, feedback recorded.")
		}
	case "/sql":
		if lastSQL == "" {
			fmt.Println("The last answer did not run a query.")
			return
		}
		fmt.Println(lastSQL)
	default:
		fmt.Printf("Unknown command %s. Available: /like /dislike /sql /quit\n", command)
	}
}
