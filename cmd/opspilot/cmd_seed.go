// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/AleutianAI/OpsPilot/cmd/opspilot/config"
	"github.com/AleutianAI/OpsPilot/services/assistant/executor"
	"github.com/spf13/cobra"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fills the local ticket database with generated sample records",
	Long: `Writes generated incident and problem records into the ticket
database so the assistant has something to answer questions about.
Run it before 'opspilot serve' when trying the assistant out.`,
	Run: runSeedCommand,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 200, "Number of records per table")
}

var (
	seedPriorities = []string{"critical", "high", "moderate", "low"}
	seedStates     = []string{"open", "in_progress", "resolved", "closed"}
	seedCategories = []string{"network", "database", "hardware", "software", "inquiry"}
	seedGroups     = []string{"noc", "dba", "desktop-support", "app-team", "security"}
	seedSummaries  = []string{
		"core router flapping on uplink",
		"replica lag above threshold",
		"disk failure in storage array",
		"deployment rollback required",
		"login page returning 500s",
		"certificate expiring within a week",
		"backup job missed its window",
		"VPN tunnel dropping intermittently",
	}
)

func runSeedCommand(cmd *cobra.Command, args []string) {
	backend, err := executor.NewSQLiteBackend(config.Global.Server.DataPath)
	if err != nil {
		log.Fatalf("Failed to open data backend: %v", err)
	}
	defer backend.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ctx := context.Background()

	for _, table := range []string{"incidents", "problems"} {
		prefix := "INC"
		if table == "problems" {
			prefix = "PRB"
		}
		var tickets []executor.Ticket
		for i := 0; i < seedCount; i++ {
			opened := time.Now().UTC().Add(-time.Duration(rng.Intn(365*24)) * time.Hour)
			t := executor.Ticket{
				Number:           fmt.Sprintf("%s%07d", prefix, i+1),
				Priority:         seedPriorities[rng.Intn(len(seedPriorities))],
				State:            seedStates[rng.Intn(len(seedStates))],
				Category:         seedCategories[rng.Intn(len(seedCategories))],
				AssignmentGroup:  seedGroups[rng.Intn(len(seedGroups))],
				ShortDescription: seedSummaries[rng.Intn(len(seedSummaries))],
				OpenedAt:         opened,
			}
			if t.State == "resolved" || t.State == "closed" {
				resolved := opened.Add(time.Duration(1+rng.Intn(72)) * time.Hour)
				t.ResolvedAt = &resolved
			}
			tickets = append(tickets, t)
		}
		if err := backend.LoadSampleData(ctx, table, tickets); err != nil {
			log.Fatalf("Failed to seed %s: %v", table, err)
		}
		fmt.Printf("Seeded %d records into %s\n", seedCount, table)
	}
	fmt.Printf("Done. Database: %s\n", config.Global.Server.DataPath)
}
