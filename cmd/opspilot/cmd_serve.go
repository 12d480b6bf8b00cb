// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/AleutianAI/OpsPilot/cmd/opspilot/config"
	"github.com/AleutianAI/OpsPilot/pkg/logging"
	"github.com/AleutianAI/OpsPilot/services/assistant/classifier"
	"github.com/AleutianAI/OpsPilot/services/assistant/composer"
	"github.com/AleutianAI/OpsPilot/services/assistant/coordinator"
	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/assistant/executor"
	"github.com/AleutianAI/OpsPilot/services/assistant/observability"
	"github.com/AleutianAI/OpsPilot/services/assistant/routes"
	"github.com/AleutianAI/OpsPilot/services/assistant/store"
	"github.com/AleutianAI/OpsPilot/services/assistant/synthesizer"
	"github.com/AleutianAI/OpsPilot/services/llm"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the assistant service on this machine",
	Long: `Starts the assistant HTTP service using the paths and backend from
~/.opspilot/opspilot.yaml. For container deployments use the
assistant-service image instead; this command is for local use.`,
	Run: runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("OPSPILOT_LOG_LEVEL")),
		LogDir:  "~/.opspilot/logs",
		Service: "assistant",
	})
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	cfg := config.Global

	backend, err := executor.NewSQLiteBackend(cfg.Server.DataPath)
	if err != nil {
		log.Fatalf("Failed to open data backend: %v", err)
	}
	defer backend.Close()

	sessions, err := store.OpenBadger(store.DefaultBadgerConfig(cfg.Server.SessionPath))
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer sessions.Close()

	var llmClient llm.LLMClient
	switch cfg.ModelBackend.Type {
	case "openai":
		llmClient, err = llm.NewOpenAIClient()
	case "none":
		slog.Warn("model backend disabled; classification uses keyword fallback only")
	default:
		if cfg.ModelBackend.BaseURL != "" {
			os.Setenv("OLLAMA_BASE_URL", cfg.ModelBackend.BaseURL)
		}
		llmClient, err = llm.NewOllamaClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	metrics := observability.InitMetrics()
	schema := datatypes.DefaultSchema()

	coord := coordinator.New(
		classifier.New(llmClient, classifier.DefaultConfig()),
		synthesizer.New(llmClient, schema, synthesizer.DefaultConfig()),
		executor.New(backend, executor.DefaultConfig()),
		composer.New(llmClient, composer.DefaultConfig()),
		sessions,
		metrics,
		coordinator.DefaultConfig(),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	routes.SetupRoutes(router, coord, backend)

	log.Println("Starting the assistant server on port ", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
