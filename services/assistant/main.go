// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

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
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "opspilot-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("assistant-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func newLLMClient() llm.LLMClient {
	llmBackendType := os.Getenv("LLM_BACKEND_TYPE")

	var client llm.LLMClient
	var err error
	switch llmBackendType {
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "none":
		slog.Warn("LLM backend disabled; intent classification uses keyword fallback only")
		return nil
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		client, err = llm.NewOllamaClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	return client
}

func main() {
	port := os.Getenv("ASSISTANT_PORT")
	if port == "" {
		port = "12220"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	dataPath := os.Getenv("ASSISTANT_DATA_PATH")
	if dataPath == "" {
		dataPath = "/app/data/tickets.db"
	}
	backend, err := executor.NewSQLiteBackend(dataPath)
	if err != nil {
		log.Fatalf("Failed to open data backend: %v", err)
	}
	defer backend.Close()

	sessionPath := os.Getenv("ASSISTANT_SESSION_PATH")
	if sessionPath == "" {
		sessionPath = "/app/data/sessions"
	}
	sessions, err := store.OpenBadger(store.DefaultBadgerConfig(sessionPath))
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer sessions.Close()

	llmClient := newLLMClient()
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

	router := gin.Default()
	router.Use(otelgin.Middleware("assistant-service"))

	routes.SetupRoutes(router, coord, backend)
	log.Println("started up the container")

	log.Println("Starting the assistant server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
