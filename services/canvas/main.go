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
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianCanvas/pkg/logging"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/actions"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/dispatcher"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/events"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/executor"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/reporter"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/routes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/runner"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing stays local-only when no collector is configured.
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
		return func(context.Context) {}, nil
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
		resource.WithAttributes(semconv.ServiceNameKey.String("canvas-service")))
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

func envToken(name string) func() string {
	return func() string { return os.Getenv(name) }
}

func main() {
	port := os.Getenv("CANVAS_PORT")
	if port == "" {
		port = "12230"
	}

	logger := logging.Setup(logging.Config{
		Level:   os.Getenv("CANVAS_LOG_LEVEL"),
		LogDir:  os.Getenv("CANVAS_LOG_DIR"),
		Service: "canvas",
		JSON:    true,
	})
	defer func() {
		if err := logger.Close(); err != nil {
			slog.Error("failed to close logger", "error", err)
		}
	}()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	cfg, err := config.Load(os.Getenv("CANVAS_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("FATAL: could not load canvas config: %v", err)
	}

	store := graph.NewStore()

	var remote runner.NodeRunner
	if generatorURL := os.Getenv("CANVAS_GENERATOR_URL"); generatorURL != "" {
		remote = runner.NewRemoteRunner(nil, generatorURL, envToken("CANVAS_GENERATOR_TOKEN"))
		slog.Info("using remote generation backend", "url", generatorURL)
	} else {
		slog.Info("CANVAS_GENERATOR_URL not set, all node runs use the mock backend")
	}
	router := runner.NewRouter(cfg, remote, runner.NewMockRunner())

	exec := executor.New(store, cfg, router)
	normalizer := actions.NewNormalizer(cfg)
	rep := reporter.New(nil, os.Getenv("CANVAS_RESULTS_URL"), envToken("CANVAS_SESSION_TOKEN"), reporter.LogSink{})
	manager := dispatcher.NewManager(normalizer, exec, rep)
	defer manager.CloseAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Attach to the upstream event stream when one is configured.
	if streamURL := os.Getenv("CANVAS_STREAM_URL"); streamURL != "" {
		sessionId := os.Getenv("CANVAS_SESSION_ID")
		if sessionId == "" {
			sessionId = "default"
		}
		session := manager.Open(ctx, sessionId)
		subscriber := events.NewSubscriber(nil, streamURL, envToken("CANVAS_SESSION_TOKEN"))
		_, err := subscriber.Subscribe(ctx, events.Callbacks{
			OnOpen: func() {
				slog.Info("event stream connected", "url", streamURL, "session_id", sessionId)
			},
			OnMessage: func(msg datatypes.ToolEventMessage) {
				session.Offer(msg, true)
			},
			OnError: func(err error) {
				slog.Error("event stream failed", "error", err)
			},
		})
		if err != nil {
			log.Fatalf("FATAL: could not subscribe to event stream: %v", err)
		}
	} else {
		slog.Info("CANVAS_STREAM_URL not set, accepting tool calls over HTTP only")
	}

	engine := gin.Default()
	engine.Use(otelgin.Middleware("canvas-service"))
	routes.SetupRoutes(engine, store, manager, os.Getenv("CANVAS_AUTH_SECRET"))

	slog.Info("starting the canvas server", "port", port)
	server := &http.Server{Addr: ":" + port, Handler: engine}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
