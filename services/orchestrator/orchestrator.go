// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core conversation service for Thery.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the LLM client, the session registry, the turn
// history store, context retrieval, vector memory, and observability
// infrastructure.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 8080, LLMBackend: "openai"}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/theryai/thery-go/services/llm"
	"github.com/theryai/thery-go/services/orchestrator/agents"
	"github.com/theryai/thery-go/services/orchestrator/memory"
	"github.com/theryai/thery-go/services/orchestrator/routes"
	"github.com/theryai/thery-go/services/orchestrator/search"
	"github.com/theryai/thery-go/services/orchestrator/services"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the conversation service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds service configuration options.
//
// # Description
//
// Config centralizes all configuration. Values can be populated from
// environment variables, config files, or programmatically for testing.
// All fields are optional with defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "openai", "ollama"
	// Default: "openai"
	LLMBackend string

	// RedisAddr is the Redis host:port for sessions and turn history.
	// If empty, an in-process store is used (single-instance only).
	RedisAddr string

	// WeaviateURL is the Weaviate vector database URL.
	// If empty, vector memory and vector search are disabled.
	WeaviateURL string

	// EmbeddingURL is the external embedding service URL. Required for
	// vector features; ignored when WeaviateURL is empty.
	EmbeddingURL string

	// TavilyAPIKey enables web-search context retrieval. If empty, the
	// web source always degrades to its sentinel.
	TavilyAPIKey string

	// SessionTTL is the sliding session expiry. Default: 24h
	SessionTTL time.Duration

	// HistoryLimit is how many recent turns feed the response prompt.
	// Default: 10
	HistoryLimit int

	// LLMTimeout bounds each model invocation. Default: 60s
	LLMTimeout time.Duration

	// SearchTimeout bounds the context-gathering stage. Default: 10s
	SearchTimeout time.Duration

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "thery-otel-collector:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config         Config
	router         *gin.Engine
	llmClient      llm.LLMClient
	redisClient    *redis.Client
	weaviateClient *weaviate.Client
	registry       session.Registry
	conversation   *services.ConversationService
	tracerCleanup  func(context.Context)
}

// New creates a new conversation Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Connects Redis (or falls back to in-process stores)
//  4. Connects Weaviate and ensures the memory schema (optional)
//  5. Creates the LLM client for the configured backend
//  6. Wires the per-turn agents and the conversation service
//  7. Sets up HTTP routes
//
// # Outputs
//
//   - Service: Ready-to-run conversation service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the chosen LLM provider
//   - Network is available for external service connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Optional backends first: the service degrades rather than dies.
	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running without vector memory",
			"error", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.initStores()
	s.initConversationService()
	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting conversation server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = 60 * time.Second
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 10 * time.Second
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "thery-otel-collector:4317"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("thery-conversation-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initWeaviate initializes the Weaviate vector database client.
//
// Returns nil error if WeaviateURL is empty; vector features are then
// disabled rather than failing startup.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, vector memory disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	slog.Info("Weaviate client initialized", "url", weaviateURL)
	return nil
}

// initLLMClient initializes the LLM provider client.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to openai", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}

	return err
}

// initStores wires the session registry and picks the history backend.
//
// With Redis configured, sessions and turn history live there and survive
// restarts. Without it the service runs single-instance with in-process
// stores, which is enough for local development and tests.
func (s *service) initStores() {
	if s.config.RedisAddr == "" {
		slog.Info("Redis not configured, using in-process session and history stores")
		s.registry = session.NewMemoryRegistry(s.config.SessionTTL)
		return
	}

	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     s.config.RedisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	s.registry = session.NewRedisRegistry(s.redisClient, s.config.SessionTTL)
	slog.Info("Redis session registry initialized", "addr", s.config.RedisAddr)
}

// initConversationService wires the per-turn agents and both persistence
// sinks into the conversation service.
func (s *service) initConversationService() {
	var turnLog memory.TurnLog
	if s.redisClient != nil {
		turnLog = memory.NewRedisTurnLog(s.redisClient, s.config.SessionTTL)
	} else {
		turnLog = memory.NewMemoryTurnLog()
	}

	var webSearcher search.WebSearcher
	if s.config.TavilyAPIKey != "" {
		webSearcher = search.NewTavilySearcher(s.config.TavilyAPIKey, s.config.SearchTimeout)
	} else {
		slog.Info("Tavily API key not configured, web context disabled")
	}

	var (
		vectorSearcher search.VectorSearcher
		vectorMem      memory.VectorMemory
	)
	if s.weaviateClient != nil && s.config.EmbeddingURL != "" {
		embedder := search.NewHTTPEmbedder(s.config.EmbeddingURL)
		vectorSearcher = search.NewWeaviateSearcher(s.weaviateClient, embedder)
		weaviateMem := memory.NewWeaviateMemory(s.weaviateClient, embedder)
		if err := weaviateMem.EnsureSchema(context.Background()); err != nil {
			slog.Warn("Failed to ensure vector memory schema, vector memory disabled", "error", err)
		} else {
			vectorMem = weaviateMem
		}
	}

	s.conversation = services.NewConversationService(
		s.registry,
		turnLog,
		vectorMem,
		agents.NewEmotionAnalyzer(s.llmClient, s.config.LLMTimeout),
		agents.NewContextAggregator(webSearcher, vectorSearcher, s.config.SearchTimeout),
		agents.NewResponseGenerator(s.llmClient, s.config.LLMTimeout),
		s.config.HistoryLimit,
	)
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("thery-conversation-service"))

	routes.SetupRoutes(s.router, s.conversation, s.registry)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	// Drain background persistence before closing the stores it writes to.
	if s.conversation != nil {
		s.conversation.WaitForPersistence()
	}

	if s.registry != nil {
		if err := s.registry.Close(); err != nil {
			slog.Warn("Session registry close error", "error", err)
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			slog.Warn("Redis close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
