// Copyright (C) 2025 Thery AI (hello@theryai.app)
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
	"strconv"
	"time"

	"github.com/theryai/thery-go/services/orchestrator"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer env var, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration env var, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := orchestrator.Config{
		Port:          envInt("THERY_PORT", 8080),
		LLMBackend:    envOr("LLM_BACKEND_TYPE", "openai"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		WeaviateURL:   os.Getenv("WEAVIATE_SERVICE_URL"),
		EmbeddingURL:  os.Getenv("EMBEDDING_SERVICE_URL"),
		TavilyAPIKey:  os.Getenv("TAVILY_API_KEY"),
		SessionTTL:    envDuration("SESSION_TTL", 24*time.Hour),
		HistoryLimit:  envInt("HISTORY_LIMIT", 10),
		LLMTimeout:    envDuration("LLM_TIMEOUT", 60*time.Second),
		SearchTimeout: envDuration("SEARCH_TIMEOUT", 10*time.Second),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GinMode:       os.Getenv("GIN_MODE"),
	}

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize the conversation service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
