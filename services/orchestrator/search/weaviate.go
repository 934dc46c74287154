// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"

	"github.com/theryai/thery-go/services/orchestrator/memory"
)

var vectorTracer = otel.Tracer("thery.orchestrator.search.vector")

const defaultTopK = 3

// VectorSearcher retrieves semantically similar past exchanges.
type VectorSearcher interface {
	Search(ctx context.Context, sessionID string, query string) (string, error)
}

// Embedder computes a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// conversationMemoryResponse mirrors the shape of a ConversationMemory query.
type conversationMemoryResponse struct {
	Get struct {
		ConversationMemory []conversationMemoryResult `json:"ConversationMemory"`
	} `json:"Get"`
}

type conversationMemoryResult struct {
	SessionID         string `json:"session_id"`
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
	PrimaryEmotion    string `json:"primary_emotion"`
	Additional        struct {
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

// WeaviateSearcher implements VectorSearcher over the ConversationMemory class.
//
// # Description
//
// The query is embedded through the external embedding service, then a
// NearVector search runs scoped to the caller's session. Matches are
// rendered as past-exchange snippets ready for prompt inclusion.
//
// # Thread Safety
//
// WeaviateSearcher is safe for concurrent use. The underlying Weaviate
// client handles connection pooling.
type WeaviateSearcher struct {
	client   *weaviate.Client
	embedder Embedder
	topK     int
}

// NewWeaviateSearcher creates a vector searcher.
func NewWeaviateSearcher(client *weaviate.Client, embedder Embedder) *WeaviateSearcher {
	return &WeaviateSearcher{client: client, embedder: embedder, topK: defaultTopK}
}

// Search implements VectorSearcher.
func (s *WeaviateSearcher) Search(ctx context.Context, sessionID string, query string) (string, error) {
	ctx, span := vectorTracer.Start(ctx, "WeaviateSearcher.Search")
	defer span.End()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed the query: %w", err)
	}

	sessionFilter := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueString(sessionID)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Certainty is requested instead of distance: it is always in [0,1]
	// regardless of the distance metric.
	fields := []graphql.Field{
		{Name: "session_id"},
		{Name: "user_message"},
		{Name: "assistant_response"},
		{Name: "primary_emotion"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(memory.ConversationMemoryClass).
		WithFields(fields...).
		WithWhere(sessionFilter).
		WithNearVector(nearVector).
		WithLimit(s.topK).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := parseGraphQLResponse[conversationMemoryResponse](result)
	if err != nil {
		return "", fmt.Errorf("failed to parse results: %w", err)
	}

	matches := parsed.Get.ConversationMemory
	if len(matches) == 0 {
		return "", fmt.Errorf("no similar past exchanges found")
	}

	snippets := make([]string, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets,
			fmt.Sprintf("Past exchange:\nUser: %s\nAssistant: %s", m.UserMessage, m.AssistantResponse))
	}
	slog.Debug("Found similar past exchanges", "sessionId", sessionID, "count", len(matches))
	return strings.Join(snippets, "\n\n"), nil
}

// parseGraphQLResponse converts Weaviate's dynamic response into a typed
// struct by round-tripping through JSON.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}

// Compile-time interface compliance.
var _ VectorSearcher = (*WeaviateSearcher)(nil)
