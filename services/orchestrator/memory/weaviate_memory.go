// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

var vectorMemoryTracer = otel.Tracer("thery.orchestrator.memory.vector")

// ConversationMemoryClass is the Weaviate class that holds embedded
// conversation turns for semantic retrieval.
const ConversationMemoryClass = "ConversationMemory"

// Embedder computes a vector for a piece of text. The HTTP embedding
// service client in the search package satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorMemory persists conversation turns into a vector store so that
// later queries can retrieve semantically similar past exchanges.
type VectorMemory interface {
	// EnsureSchema creates the backing class if it does not exist yet.
	EnsureSchema(ctx context.Context) error

	// SaveTurn embeds and stores a completed conversation turn.
	SaveTurn(ctx context.Context, turn *datatypes.Turn) error
}

// GetConversationMemorySchema returns the class definition for stored turns.
//
// Vectorizer is "none": embeddings are computed externally and attached
// with WithVector at write time, so the class never calls out to a module.
func GetConversationMemorySchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ConversationMemoryClass,
		Description: "An embedded record of one user/assistant exchange.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "session_id",
				DataType:        []string{"text"},
				Description:     "The unique ID for the conversation session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "user_message",
				DataType:     []string{"text"},
				Description:  "The user's message for this turn.",
				Tokenization: "word",
			},
			{
				Name:         "assistant_response",
				DataType:     []string{"text"},
				Description:  "The assistant's response for this turn.",
				Tokenization: "word",
			},
			{
				Name:            "primary_emotion",
				DataType:        []string{"text"},
				Description:     "The emotion detected for this turn.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "intensity",
				DataType:        []string{"int"},
				Description:     "Detected emotional intensity on a 1-10 scale.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "safety_level",
				DataType:        []string{"text"},
				Description:     "Safety classification assigned to this turn.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the turn completed.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// WeaviateMemory implements VectorMemory against a Weaviate instance.
//
// # Description
//
// Turns are embedded through an external embedding service and written
// with the vector attached. Writes happen on the persistence path after
// the response has already been returned, so failures here are logged by
// the caller rather than surfaced to the user.
type WeaviateMemory struct {
	client   *weaviate.Client
	embedder Embedder
}

// NewWeaviateMemory creates a vector memory sink.
func NewWeaviateMemory(client *weaviate.Client, embedder Embedder) *WeaviateMemory {
	return &WeaviateMemory{client: client, embedder: embedder}
}

// EnsureSchema implements VectorMemory.
func (m *WeaviateMemory) EnsureSchema(ctx context.Context) error {
	class := GetConversationMemorySchema()

	_, err := m.client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	// The client returns an error when the class is missing. Create it.
	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := m.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}

// SaveTurn implements VectorMemory.
func (m *WeaviateMemory) SaveTurn(ctx context.Context, turn *datatypes.Turn) error {
	ctx, span := vectorMemoryTracer.Start(ctx, "WeaviateMemory.SaveTurn")
	defer span.End()

	// Embed the full exchange so both sides of the turn contribute to
	// the vector.
	text := fmt.Sprintf("User: %s\nAssistant: %s", turn.Query, turn.Response)
	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed the turn: %w", err)
	}

	properties := map[string]interface{}{
		"session_id":         turn.SessionID,
		"user_message":       turn.Query,
		"assistant_response": turn.Response,
		"primary_emotion":    turn.EmotionAnalysis.PrimaryEmotion,
		"intensity":          turn.EmotionAnalysis.Intensity,
		"safety_level":       turn.SafetyLevel,
		"timestamp":          turn.Timestamp.UnixMilli(),
	}

	_, err = m.client.Data().Creator().
		WithClassName(ConversationMemoryClass).
		WithProperties(properties).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to save the turn to Weaviate: %w", err)
	}

	slog.Debug("Saved turn to vector memory",
		"sessionId", turn.SessionID,
		"chatId", turn.ChatID,
		"timestamp", turn.Timestamp.Format(time.RFC3339))
	return nil
}

// Compile-time interface compliance.
var _ VectorMemory = (*WeaviateMemory)(nil)
