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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HTTPEmbedder Tests
// =============================================================================

func TestHTTPEmbedder_Embed_Success(t *testing.T) {
	var gotBody EmbeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{
			Text:   gotBody.Text,
			Vector: []float32{0.1, 0.2, 0.3},
			Dim:    3,
		})
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL)
	vector, err := embedder.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "hello world", gotBody.Text)
}

func TestHTTPEmbedder_Embed_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL)
	_, err := embedder.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a 200 OK")
}

func TestHTTPEmbedder_Embed_EmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{Vector: []float32{}})
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL)
	_, err := embedder.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty vector")
}

// =============================================================================
// TavilySearcher Tests
// =============================================================================

func newTavilyTestSearcher(handler http.HandlerFunc) (*TavilySearcher, *httptest.Server) {
	server := httptest.NewServer(handler)
	searcher := NewTavilySearcher("test-key", time.Second)
	searcher.endpoint = server.URL
	return searcher, server
}

func TestTavilySearcher_PrefersAnswer(t *testing.T) {
	var gotReq tavilyRequest
	searcher, server := newTavilyTestSearcher(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer": "Try grounding exercises and paced breathing.",
			"results": []map[string]any{
				{"content": "ignored when an answer is present"},
			},
		})
	})
	defer server.Close()

	result, err := searcher.Search(context.Background(), "I feel anxious")
	require.NoError(t, err)

	assert.Equal(t, "Try grounding exercises and paced breathing.", result)
	assert.Equal(t, "test-key", gotReq.APIKey)
	assert.Equal(t, "mental health coping strategies for: I feel anxious", gotReq.Query)
	assert.Equal(t, "basic", gotReq.SearchDepth)
	assert.True(t, gotReq.IncludeAnswer)
}

func TestTavilySearcher_FallsBackToSnippets(t *testing.T) {
	searcher, server := newTavilyTestSearcher(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"content": "snippet one"},
				{"content": ""},
				{"content": "snippet two"},
			},
		})
	})
	defer server.Close()

	result, err := searcher.Search(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, "snippet one\nsnippet two", result)
}

func TestTavilySearcher_NoUsableResults(t *testing.T) {
	searcher, server := newTavilyTestSearcher(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	})
	defer server.Close()

	_, err := searcher.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable results")
}

func TestTavilySearcher_Non200(t *testing.T) {
	searcher, server := newTavilyTestSearcher(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	defer server.Close()

	_, err := searcher.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a 200 OK")
}
