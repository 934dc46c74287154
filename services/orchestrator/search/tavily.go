// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var webTracer = otel.Tracer("thery.orchestrator.search.web")

const (
	tavilyEndpoint    = "https://api.tavily.com/search"
	defaultMaxResults = 3
)

// WebSearcher retrieves supporting context from the public web.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// tavilyRequest is the request body for the Tavily search API.
type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

// tavilyResponse is the subset of the Tavily reply we consume.
type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// TavilySearcher implements WebSearcher against the Tavily search API.
//
// # Description
//
// Each query is rewritten with a mental-health framing before being sent,
// so results skew toward coping guidance rather than news. The synthesized
// answer is preferred when Tavily provides one; otherwise the top result
// snippets are concatenated.
//
// # Limitations
//
//   - Requires outbound network access and a valid TAVILY_API_KEY.
//   - Results are not cached; every conversation turn issues a fresh search.
type TavilySearcher struct {
	apiKey     string
	endpoint   string
	maxResults int
	httpClient *http.Client
}

// NewTavilySearcher creates a web searcher using the given API key.
func NewTavilySearcher(apiKey string, timeout time.Duration) *TavilySearcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TavilySearcher{
		apiKey:     apiKey,
		endpoint:   tavilyEndpoint,
		maxResults: defaultMaxResults,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search implements WebSearcher.
func (s *TavilySearcher) Search(ctx context.Context, query string) (string, error) {
	ctx, span := webTracer.Start(ctx, "TavilySearcher.Search")
	defer span.End()

	body, err := json.Marshal(tavilyRequest{
		APIKey:        s.apiKey,
		Query:         fmt.Sprintf("mental health coping strategies for: %s", query),
		SearchDepth:   "basic",
		MaxResults:    s.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal the search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to setup a new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make the request to the search service: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			slog.Warn("Failed to close the search response body", "error", err)
		}
	}(resp.Body)

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("the response was not a 200 OK from the search service: %s, %d",
			string(bodyBytes), resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse the response from the search service: %w", err)
	}

	if parsed.Answer != "" {
		return parsed.Answer, nil
	}

	snippets := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Content == "" {
			continue
		}
		snippets = append(snippets, r.Content)
	}
	if len(snippets) == 0 {
		return "", fmt.Errorf("the search service returned no usable results")
	}
	return strings.Join(snippets, "\n"), nil
}

// Compile-time interface compliance.
var _ WebSearcher = (*TavilySearcher)(nil)
