// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
	"github.com/theryai/thery-go/services/orchestrator/observability"
	"github.com/theryai/thery-go/services/orchestrator/search"
)

var contextTracer = otel.Tracer("thery.orchestrator.agents.context")

// Sentinel strings substituted when a retrieval source degrades. The
// combined context is always built from both slots, so downstream prompt
// construction never has to branch on partial failure.
const (
	WebUnavailable    = "Web search unavailable"
	VectorUnavailable = "Vector search unavailable"
)

// ContextAggregator gathers supporting context for a user query from a
// web search and a vector similarity search.
//
// # Description
//
// The two retrieval calls are independent and run concurrently. Either
// source failing (or timing out) degrades to its sentinel string instead
// of aborting the turn; a turn with no retrieved context is still a
// usable turn.
//
// # Thread Safety
//
// ContextAggregator is safe for concurrent use.
type ContextAggregator struct {
	web     search.WebSearcher
	vector  search.VectorSearcher
	timeout time.Duration
}

// NewContextAggregator creates an aggregator. Either searcher may be nil,
// in which case that source always degrades to its sentinel.
func NewContextAggregator(web search.WebSearcher, vector search.VectorSearcher, timeout time.Duration) *ContextAggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ContextAggregator{web: web, vector: vector, timeout: timeout}
}

// Gather retrieves web and vector context for the query.
//
// The returned ContextInfo always has both context slots populated, with
// sentinels standing in for degraded sources. The error return is always
// nil today; it is kept so callers in an errgroup treat this like the
// other gather stages.
func (a *ContextAggregator) Gather(ctx context.Context, sessionID string, query string) (datatypes.ContextInfo, error) {
	ctx, span := contextTracer.Start(ctx, "ContextAggregator.Gather")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	webContext := WebUnavailable
	vectorContext := VectorUnavailable

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.web == nil {
			return nil
		}
		result, err := a.web.Search(gctx, query)
		if err != nil {
			slog.Warn("Web search degraded", "error", err)
			observability.ContextSourceFailures.WithLabelValues("web").Inc()
			return nil
		}
		webContext = result
		return nil
	})
	g.Go(func() error {
		if a.vector == nil {
			return nil
		}
		result, err := a.vector.Search(gctx, sessionID, query)
		if err != nil {
			slog.Warn("Vector search degraded", "sessionId", sessionID, "error", err)
			observability.ContextSourceFailures.WithLabelValues("vector").Inc()
			return nil
		}
		vectorContext = result
		return nil
	})
	// Both goroutines swallow their errors, so Wait only synchronizes.
	_ = g.Wait()

	return datatypes.NewContextInfo(query, webContext, vectorContext), nil
}
