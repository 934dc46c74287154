// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services provides business logic services for the orchestrator.
//
// This package contains service structs that encapsulate business logic,
// separating it from HTTP handlers. Services are responsible for:
//   - Orchestrating calls to external services (LLM, search, vector store)
//   - Applying business rules and validation
//   - Managing persistence and error handling
//
// Services are designed to be:
//   - Testable: Dependencies are injected via constructors
//   - Composable: Services can call other services
//   - Traceable: All methods accept context for distributed tracing
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/theryai/thery-go/services/orchestrator/agents"
	"github.com/theryai/thery-go/services/orchestrator/datatypes"
	"github.com/theryai/thery-go/services/orchestrator/memory"
	"github.com/theryai/thery-go/services/orchestrator/observability"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

// conversationTracer is the OpenTelemetry tracer for ConversationService.
var conversationTracer = otel.Tracer("thery.orchestrator.services.conversation")

// persistTimeout bounds the background persistence of a completed turn.
// The user already has their reply by the time this runs.
const persistTimeout = 15 * time.Second

// ConversationService runs one conversation turn end to end.
//
// # Description
//
// Each call to Process is an independent transaction: resolve the session,
// gather emotion analysis, retrieved context, and recent history
// concurrently, generate the assistant's reply, then persist the turn in
// the background. There is no in-process state shared between turns beyond
// what the session registry and turn log hold externally.
//
// There is deliberately no per-session lock: two simultaneous messages on
// one session may interleave their history reads and writes, and append
// order in the turn log is the only ordering guarantee.
//
// # Thread Safety
//
// ConversationService is safe for concurrent use.
type ConversationService struct {
	registry  session.Registry
	turnLog   memory.TurnLog
	vectorMem memory.VectorMemory
	analyzer  *agents.EmotionAnalyzer
	gatherer  *agents.ContextAggregator
	responder *agents.ResponseGenerator

	historyLimit int

	// persistWG tracks in-flight background persistence so shutdown (and
	// tests) can drain it.
	persistWG sync.WaitGroup
}

// NewConversationService creates a conversation service.
//
// # Inputs
//
//   - registry: Session registry for validation and minting. Must not be nil.
//   - turnLog: Turn history store. Must not be nil.
//   - vectorMem: Vector memory sink. May be nil; the sink is then skipped.
//   - analyzer, gatherer, responder: The per-turn agents. Must not be nil.
//   - historyLimit: How many recent turns feed the response prompt.
func NewConversationService(
	registry session.Registry,
	turnLog memory.TurnLog,
	vectorMem memory.VectorMemory,
	analyzer *agents.EmotionAnalyzer,
	gatherer *agents.ContextAggregator,
	responder *agents.ResponseGenerator,
	historyLimit int,
) *ConversationService {
	if historyLimit <= 0 {
		historyLimit = datatypes.DefaultHistoryLimit
	}
	return &ConversationService{
		registry:     registry,
		turnLog:      turnLog,
		vectorMem:    vectorMem,
		analyzer:     analyzer,
		gatherer:     gatherer,
		responder:    responder,
		historyLimit: historyLimit,
	}
}

// ResolveSession validates or mints the session for an incoming message.
//
// # Description
//
// A valid prior session is reused as-is. An invalid or expired session
// mints a replacement bound to the same user when the caller supplied one,
// so continuity of identity survives session expiry. No prior data at all
// mints a fresh user and session.
//
// # Outputs
//
//   - datatypes.SessionData: The resolved session with novelty flags set.
//   - error: Non-nil only on registry backend failure.
func (s *ConversationService) ResolveSession(ctx context.Context, sessionID, userID string) (datatypes.SessionData, error) {
	ctx, span := conversationTracer.Start(ctx, "ConversationService.ResolveSession")
	defer span.End()

	if sessionID != "" {
		owner, err := s.registry.ValidateSession(ctx, sessionID)
		if err == nil {
			return datatypes.SessionData{
				UserID:    owner,
				SessionID: sessionID,
			}, nil
		}
		if !session.IsSessionInvalid(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session validation failed")
			return datatypes.SessionData{}, fmt.Errorf("session validation failed: %w", err)
		}
		slog.Info("Session invalid or expired, minting a replacement", "sessionId", sessionID)
	}

	// CreateSession keeps the supplied user when it still exists and
	// mints a fresh identity otherwise, so expired sessions keep their
	// owner across the replacement.
	data, err := s.registry.CreateSession(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session creation failed")
		return datatypes.SessionData{}, fmt.Errorf("session creation failed: %w", err)
	}
	observability.SessionsCreated.WithLabelValues(strconv.FormatBool(data.IsNewUser)).Inc()
	return data, nil
}

// Process handles one conversation turn end-to-end.
//
// The processing flow is:
//  1. Resolve or mint the session
//  2. Gather emotion analysis, retrieved context, and recent history
//     concurrently
//  3. Generate the assistant's reply
//  4. Assess safety and attach suggested resources
//  5. Persist the turn asynchronously to both sinks
//
// # Inputs
//
//   - ctx: Context for cancellation, timeouts, and tracing.
//   - sessionID: Caller-supplied session ID, or "" for a new session.
//   - userID: Caller-supplied user ID, or "" when unknown.
//   - message: The user's message. Must already be validated.
//
// # Outputs
//
//   - *datatypes.ConversationResponse: The reply with session flags,
//     emotion analysis, context, and safety assessment.
//   - error: Non-nil on hard failure (session backend, history read,
//     emotion analysis, or response generation). The turn is not
//     persisted on error.
func (s *ConversationService) Process(ctx context.Context, sessionID, userID, message string) (*datatypes.ConversationResponse, error) {
	ctx, span := conversationTracer.Start(ctx, "ConversationService.Process")
	defer span.End()

	start := time.Now()

	// Step 1: Resolve the session.
	sessionData, err := s.ResolveSession(ctx, sessionID, userID)
	if err != nil {
		observability.ConversationTurns.WithLabelValues("session_error").Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("session.id", sessionData.SessionID),
		attribute.Bool("session.new_user", sessionData.IsNewUser),
		attribute.Bool("session.new_session", sessionData.IsNewSession),
	)

	// Step 2: Gather the three inputs concurrently. Emotion analysis and
	// history are hard requirements; context degrades internally and
	// never fails the group.
	var (
		analysis    datatypes.EmotionalAnalysis
		contextInfo datatypes.ContextInfo
		history     string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var aerr error
		analysis, aerr = s.analyzer.Analyze(gctx, message)
		return aerr
	})
	g.Go(func() error {
		var cerr error
		contextInfo, cerr = s.gatherer.Gather(gctx, sessionData.SessionID, message)
		return cerr
	})
	g.Go(func() error {
		var herr error
		history, herr = s.turnLog.RenderTranscript(gctx, sessionData.SessionID, s.historyLimit)
		return herr
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gather stage failed")
		observability.ConversationTurns.WithLabelValues("gather_error").Inc()
		return nil, fmt.Errorf("processing failed: %w", err)
	}
	span.SetAttributes(
		attribute.String("emotion.primary", analysis.PrimaryEmotion),
		attribute.Int("emotion.intensity", analysis.Intensity),
	)

	// Step 3: Generate the reply. Generation must not start before both
	// analysis and context are in, which g.Wait guarantees.
	reply, err := s.responder.Generate(ctx, agents.PromptInputs{
		Query:           message,
		EmotionAnalysis: analysis,
		Context:         contextInfo,
		ChatHistory:     history,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		observability.ConversationTurns.WithLabelValues("generation_error").Inc()
		return nil, fmt.Errorf("processing failed: %w", err)
	}

	// Step 4: Safety assessment.
	safetyLevel, resources := datatypes.AssessSafety(message, analysis)
	observability.SafetyAssessments.WithLabelValues(safetyLevel).Inc()

	// Step 5: Persist asynchronously. The reply is already computed, so
	// sink failures are logged, counted, and never surfaced.
	turn := datatypes.NewTurn(sessionData.SessionID, message)
	turn.EmotionAnalysis = analysis
	turn.Context = contextInfo
	turn.Response = reply
	turn.SafetyLevel = safetyLevel
	turn.SuggestedResources = resources
	s.persistAsync(turn)

	observability.ConversationTurns.WithLabelValues("ok").Inc()
	observability.ConversationDuration.Observe(time.Since(start).Seconds())

	return &datatypes.ConversationResponse{
		SessionData:        sessionData,
		Response:           reply,
		EmotionAnalysis:    analysis,
		Context:            contextInfo,
		Query:              message,
		SafetyLevel:        safetyLevel,
		SuggestedResources: resources,
	}, nil
}

// History returns the recent turns for a session.
func (s *ConversationService) History(ctx context.Context, sessionID string, limit int) ([]datatypes.Turn, error) {
	ctx, span := conversationTracer.Start(ctx, "ConversationService.History")
	defer span.End()

	if _, err := s.registry.ValidateSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.turnLog.RecentTurns(ctx, sessionID, limit)
}

// EndSession deletes a session and its history.
func (s *ConversationService) EndSession(ctx context.Context, sessionID string) error {
	ctx, span := conversationTracer.Start(ctx, "ConversationService.EndSession")
	defer span.End()

	if err := s.registry.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.turnLog.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("session deleted but history clear failed: %w", err)
	}
	return nil
}

// persistAsync writes the turn to both sinks in the background.
//
// The two sinks are independent: both are always attempted, and a failure
// in one does not prevent the other.
func (s *ConversationService) persistAsync(turn *datatypes.Turn) {
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()
		// The request context is gone by now; persistence gets its own.
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := s.turnLog.AppendTurn(ctx, turn.SessionID, turn); err != nil {
			slog.Error("Failed to persist turn to history", "sessionId", turn.SessionID, "error", err)
			observability.PersistenceErrors.WithLabelValues("history").Inc()
		}
		if s.vectorMem != nil {
			if err := s.vectorMem.SaveTurn(ctx, turn); err != nil {
				slog.Error("Failed to persist turn to vector memory", "sessionId", turn.SessionID, "error", err)
				observability.PersistenceErrors.WithLabelValues("vector").Inc()
			}
		}
	}()
}

// WaitForPersistence blocks until all in-flight background persistence has
// finished. Used during shutdown and by tests.
func (s *ConversationService) WaitForPersistence() {
	s.persistWG.Wait()
}
