package memory

import (
	"context"
	"sync"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

// MemoryTurnLog is an in-process TurnLog used when the service runs without
// Redis and as the fake in service-level tests.
type MemoryTurnLog struct {
	mu    sync.Mutex
	turns map[string][]datatypes.Turn
}

func NewMemoryTurnLog() *MemoryTurnLog {
	return &MemoryTurnLog{turns: make(map[string][]datatypes.Turn)}
}

func (l *MemoryTurnLog) AppendTurn(_ context.Context, sessionID string, turn *datatypes.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns[sessionID] = append(l.turns[sessionID], *turn)
	return nil
}

func (l *MemoryTurnLog) RecentTurns(_ context.Context, sessionID string, limit int) ([]datatypes.Turn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = datatypes.DefaultHistoryLimit
	}
	all := l.turns[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]datatypes.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (l *MemoryTurnLog) RenderTranscript(ctx context.Context, sessionID string, limit int) (string, error) {
	turns, err := l.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		return "", err
	}
	return FormatTranscript(turns), nil
}

func (l *MemoryTurnLog) Clear(_ context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.turns, sessionID)
	return nil
}

var _ TurnLog = (*MemoryTurnLog)(nil)
