package store

import (
	"context"
	"encoding/json"
	"sync"
)

// TaskStore holds the terminal record for each finished task, keyed by
// task ID. Put is an idempotent upsert (last write wins); Get reports
// absence via found=false rather than an error so the polling layer can
// treat a missing record as "still processing".
type TaskStore interface {
	Put(ctx context.Context, taskID string, payload json.RawMessage) error
	Get(ctx context.Context, taskID string) (payload json.RawMessage, found bool, err error)
}

// Memory is a map-backed TaskStore for tests and for running without a
// database.
type Memory struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]json.RawMessage)}
}

func (m *Memory) Put(ctx context.Context, taskID string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[taskID] = append(json.RawMessage(nil), payload...)
	return nil
}

func (m *Memory) Get(ctx context.Context, taskID string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.records[taskID]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), payload...), true, nil
}
