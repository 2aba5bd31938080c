package history

import (
	"context"
	"slices"
	"sync"
)

// MemoryRecorder is an in-memory Recorder, used as the default destination
// when no persistence module is configured and as a test double.
type MemoryRecorder struct {
	mu      sync.Mutex
	records map[string][]TurnRecord
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{records: make(map[string][]TurnRecord)}
}

// Compile-time interface check.
var _ Recorder = (*MemoryRecorder)(nil)

// Persist appends the records under the destination key.
func (r *MemoryRecorder) Persist(_ context.Context, records []TurnRecord, destination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[destination] = append(r.records[destination], records...)
	return nil
}

// Records returns a copy of everything persisted under the destination key.
func (r *MemoryRecorder) Records(destination string) []TurnRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records[destination])
}
