// Package history defines the turn-record shape and the persistence
// boundary that external stores implement.
package history

import "context"

// TurnRecord is an immutable snapshot of one completed conversational turn.
// Prompt is the fully merged (context + user text) string actually sent;
// it never includes content added to the session's context after the turn.
type TurnRecord struct {
	// Timestamp is an ISO-8601 string and also serves as the unique key
	// a persistence collaborator deduplicates on.
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
}

// Recorder persists ordered turn records under a destination key.
// Implementations must be idempotent enough that repeated flushes with
// disjoint record sets never clobber previously persisted rows.
type Recorder interface {
	Persist(ctx context.Context, records []TurnRecord, destination string) error
}
