package session

import "time"

// Observer receives turn-level events for metrics. Implementations must
// not block.
type Observer interface {
	// TurnCompleted is called once per successful turn with the session's
	// lifetime token counters after the turn.
	TurnCompleted(session, model string, duration time.Duration, inputTokens, outputTokens int)

	// StreamRetried is called after each failed streaming attempt.
	StreamRetried(session string, attempt int)

	// TurnFailed is called when a turn exhausts its attempts.
	TurnFailed(session string)
}

type nopObserver struct{}

func (nopObserver) TurnCompleted(string, string, time.Duration, int, int) {}
func (nopObserver) StreamRetried(string, int)                             {}
func (nopObserver) TurnFailed(string)                                     {}
