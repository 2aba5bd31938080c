package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_TurnCompleted(t *testing.T) {
	t.Parallel()

	m := New()
	m.TurnCompleted("alice", "gemini-2.5-flash", 500*time.Millisecond, 100, 40)
	m.TurnCompleted("alice", "gemini-2.5-flash", time.Second, 250, 90)

	snap := m.Snapshot()
	if snap.Turns != 2 {
		t.Errorf("Turns = %d, want 2", snap.Turns)
	}
	// Arguments are lifetime counters, not per-turn deltas.
	if snap.InputTokens != 250 {
		t.Errorf("InputTokens = %d, want 250", snap.InputTokens)
	}
	if snap.OutputTokens != 90 {
		t.Errorf("OutputTokens = %d, want 90", snap.OutputTokens)
	}
	if snap.AvgTurnLatency != 750*time.Millisecond {
		t.Errorf("AvgTurnLatency = %v, want 750ms", snap.AvgTurnLatency)
	}
}

func TestMetrics_TokensSumAcrossSessions(t *testing.T) {
	t.Parallel()

	m := New()
	m.TurnCompleted("alice", "gemini-2.5-flash", time.Second, 100, 40)
	m.TurnCompleted("bob", "gemini-2.5-pro", time.Second, 30, 10)

	snap := m.Snapshot()
	if snap.InputTokens != 130 {
		t.Errorf("InputTokens = %d, want 130", snap.InputTokens)
	}
	if snap.OutputTokens != 50 {
		t.Errorf("OutputTokens = %d, want 50", snap.OutputTokens)
	}
}

func TestMetrics_RetriesAndFailures(t *testing.T) {
	t.Parallel()

	m := New()
	m.StreamRetried("alice", 1)
	m.StreamRetried("alice", 2)
	m.TurnFailed("alice")

	snap := m.Snapshot()
	if snap.Retries != 2 {
		t.Errorf("Retries = %d, want 2", snap.Retries)
	}
	if snap.Failures != 1 {
		t.Errorf("Failures = %d, want 1", snap.Failures)
	}
}

func TestMetrics_SnapshotEmpty(t *testing.T) {
	t.Parallel()

	snap := New().Snapshot()
	if snap.Turns != 0 || snap.Retries != 0 || snap.Failures != 0 ||
		snap.InputTokens != 0 || snap.OutputTokens != 0 || snap.AvgTurnLatency != 0 {
		t.Errorf("empty snapshot should be all zeros: %+v", snap)
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.TurnCompleted("alice", "gemini-2.5-flash", time.Millisecond, 10, 5)
		}()
		go func() {
			defer wg.Done()
			m.StreamRetried("alice", 1)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Turns != 100 {
		t.Errorf("Turns = %d, want 100", snap.Turns)
	}
	if snap.Retries != 100 {
		t.Errorf("Retries = %d, want 100", snap.Retries)
	}
}
