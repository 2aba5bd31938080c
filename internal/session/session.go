// Package session owns the conversational session core: ephemeral context
// that is merged into the next turn and then cleared, a local mirror of
// turn history for persistence, lifetime token counters, and the
// retry/streaming engine that resolves one turn at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/troupelabs/troupe/internal/history"
	"github.com/troupelabs/troupe/internal/provider"
)

// Sentinel errors for session registry operations.
var (
	// ErrSessionExists is returned when creating a session whose name is taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when a named session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// contextEntry is one labeled piece of pending context.
type contextEntry struct {
	label string
	text  string
}

// Session is one long-lived conversational channel to a remote model.
// It accumulates labeled context between turns, mirrors completed turns
// into an in-memory history for periodic persistence, and tracks lifetime
// token counters from provider-reported usage.
//
// A Session is single-threaded: one turn is fully resolved (or exhausts
// its retries) before the next call may begin.
type Session struct {
	name  string
	model string
	chat  provider.Chat

	pending []contextEntry
	records []history.TurnRecord

	inputTokens  int
	outputTokens int

	logger   *slog.Logger
	observer Observer
	sleep    func(time.Duration)
	now      func() time.Time
	backoff  time.Duration
}

// Option configures optional Session behavior.
type Option func(*Session)

// WithLogger injects a structured logger. When omitted, log output is
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithObserver injects a turn observer for metrics.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithSleeper replaces the backoff sleep function. Tests use this to run
// the full retry path without wall-clock delay.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(s *Session) { s.sleep = sleep }
}

// WithClock replaces the timestamp source for history records.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithBackoffBase replaces the backoff base duration (default 20s, giving
// the 40s/80s/160s schedule).
func WithBackoffBase(d time.Duration) Option {
	return func(s *Session) { s.backoff = d }
}

// New creates a Session named name on the given model. The options map, if
// non-nil, is run through provider.BuildConfig before the underlying
// channel is opened; the validated configuration is bound to the channel
// for the lifetime of the session. Construction fails with
// provider.ErrInvalidModel if the model is not on the client's allow-list.
func New(name, model string, client provider.Client, options map[string]any, opts ...Option) (*Session, error) {
	if !client.Supports(model) {
		return nil, fmt.Errorf("%w: %q", provider.ErrInvalidModel, model)
	}

	var cfg *provider.GenerationConfig
	if options != nil {
		built, err := provider.BuildConfig(options)
		if err != nil {
			return nil, err
		}
		cfg = built
	}

	chat, err := client.NewChat(model, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening chat for %q: %w", name, err)
	}

	s := &Session{
		name:     name,
		model:    model,
		chat:     chat,
		observer: nopObserver{},
		sleep:    time.Sleep,
		now:      time.Now,
		backoff:  defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(discardHandler{})
	}
	return s, nil
}

// Name returns the session's human-readable name.
func (s *Session) Name() string { return s.name }

// Model returns the model identifier the session was created with.
func (s *Session) Model() string { return s.model }

// AddContext appends a labeled piece of context that will be folded into
// the next sent turn. Growth is unbounded; limiting it is the caller's
// responsibility.
func (s *Session) AddContext(label, text string) {
	s.pending = append(s.pending, contextEntry{label: label, text: text})
}

// ResetContext clears the pending context. It is called automatically
// after every successfully completed turn, and only then.
func (s *Session) ResetContext() {
	s.pending = nil
}

// ContextLen returns the number of pending context entries.
func (s *Session) ContextLen() int {
	return len(s.pending)
}

// Usage returns the lifetime input and output token counters.
func (s *Session) Usage() (inputTokens, outputTokens int) {
	return s.inputTokens, s.outputTokens
}

// History returns a copy of the unflushed turn records.
func (s *Session) History() []history.TurnRecord {
	out := make([]history.TurnRecord, len(s.records))
	copy(out, s.records)
	return out
}

// FlushHistory hands the full in-memory history to the recorder, then
// clears it. On persistence failure the history is retained unchanged:
// flush-then-clear, never clear-then-flush.
func (s *Session) FlushHistory(ctx context.Context, rec history.Recorder, destination string) error {
	if len(s.records) == 0 {
		return nil
	}
	if err := rec.Persist(ctx, s.records, destination); err != nil {
		return fmt.Errorf("flushing history for %q: %w", s.name, err)
	}
	s.records = nil
	return nil
}

// assemblePrompt merges pending context with the user prompt. With no
// pending context the prompt passes through verbatim, including the empty
// string. Entries are never partially consumed.
func (s *Session) assemblePrompt(prompt string) string {
	if len(s.pending) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, entry := range s.pending {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[" + entry.label + "] " + entry.text)
	}
	b.WriteString("\n\nUser Query:\n")
	b.WriteString(prompt)
	return strings.TrimSpace(b.String())
}

// recordHistory appends a turn record with a fresh timestamp.
func (s *Session) recordHistory(prompt, response string) {
	s.records = append(s.records, history.TurnRecord{
		Timestamp: s.now().Format(time.RFC3339Nano),
		Model:     s.model,
		Name:      s.name,
		Prompt:    prompt,
		Response:  response,
	})
}

// discardHandler is a slog.Handler that drops all records. Enabled returns
// false so slog skips formatting entirely.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
