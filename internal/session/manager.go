package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/troupelabs/troupe/internal/history"
	"github.com/troupelabs/troupe/internal/pricing"
	"github.com/troupelabs/troupe/internal/provider"
)

// Manager is a registry of named sessions sharing one provider client.
// The client is created once by the caller and closed by the caller after
// all sessions are done; the Manager never closes it.
type Manager struct {
	client      provider.Client
	prices      pricing.Table
	sessions    map[string]*Session
	logger      *slog.Logger
	sessionOpts []Option
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithManagerLogger injects a structured logger for the manager and, via
// WithLogger, into every session it creates.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithSessionOptions sets options applied to every created session.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.sessionOpts = opts }
}

// NewManager creates a Manager on the shared client with the given price
// table.
func NewManager(client provider.Client, prices pricing.Table, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:   client,
		prices:   prices,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(discardHandler{})
	}
	return m
}

// Create builds a session and registers it under its name. Session names
// are lowercase by convention; a non-lowercase name is accepted with a
// warning.
func (m *Manager) Create(name, model string, options map[string]any) (*Session, error) {
	if _, exists := m.sessions[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrSessionExists, name)
	}
	if name != strings.ToLower(name) {
		m.logger.Warn("session names are lowercase by convention", "session", name)
	}

	opts := append([]Option{WithLogger(m.logger)}, m.sessionOpts...)
	s, err := New(name, model, m.client, options, opts...)
	if err != nil {
		return nil, err
	}

	m.sessions[name] = s
	m.logger.Info("session created", "session", name, "model", model)
	return s, nil
}

// Get returns the named session.
func (m *Manager) Get(name string) (*Session, error) {
	s, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return s, nil
}

// Delete discards the named session. Unflushed history is lost; the
// provider channel is abandoned, not closed (the shared client owns the
// connection).
func (m *Manager) Delete(name string) error {
	if _, ok := m.sessions[name]; !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	delete(m.sessions, name)
	return nil
}

// AddContext appends labeled context to the named session.
func (m *Manager) AddContext(name, label, text string) error {
	s, err := m.Get(name)
	if err != nil {
		return err
	}
	s.AddContext(label, text)
	return nil
}

// Send resolves one turn on the named session.
func (m *Manager) Send(ctx context.Context, name, prompt string) (string, error) {
	s, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return s.Send(ctx, prompt)
}

// Sessions returns all live sessions sorted by name.
func (m *Manager) Sessions() []*Session {
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Session, len(names))
	for i, name := range names {
		out[i] = m.sessions[name]
	}
	return out
}

// FlushAll flushes every session's history to the recorder under the given
// destination key. Sessions whose flush fails keep their history; the
// remaining sessions are still flushed.
func (m *Manager) FlushAll(ctx context.Context, rec history.Recorder, destination string) error {
	var errs []error
	for _, s := range m.Sessions() {
		if err := s.FlushHistory(ctx, rec, destination); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionCost estimates the accumulated cost of the named session from its
// lifetime counters.
func (m *Manager) SessionCost(name string) (float64, error) {
	s, err := m.Get(name)
	if err != nil {
		return 0, err
	}
	in, out := s.Usage()
	return m.prices.Estimate(s.Model(), in, out)
}

// TotalCost is the sum of SessionCost over all live sessions.
func (m *Manager) TotalCost() (float64, error) {
	var total float64
	for _, s := range m.Sessions() {
		in, out := s.Usage()
		cost, err := m.prices.Estimate(s.Model(), in, out)
		if err != nil {
			return 0, err
		}
		total += cost
	}
	return total, nil
}
