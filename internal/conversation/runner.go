// Package conversation runs scripted multi-party conversations: the cast
// speaks in fixed rotation, and every response is fed to the other
// characters as labeled context for their next turn. Turns are strictly
// sequential; a turn is fully resolved before the next begins.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/troupelabs/troupe/internal/character"
	"github.com/troupelabs/troupe/internal/history"
	"github.com/troupelabs/troupe/internal/session"
	"github.com/troupelabs/troupe/internal/speech"
)

// Script describes one conversation to run.
type Script struct {
	// Cast lists the speakers, in rotation order. Each name must match a
	// loaded character sheet.
	Cast []string

	// Opening is the prompt handed to the first speaker. Every later turn
	// runs on accumulated context alone.
	Opening string

	// Turns is the total number of turns across the cast.
	Turns int

	// Narrate speaks each response through the synthesizer.
	Narrate bool

	// FlushDestination is the history bucket written when the script ends.
	FlushDestination string
}

// Runner executes scripts against a session manager.
type Runner struct {
	manager  *session.Manager
	sheets   map[string]*character.Sheet
	synth    speech.Synthesizer // nil disables narration
	recorder history.Recorder
	logger   *slog.Logger
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithSynthesizer enables narration through the given synthesizer.
func WithSynthesizer(s speech.Synthesizer) RunnerOption {
	return func(r *Runner) { r.synth = s }
}

// WithRecorder sets the history recorder used for the final flush.
func WithRecorder(rec history.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner over the manager and character sheets.
func NewRunner(manager *session.Manager, sheets map[string]*character.Sheet, opts ...RunnerOption) *Runner {
	r := &Runner{
		manager:  manager,
		sheets:   sheets,
		recorder: history.NewMemoryRecorder(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run executes one script. Sessions are created for the whole cast before
// the first turn so a bad sheet fails fast. A turn that exhausts its
// retries aborts the run; everything already in session history is still
// flushed so no completed turn is lost.
func (r *Runner) Run(ctx context.Context, script Script) error {
	if err := r.createCast(script.Cast); err != nil {
		return err
	}

	runErr := r.runTurns(ctx, script)

	if script.FlushDestination != "" {
		if err := r.manager.FlushAll(ctx, r.recorder, script.FlushDestination); err != nil {
			r.logger.Error("conversation: final flush failed", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return runErr
}

// createCast opens one session per cast member.
func (r *Runner) createCast(cast []string) error {
	for _, name := range cast {
		sheet, ok := r.sheets[name]
		if !ok {
			return fmt.Errorf("conversation: no character sheet for %q", name)
		}
		if _, err := r.manager.Create(name, sheet.Model, sheet.SessionOptions()); err != nil {
			return fmt.Errorf("conversation: creating session for %q: %w", name, err)
		}
	}
	return nil
}

func (r *Runner) runTurns(ctx context.Context, script Script) error {
	for turn := 0; turn < script.Turns; turn++ {
		speaker := script.Cast[turn%len(script.Cast)]

		prompt := ""
		if turn == 0 {
			prompt = script.Opening
		}

		start := time.Now()
		response, err := r.manager.Send(ctx, speaker, prompt)
		if err != nil {
			return fmt.Errorf("conversation: turn %d (%s): %w", turn+1, speaker, err)
		}

		r.logger.Info("conversation: turn completed",
			"turn", turn+1,
			"speaker", speaker,
			"duration", time.Since(start).Truncate(time.Millisecond),
			"response_chars", len(response),
		)

		// Everyone else hears what was said.
		for _, listener := range script.Cast {
			if listener == speaker {
				continue
			}
			if err := r.manager.AddContext(listener, speaker, response); err != nil {
				return fmt.Errorf("conversation: feeding context to %q: %w", listener, err)
			}
		}

		if script.Narrate && r.synth != nil {
			if err := r.synth.Speak(ctx, r.sheets[speaker].Voice, response); err != nil {
				// Narration is best-effort; the conversation goes on.
				r.logger.Warn("conversation: narration failed", "speaker", speaker, "error", err)
			}
		}
	}
	return nil
}
