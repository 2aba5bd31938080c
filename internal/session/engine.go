package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/troupelabs/troupe/internal/provider"
	"github.com/troupelabs/troupe/internal/tracer"
)

const (
	// maxAttempts is the streaming attempt ceiling per turn. There is no
	// wall-clock deadline; this is the only timeout behavior.
	maxAttempts = 3

	// defaultBackoffBase yields the 40s/80s/160s schedule (base × 2^attempt).
	// Deliberately long: the upstream connection is known to drop
	// transiently.
	defaultBackoffBase = 20 * time.Second
)

// Send resolves one turn: it merges pending context into the prompt, opens
// a streaming call, accumulates chunks in delivery order while folding
// usage into the lifetime counters, and retries transient failures with
// exponential backoff. The prompt may be empty, meaning "rely entirely on
// accumulated context".
//
// On success the turn is recorded to history, the pending context is
// cleared, and the full response is returned. After maxAttempts failed
// attempts Send returns provider.ErrUnreachable; no history record is
// written and the pending context is preserved so no caller input is lost.
func (s *Session) Send(ctx context.Context, prompt string) (string, error) {
	assembled := s.assemblePrompt(prompt)

	ctx, span := tracer.StartSpan(ctx, "session.send",
		trace.WithAttributes(
			tracer.StringAttr("session.name", s.name),
			tracer.StringAttr("session.model", s.model),
		),
	)
	defer span.End()

	start := s.now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := s.streamOnce(ctx, assembled)
		if err == nil {
			s.recordHistory(assembled, response)
			s.ResetContext()

			in, out := s.inputTokens, s.outputTokens
			span.SetAttributes(
				tracer.IntAttr("session.input_tokens", in),
				tracer.IntAttr("session.output_tokens", out),
			)
			tracer.SetOK(span)
			s.observer.TurnCompleted(s.name, s.model, s.now().Sub(start), in, out)
			s.logger.Info("turn completed",
				"session", s.name,
				"attempt", attempt,
				"response_chars", len(response),
			)
			return response, nil
		}

		lastErr = err
		delay := s.backoff * (1 << attempt)
		s.observer.StreamRetried(s.name, attempt)
		s.logger.Warn("stream attempt failed, backing off",
			"session", s.name,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
		s.sleep(delay)
	}

	s.observer.TurnFailed(s.name)
	err := fmt.Errorf("%w: %d attempts: last error: %w", provider.ErrUnreachable, maxAttempts, lastErr)
	tracer.RecordError(span, err)
	return "", err
}

// streamOnce performs a single streaming attempt with a fresh response
// buffer. Usage increments survive a failed attempt; partial response text
// does not.
func (s *Session) streamOnce(ctx context.Context, prompt string) (string, error) {
	ch, err := s.chat.SendStream(ctx, prompt)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		buf.WriteString(chunk.Text)
		if chunk.Usage != nil {
			s.inputTokens += chunk.Usage.Prompt
			s.outputTokens += chunk.Usage.Output()
		}
	}
	return buf.String(), nil
}
