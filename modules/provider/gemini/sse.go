package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/troupelabs/troupe/internal/provider"
)

// scannerBufferSize is the max token size for the SSE line scanner.
// Gemini data lines carry whole candidate parts and can exceed the
// default ~64 KiB bufio.Scanner limit.
const scannerBufferSize = 1 * 1024 * 1024 // 1 MB

// sendChunk sends a StreamChunk on ch, respecting context cancellation.
// Returns false if the context was cancelled (caller should return).
func sendChunk(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// readStream reads a streamGenerateContent SSE stream from body and sends
// parsed chunks on ch. Gemini has no terminal marker; the stream ends at
// EOF. On a clean end the accumulated response text is handed to commit;
// any error path skips the commit so the caller's transcript stays as it
// was before the attempt. The channel is closed when the stream ends and
// body is always closed.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- provider.StreamChunk, commit func(response string)) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// Close body on context cancellation to unblock the scanner.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)

	var response strings.Builder
	var seenUsage usageMetadata

	for scanner.Scan() {
		if ctx.Err() != nil {
			sendChunk(ctx, ch, provider.StreamChunk{Err: ctx.Err()})
			return
		}

		line := scanner.Text()

		// SSE spec: lines starting with ":" are comments.
		if strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var resp generateResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			sendChunk(ctx, ch, provider.StreamChunk{Err: err})
			return
		}

		chunk := provider.StreamChunk{}
		if len(resp.Candidates) > 0 {
			var text strings.Builder
			for _, p := range resp.Candidates[0].Content.Parts {
				text.WriteString(p.Text)
			}
			chunk.Text = text.String()
			response.WriteString(chunk.Text)
		}
		// usageMetadata repeats cumulative counts on every chunk; the
		// consumer sums chunk usage, so only the delta is emitted.
		if u := resp.UsageMetadata; u != nil {
			delta := provider.TokenUsage{
				Prompt:     u.PromptTokenCount - seenUsage.PromptTokenCount,
				Completion: u.CandidatesTokenCount - seenUsage.CandidatesTokenCount,
				Thoughts:   u.ThoughtsTokenCount - seenUsage.ThoughtsTokenCount,
			}
			seenUsage = *u
			if delta != (provider.TokenUsage{}) {
				chunk.Usage = &delta
			}
		}
		if chunk.Text == "" && chunk.Usage == nil {
			continue
		}
		if !sendChunk(ctx, ch, chunk) {
			return
		}
	}

	// If the scanner stopped because the context cancelled the body,
	// report the context error, not the read error.
	if ctx.Err() != nil {
		sendChunk(ctx, ch, provider.StreamChunk{Err: ctx.Err()})
		return
	}

	if err := scanner.Err(); err != nil {
		sendChunk(ctx, ch, provider.StreamChunk{Err: mapConnectionError(err)})
		return
	}

	commit(response.String())
}
