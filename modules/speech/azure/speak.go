package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// maxAttempts is the synthesis attempt ceiling per utterance.
	maxAttempts = 3

	// backoffBase yields the 40s/80s schedule between attempts.
	backoffBase = 20 * time.Second

	// maxAudioSize caps a single synthesized utterance (20 MB).
	maxAudioSize = 20 * 1024 * 1024
)

// Speak implements speech.Synthesizer. The utterance is synthesized via
// SSML POST and written to the output directory; transient failures are
// retried with exponential backoff.
func (s *Synthesizer) Speak(ctx context.Context, voice, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if voice == "" {
		voice = s.config.DefaultVoice
	}

	body, err := s.buildSSML(voice, text)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		audio, err := s.synthesizeOnce(ctx, body)
		if err == nil {
			return s.writeAudio(voice, audio)
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}
		delay := backoffBase * (1 << attempt)
		s.logger.Warn("speech.azure: synthesis failed, backing off",
			"voice", voice,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
		s.sleep(delay)
	}

	return fmt.Errorf("speech.azure: %d attempts: last error: %w", maxAttempts, lastErr)
}

// buildSSML renders the SSML document for one utterance.
func (s *Synthesizer) buildSSML(voice, text string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, fmt.Errorf("speech.azure: escaping text: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<speak version='1.0' xml:lang='en-US'>`)
	fmt.Fprintf(&b, `<voice name='%s'><prosody rate='%s'>%s</prosody></voice>`,
		voice, s.config.Rate, escaped.String())
	b.WriteString(`</speak>`)
	return b.Bytes(), nil
}

// synthesizeOnce performs a single synthesis request.
func (s *Synthesizer) synthesizeOnce(ctx context.Context, ssml []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.endpointURL(), bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("speech.azure: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.config.SubscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", s.config.OutputFormat)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech.azure: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech.azure: HTTP %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("speech.azure: read audio: %w", err)
	}
	return audio, nil
}

// writeAudio stores one utterance under the output directory.
func (s *Synthesizer) writeAudio(voice string, audio []byte) error {
	if err := os.MkdirAll(s.outputDir, 0o750); err != nil {
		return fmt.Errorf("speech.azure: creating output dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.mp3", s.now().UTC().Format("20060102T150405.000"), voice)
	path := filepath.Join(s.outputDir, name)
	if err := os.WriteFile(path, audio, 0o640); err != nil {
		return fmt.Errorf("speech.azure: writing audio: %w", err)
	}
	s.logger.Debug("speech.azure: utterance written", "path", path, "bytes", len(audio))
	return nil
}
