// Package speech defines the narration boundary. The conversation runner
// speaks responses through a Synthesizer when narration is enabled; which
// backend does the synthesis is a module concern.
package speech

import "context"

// Synthesizer turns text into audio. Implementations decide what happens
// to the audio (play it, write it to disk).
type Synthesizer interface {
	// Speak synthesizes text with the given voice. An empty voice selects
	// the implementation's default.
	Speak(ctx context.Context, voice, text string) error
}
