package provider

// TokenUsage is the usage metadata reported by the provider for one chunk.
type TokenUsage struct {
	// Prompt is the number of input tokens billed for the request.
	Prompt int

	// Completion is the number of generated tokens.
	Completion int

	// Thoughts is the number of internal reasoning tokens, when the model
	// reports them separately. Billed as output.
	Thoughts int
}

// Output returns the total output-side token count for the chunk.
func (u TokenUsage) Output() int {
	return u.Completion + u.Thoughts
}

// StreamChunk is one piece of a streaming response. Chunks arrive in
// delivery order; a missing text fragment is represented by an empty
// string, not an error.
type StreamChunk struct {
	// Text is the text fragment carried by this chunk, possibly empty.
	Text string

	// Usage is the usage metadata attached to this chunk, if any.
	Usage *TokenUsage

	// Err is a mid-stream failure. When set, no further chunks follow.
	Err error
}
