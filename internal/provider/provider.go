// Package provider defines the boundary to a remote generative-model API:
// the client and chat-channel interfaces, streaming chunk types, sentinel
// errors, and the validated generation configuration.
package provider

import "context"

// Client is a shared handle to a remote generative-model service. It is
// created once by the caller, passed to every session, and closed by the
// caller after all sessions using it are done. No session owns it.
type Client interface {
	// NewChat opens a stateful conversation channel for the given model.
	// The remote side retains prior turns for the lifetime of the chat.
	// The generation config, if non-nil, is bound to the channel and
	// cannot be changed later. cfg must already be validated.
	NewChat(model string, cfg *GenerationConfig) (Chat, error)

	// Supports reports whether the model is on the client's allow-list.
	Supports(model string) bool

	// Close releases the client. Chats created from it must not be used
	// afterwards.
	Close() error
}

// Chat is one long-lived conversational channel. A Chat is consumed by a
// single caller; it is not safe for concurrent use, and at most one stream
// may be in flight at a time.
type Chat interface {
	// SendStream sends a prompt on the channel and returns an ordered
	// stream of chunks. Initial connection errors are returned directly.
	// Mid-stream errors are delivered via StreamChunk.Err, after which
	// the channel is closed. A clean close without an Err chunk means the
	// stream was exhausted successfully and the turn has been committed
	// to the channel's remote history.
	SendStream(ctx context.Context, prompt string) (<-chan StreamChunk, error)

	// Model returns the model identifier the chat was opened with.
	Model() string
}
