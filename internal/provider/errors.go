package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrInvalidConfig indicates a generation option failed validation at
	// build time. Not retried; no network resource is created.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrInvalidModel indicates a session was constructed with a model
	// outside the allow-list. Not retried.
	ErrInvalidModel = errors.New("model not supported")

	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrUnreachable indicates all streaming attempts for a turn were
	// exhausted. The caller's pending context is preserved.
	ErrUnreachable = errors.New("provider unreachable after retries")
)
