package llm

import (
	"context"
	"errors"
)

// Sentinel errors returned by the gateway and its providers.
var (
	// ErrUpstream indicates the model provider was unreachable or returned
	// a non-retryable failure.
	ErrUpstream = errors.New("llm: upstream unavailable")
	// ErrInvalidInput indicates malformed caller parameters.
	ErrInvalidInput = errors.New("llm: invalid input")
	// ErrTimeout indicates a provider call exceeded its deadline. For
	// response composition it is treated the same as ErrUpstream.
	ErrTimeout = errors.New("llm: timeout")
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
