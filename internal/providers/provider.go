// internal/providers/provider.go

// Package providers defines the interfaces sage uses to talk to text-completion
// and embedding services, regardless of the server behind them (llama.cpp, Ollama).
package providers

import (
	"context"
	"errors"
	"time"
)

// ErrStreamingUnsupported is returned when a caller asks for incremental output.
// Answers are always returned as one unit.
var ErrStreamingUnsupported = errors.New("streaming completions are not supported")

// CompletionRequest holds one raw-prompt completion and its decoding controls.
type CompletionRequest struct {
	Prompt    string
	MaxTokens int
	Stop      []string
	Echo      bool
	Stream    bool
}

// CompletionResponse is the generated continuation plus server-reported usage.
type CompletionResponse struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ModelService is the long-lived completion service held by the application for its lifetime.
type ModelService interface {
	Completer
	// EnsureModelReady blocks until the served model can answer requests.
	EnsureModelReady(ctx context.Context) error
	// Close cleans up any resources used by the provider.
	Close() error
}
