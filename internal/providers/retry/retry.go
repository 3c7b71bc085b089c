// internal/providers/retry/retry.go
// Package retry wraps a ModelService with a bounded retry around completions.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/providers"
)

// Config configures retry behavior for completion calls.
type Config struct {
	MaxRetries int           // Additional attempts after the first (0 = no retries)
	RetryDelay time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Cap for the exponential backoff
}

// Provider retries failed completions. Readiness checks and Close pass through untouched.
type Provider struct {
	inner  providers.ModelService
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New wraps inner with retry logic.
func New(inner providers.ModelService, config Config) *Provider {
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	return &Provider{inner: inner, config: config, sleep: sleepContext}
}

// Wrap returns inner unchanged when retries are disabled.
func Wrap(inner providers.ModelService, config Config) providers.ModelService {
	if inner == nil || config.MaxRetries <= 0 {
		return inner
	}
	return New(inner, config)
}

// Complete sends the request, retrying transient failures with exponential backoff.
func (r *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			logging.LogEvent("[RETRY] completion attempt %d/%d in %s: %v", attempt, r.config.MaxRetries, delay, lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return providers.CompletionResponse{}, err
			}
		}

		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return providers.CompletionResponse{}, err
		}
		if ctx.Err() != nil {
			return providers.CompletionResponse{}, ctx.Err()
		}
	}

	return providers.CompletionResponse{}, fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// EnsureModelReady passes the call through to the wrapped provider.
func (r *Provider) EnsureModelReady(ctx context.Context) error {
	return r.inner.EnsureModelReady(ctx)
}

// Close passes the call through to the wrapped provider.
func (r *Provider) Close() error {
	return r.inner.Close()
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxDelay.
func (r *Provider) backoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			return r.config.MaxDelay
		}
	}
	return delay
}

// isRetryable treats timeouts, network failures and 5xx/429 responses as transient.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, providers.ErrStreamingUnsupported) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, "returned "+code) {
			return true
		}
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ providers.ModelService = (*Provider)(nil)
