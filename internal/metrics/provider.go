// internal/metrics/provider.go
package metrics

import (
	"context"
	"time"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/providers"
)

// Provider is a decorator that wraps a ModelService to record completion metrics.
type Provider struct {
	wrapped    providers.ModelService
	aggregator *Aggregator
	model      string
}

// NewProvider creates a metrics-enabled provider. model labels failed calls,
// which carry no server-reported model name.
func NewProvider(wrapped providers.ModelService, aggregator *Aggregator, model string) *Provider {
	logging.LogMetricsEvent("Wrapping provider with metrics provider")
	return &Provider{wrapped: wrapped, aggregator: aggregator, model: model}
}

// Complete times the call to the wrapped provider and records the outcome.
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	start := time.Now()
	resp, err := p.wrapped.Complete(ctx, req)
	elapsed := time.Since(start)

	if p.aggregator == nil {
		return resp, err
	}
	if err != nil {
		p.aggregator.RecordCompletionError(p.model)
		return resp, err
	}
	if resp.Model == "" {
		resp.Model = p.model
	}
	p.aggregator.RecordCompletion(resp, elapsed)
	return resp, nil
}

// EnsureModelReady passes the call through to the wrapped provider.
func (p *Provider) EnsureModelReady(ctx context.Context) error {
	return p.wrapped.EnsureModelReady(ctx)
}

// Close passes the call through to the wrapped provider.
func (p *Provider) Close() error {
	return p.wrapped.Close()
}

var _ providers.ModelService = (*Provider)(nil)
