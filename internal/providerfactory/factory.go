// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/metrics"
	"github.com/mwiater/sage/internal/providers"
	"github.com/mwiater/sage/internal/providers/llamacpp"
	"github.com/mwiater/sage/internal/providers/ollama"
	"github.com/mwiater/sage/internal/providers/retry"
)

// NewModelService selects the completion provider for the configured model type,
// wraps it with metrics collection when aggregator is non-nil and with bounded
// retries when the configuration asks for them.
func NewModelService(cfg *appconfig.Config, aggregator *metrics.Aggregator) (providers.ModelService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	var provider providers.ModelService
	switch cfg.ModelType() {
	case appconfig.TypeLlamaCpp:
		provider = llamacpp.New(cfg)
	case appconfig.TypeOllama:
		provider = ollama.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported model type %q", cfg.Model.Type)
	}
	logging.LogEvent("model service: type=%s url=%s model=%s", cfg.ModelType(), cfg.ModelURL(), cfg.ModelName())

	if aggregator != nil {
		provider = metrics.NewProvider(provider, aggregator, cfg.ModelName())
	}

	// Retries sit outside metrics so every attempt is recorded.
	provider = retry.Wrap(provider, retry.Config{
		MaxRetries: cfg.RetryAttempts(),
		RetryDelay: cfg.RetryDelay(),
	})

	return provider, nil
}

// NewEmbedder returns the remote embedding provider for the configured embedding type.
func NewEmbedder(cfg *appconfig.Config) (providers.Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}
	switch cfg.EmbeddingType() {
	case appconfig.TypeLlamaCpp:
		return llamacpp.NewEmbedder(cfg), nil
	case appconfig.TypeOllama:
		return ollama.NewEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("embedding type %q is not served over HTTP", cfg.EmbeddingType())
	}
}
