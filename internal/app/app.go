// internal/app/app.go
// Package app wires configuration, model service, knowledge store and pipeline
// into the single application object shared by every user interface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/console"
	"github.com/mwiater/sage/internal/llamaserver"
	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/metrics"
	"github.com/mwiater/sage/internal/pipeline"
	"github.com/mwiater/sage/internal/providerfactory"
	"github.com/mwiater/sage/internal/providers"
	"github.com/mwiater/sage/internal/rag"
)

// App holds everything that lives for the whole process.
type App struct {
	Config    *appconfig.Config
	Model     providers.ModelService
	Embedder  providers.Embedder
	Store     rag.Store
	Retriever *rag.Retriever
	Pipeline  *pipeline.Pipeline
	Metrics   *metrics.Aggregator
	// LoadTime is how long the model took to become ready.
	LoadTime time.Duration

	server *llamaserver.Server
}

// Bootstrap performs the startup sequence, reporting each step. The corpus is
// read first so a missing file fails before the model is loaded.
func Bootstrap(ctx context.Context, cfg *appconfig.Config, reporter *console.Reporter) (*App, error) {
	return bootstrap(ctx, cfg, reporter, true)
}

// BootstrapRetrieval builds the knowledge store and retriever without loading
// the completion model. Pipeline is nil on the returned App.
func BootstrapRetrieval(ctx context.Context, cfg *appconfig.Config, reporter *console.Reporter) (*App, error) {
	return bootstrap(ctx, cfg, reporter, false)
}

func bootstrap(ctx context.Context, cfg *appconfig.Config, reporter *console.Reporter, withModel bool) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if reporter == nil {
		reporter = console.New(io.Discard)
	}
	a := &App{Config: cfg}

	reporter.Step("Reading corpus %s", cfg.CorpusPath())
	texts, err := rag.LoadCorpus(cfg.CorpusPath())
	if err != nil {
		return nil, err
	}
	passages := rag.NewPassages(texts)
	reporter.Done("%d passages", len(passages))

	if cfg.Metrics {
		a.Metrics = metrics.NewAggregator(cfg.MetricsFilePath())
	}

	if withModel {
		if err := a.startModel(ctx, reporter); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	if err := a.buildStore(ctx, texts, passages, reporter); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Retriever = rag.NewRetriever(a.Store, a.Embedder, cfg.TopK())
	if withModel {
		var opts []pipeline.Option
		if a.Metrics != nil {
			opts = append(opts, pipeline.WithRecorder(a.Metrics))
		}
		a.Pipeline = pipeline.New(a.Retriever, a.Model, opts...)
	}
	logging.LogEvent("sage ready: passages=%d topK=%d backend=%s", a.Store.Len(), a.Retriever.K(), cfg.StoreBackend())
	return a, nil
}

func (a *App) startModel(ctx context.Context, reporter *console.Reporter) error {
	cfg := a.Config

	if cfg.Model.Managed {
		opts, err := llamaserver.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		reporter.Step("Starting %s for %s", opts.Binary, opts.ModelPath)
		a.server, err = llamaserver.Start(ctx, opts)
		if err != nil {
			return err
		}
		reporter.Done("llama-server listening on %s:%d", opts.Host, opts.Port)
	}

	model, err := providerfactory.NewModelService(cfg, a.Metrics)
	if err != nil {
		return err
	}
	a.Model = model

	reporter.Step("Loading model %s (n_ctx=%d, gpu layers=%d)", cfg.ModelName(), cfg.ContextSize(), cfg.GPULayers())
	if err := a.waitReady(ctx); err != nil {
		return fmt.Errorf("model not ready: %w", err)
	}
	a.LoadTime = reporter.Done("model loaded")
	return nil
}

// waitReady blocks until the model answers, failing early if a managed server exits.
func (a *App) waitReady(ctx context.Context) error {
	if a.server == nil {
		return a.Model.EnsureModelReady(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readyCh := make(chan error, 1)
	go func() { readyCh <- a.Model.EnsureModelReady(ctx) }()

	select {
	case err := <-readyCh:
		return err
	case exitErr := <-a.server.Done():
		cancel()
		<-readyCh
		if exitErr == nil {
			return errors.New("llama-server exited before the model loaded")
		}
		return fmt.Errorf("llama-server exited before the model loaded: %w", exitErr)
	}
}

func (a *App) buildStore(ctx context.Context, texts []string, passages []rag.Passage, reporter *console.Reporter) error {
	cfg := a.Config

	if cfg.EmbeddingType() == appconfig.TypeTFIDF {
		a.Embedder = rag.NewTFIDFEmbedder(texts)
	} else {
		embedder, err := providerfactory.NewEmbedder(cfg)
		if err != nil {
			return err
		}
		a.Embedder = embedder
	}

	opts := rag.StoreOptionsFromConfig(cfg)
	opts.Progress = func(done, total int) {
		if done == total || done%50 == 0 {
			logging.LogFileOnly("[STARTUP] embedded %d/%d passages", done, total)
		}
	}

	reporter.Step("Embedding %d passages (%s) into %s store", len(passages), cfg.EmbeddingType(), cfg.StoreBackend())
	store, err := rag.BuildStore(ctx, passages, a.Embedder, opts)
	if err != nil {
		return fmt.Errorf("build knowledge store: %w", err)
	}
	a.Store = store
	reporter.Done("knowledge store ready")
	return nil
}

// Close releases the model service, store and managed server and saves metrics.
func (a *App) Close() error {
	var errs []error
	if a.Metrics != nil {
		errs = append(errs, a.Metrics.Close())
	}
	if a.Model != nil {
		errs = append(errs, a.Model.Close())
	}
	if closer, ok := a.Embedder.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.server != nil {
		errs = append(errs, a.server.Close())
	}
	return errors.Join(errs...)
}
