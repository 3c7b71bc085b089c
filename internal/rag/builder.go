// internal/rag/builder.go
package rag

import (
	"context"
	"fmt"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/providers"
)

// StoreOptions selects and configures the store backend.
type StoreOptions struct {
	Backend    string
	QdrantAddr string
	Collection string
	// Progress, when set, is called after each passage is embedded.
	Progress func(done, total int)
}

// StoreOptionsFromConfig maps the store settings onto StoreOptions.
func StoreOptionsFromConfig(cfg *appconfig.Config) StoreOptions {
	return StoreOptions{
		Backend:    cfg.StoreBackend(),
		QdrantAddr: cfg.QdrantAddr(),
		Collection: cfg.QdrantCollection(),
	}
}

// BuildStore embeds every passage in order and indexes the vectors. Any embedding
// failure aborts the build.
func BuildStore(ctx context.Context, passages []Passage, embedder providers.Embedder, opts StoreOptions) (Store, error) {
	vectors := make([][]float64, len(passages))
	for i, p := range passages {
		vec, err := embedder.Embed(ctx, p.Text)
		if err != nil {
			return nil, fmt.Errorf("embed passage %d: %w", p.Position, err)
		}
		vectors[i] = vec
		if opts.Progress != nil {
			opts.Progress(i+1, len(passages))
		}
	}

	switch opts.Backend {
	case "", appconfig.BackendMemory:
		return NewMemoryStore(passages, vectors)
	case appconfig.BackendQdrant:
		return NewQdrantStore(ctx, opts.QdrantAddr, opts.Collection, passages, vectors)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
