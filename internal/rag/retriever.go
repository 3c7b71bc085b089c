// internal/rag/retriever.go
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/sage/internal/providers"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 4

// Retriever finds the passages closest to a query.
type Retriever struct {
	store    Store
	embedder providers.Embedder
	k        int
}

// NewRetriever returns a Retriever over store. The embedder must be the one the
// store was built with. k <= 0 selects DefaultTopK.
func NewRetriever(store Store, embedder providers.Embedder, k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{store: store, embedder: embedder, k: k}
}

// K reports how many passages Retrieve returns at most.
func (r *Retriever) K() int {
	return r.k
}

// Retrieve embeds query and returns the nearest passages, best first. An empty
// query is allowed.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]ScoredPassage, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.Search(ctx, vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	return results, nil
}

// JoinPassages concatenates passage texts in rank order, separated by a blank line.
func JoinPassages(passages []ScoredPassage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, PassageSeparator)
}
