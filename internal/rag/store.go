// internal/rag/store.go
package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Store is a read-only vector index over the corpus passages.
type Store interface {
	// Search returns the k passages most similar to vector, best first.
	Search(ctx context.Context, vector []float64, k int) ([]ScoredPassage, error)
	// Len reports the number of indexed passages.
	Len() int
	Close() error
}

type memoryEntry struct {
	passage Passage
	vector  []float64
}

// MemoryStore scans every passage with cosine similarity. It is never modified
// after construction, so concurrent searches need no locking.
type MemoryStore struct {
	entries []memoryEntry
	dim     int
}

// NewMemoryStore indexes passages with their precomputed vectors.
func NewMemoryStore(passages []Passage, vectors [][]float64) (*MemoryStore, error) {
	if len(passages) != len(vectors) {
		return nil, fmt.Errorf("passages and vectors length mismatch: %d != %d", len(passages), len(vectors))
	}
	s := &MemoryStore{entries: make([]memoryEntry, len(passages))}
	for i, p := range passages {
		if i == 0 {
			s.dim = len(vectors[i])
		} else if len(vectors[i]) != s.dim {
			return nil, fmt.Errorf("passage %d has dimension %d, expected %d", p.Position, len(vectors[i]), s.dim)
		}
		vec := make([]float64, len(vectors[i]))
		copy(vec, vectors[i])
		s.entries[i] = memoryEntry{passage: p, vector: vec}
	}
	return s, nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, vector []float64, k int) ([]ScoredPassage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.entries) == 0 {
		return nil, ErrEmptyStore
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(vector), s.dim)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	scored := scoreEntries(s.entries, vector)
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	return len(s.entries)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// scoreEntries ranks every entry by similarity to queryVec. Equal scores keep
// corpus order.
func scoreEntries(entries []memoryEntry, queryVec []float64) []ScoredPassage {
	scored := make([]ScoredPassage, 0, len(entries))
	queryNorm := vectorNorm(queryVec)
	for _, entry := range entries {
		scored = append(scored, ScoredPassage{
			Passage: entry.passage,
			Score:   cosineSimilarity(queryVec, entry.vector, queryNorm),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Position < scored[j].Position
	})
	return scored
}

func cosineSimilarity(a, b []float64, normA float64) float64 {
	if normA == 0 {
		return 0
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}

var _ Store = (*MemoryStore)(nil)
