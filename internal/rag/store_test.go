package rag

import (
	"context"
	"errors"
	"testing"
)

func testPassages(n int) []Passage {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = string(rune('a' + i))
	}
	return NewPassages(texts)
}

func TestMemoryStoreOrdersBySimilarity(t *testing.T) {
	store, err := NewMemoryStore(testPassages(3), [][]float64{{0, 1}, {1, 0}, {1, 1}})
	if err != nil {
		t.Fatalf("NewMemoryStore returned error: %v", err)
	}

	results, err := store.Search(context.Background(), []float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Text != "b" || results[1].Text != "c" || results[2].Text != "a" {
		t.Fatalf("unexpected order: %s %s %s", results[0].Text, results[1].Text, results[2].Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("scores not descending: %v", results)
		}
	}
}

func TestMemoryStoreTiesKeepCorpusOrder(t *testing.T) {
	store, err := NewMemoryStore(testPassages(4), [][]float64{{1, 0}, {0, 1}, {1, 0}, {1, 0}})
	if err != nil {
		t.Fatalf("NewMemoryStore returned error: %v", err)
	}
	results, err := store.Search(context.Background(), []float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	for i, want := range []int{0, 2, 3} {
		if results[i].Position != want {
			t.Fatalf("result %d: expected position %d, got %d", i, want, results[i].Position)
		}
	}
}

func TestMemoryStoreClampsK(t *testing.T) {
	store, err := NewMemoryStore(testPassages(2), [][]float64{{1}, {1}})
	if err != nil {
		t.Fatalf("NewMemoryStore returned error: %v", err)
	}
	results, err := store.Search(context.Background(), []float64{1}, 10)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestMemoryStoreRejectsMismatchedDimensions(t *testing.T) {
	if _, err := NewMemoryStore(testPassages(2), [][]float64{{1, 0}, {1}}); err == nil {
		t.Fatal("expected dimension error at construction")
	}

	store, err := NewMemoryStore(testPassages(1), [][]float64{{1, 0}})
	if err != nil {
		t.Fatalf("NewMemoryStore returned error: %v", err)
	}
	if _, err := store.Search(context.Background(), []float64{1, 0, 0}, 1); err == nil {
		t.Fatal("expected dimension error at search")
	}
}

func TestMemoryStoreEmpty(t *testing.T) {
	store, err := NewMemoryStore(nil, nil)
	if err != nil {
		t.Fatalf("NewMemoryStore returned error: %v", err)
	}
	if _, err := store.Search(context.Background(), nil, 4); !errors.Is(err, ErrEmptyStore) {
		t.Fatalf("expected ErrEmptyStore, got %v", err)
	}
}

func TestMemoryStoreOwnsVectors(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0, 1}}
	store, err := NewMemoryStore(testPassages(2), vectors)
	if err != nil {
		t.Fatalf("NewMemoryStore returned error: %v", err)
	}
	vectors[0][0] = 0
	vectors[0][1] = 1

	results, err := store.Search(context.Background(), []float64{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if results[0].Position != 0 {
		t.Fatalf("store changed after caller mutated its vectors")
	}
}
