// internal/rag/corpus.go
package rag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// PassageSeparator splits the corpus into passages.
const PassageSeparator = "\n\n"

var (
	// ErrCorpusNotFound is returned when the corpus file does not exist.
	ErrCorpusNotFound = errors.New("corpus file not found")
	// ErrEmptyStore is returned when a store is searched before anything was indexed.
	ErrEmptyStore = errors.New("knowledge store is empty")
)

// LoadCorpus reads a UTF-8 text file and splits it into passages.
func LoadCorpus(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("corpus %s is not valid UTF-8", path)
	}
	return SplitPassages(string(raw)), nil
}

// SplitPassages splits text on every blank line. Segments are kept as-is,
// including empty ones.
func SplitPassages(text string) []string {
	return strings.Split(text, PassageSeparator)
}

// NewPassages assigns ids and corpus positions to the split texts.
func NewPassages(texts []string) []Passage {
	passages := make([]Passage, len(texts))
	for i, text := range texts {
		passages[i] = Passage{
			ID:       uuid.NewString(),
			Position: i,
			Text:     text,
		}
	}
	return passages
}
