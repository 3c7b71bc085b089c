// internal/rag/tfidf.go
package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
)

// TFIDFEmbedder embeds text as a TF-IDF vector over the corpus vocabulary. It
// needs no model server, so the store can be built offline.
type TFIDFEmbedder struct {
	vocab map[string]int
	idf   []float64
}

// NewTFIDFEmbedder fits the vocabulary and inverse document frequencies on docs.
func NewTFIDFEmbedder(docs []string) *TFIDFEmbedder {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range Tokenize(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	e := &TFIDFEmbedder{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, term := range terms {
		e.vocab[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return e
}

// Dimension is the vocabulary size.
func (e *TFIDFEmbedder) Dimension() int {
	return len(e.idf)
}

// Embed returns the TF-IDF weights of text. Terms outside the vocabulary are ignored,
// so unrelated text yields a zero vector.
func (e *TFIDFEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, len(e.idf))
	for _, term := range Tokenize(text) {
		if idx, ok := e.vocab[term]; ok {
			vec[idx]++
		}
	}
	for i := range vec {
		vec[i] *= e.idf[i]
	}
	return vec, nil
}

// Tokenize lowercases text and splits it into terms. Letter and digit runs
// become words; Japanese and Chinese script runs become overlapping character
// bigrams, since they are written without spaces.
func Tokenize(text string) []string {
	var (
		tokens []string
		word   []rune
		cjk    []rune
	)
	flushWord := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	flushCJK := func() {
		switch len(cjk) {
		case 0:
		case 1:
			tokens = append(tokens, string(cjk))
		default:
			for i := 0; i+1 < len(cjk); i++ {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word = append(word, r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) || r == 'ー'
}
