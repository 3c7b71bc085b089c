// internal/accuracy/accuracy.go
// Package accuracy runs a suite of questions through the answering pipeline and
// scores each answer against the terms it is expected to contain.
package accuracy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/pipeline"
	"github.com/mwiater/sage/internal/util"
)

// DefaultResultsDir holds one JSONL results file per model.
const DefaultResultsDir = "reports/data/accuracy"

// UnknownAnswer is what the model is instructed to reply when the context has no answer.
const UnknownAnswer = "分かりません"

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	slugChars  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Answerer produces an answer for one question. *pipeline.Pipeline implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) (pipeline.AnswerResult, error)
}

// Options controls a suite run.
type Options struct {
	Model string
	// ResultsPath is the JSONL file results are appended to. Empty disables writing.
	ResultsPath string
	// Progress receives one line per question. Nil discards it.
	Progress io.Writer
	now      func() time.Time
}

// ResultsPathFor returns the default results file for model.
func ResultsPathFor(model string) string {
	return filepath.Join(DefaultResultsDir, slugify(model)+".jsonl")
}

// LoadPromptSuite reads a suite from a JSON file.
func LoadPromptSuite(path string) (PromptSuite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PromptSuite{}, fmt.Errorf("error reading prompt suite: %w", err)
	}

	var suite PromptSuite
	if err := json.Unmarshal(raw, &suite); err != nil {
		return PromptSuite{}, fmt.Errorf("error parsing prompt suite: %w", err)
	}
	if len(suite.Tests) == 0 {
		return PromptSuite{}, fmt.Errorf("prompt suite contains no tests")
	}
	for _, t := range suite.Tests {
		if strings.TrimSpace(t.Question) == "" {
			return PromptSuite{}, fmt.Errorf("prompt suite test %d has an empty question", t.ID)
		}
	}
	return suite, nil
}

// Run answers every test in order. A failed answer is recorded as incorrect and
// the run continues; only errors writing results stop it.
func Run(ctx context.Context, answerer Answerer, suite PromptSuite, opts Options) ([]AccuracyResult, Summary, error) {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.ResultsPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.ResultsPath), 0o755); err != nil {
			return nil, Summary{}, fmt.Errorf("error creating results directory: %w", err)
		}
	}

	total := len(suite.Tests)
	results := make([]AccuracyResult, 0, total)
	for i, t := range suite.Tests {
		fmt.Fprintf(opts.Progress, "[%d/%d] %s - Question: %s\n", i+1, total, opts.Model, util.SingleLine(t.Question))

		result := AccuracyResult{
			Timestamp: opts.now().Format(time.RFC3339),
			Model:     opts.Model,
			PromptID:  t.ID,
			Question:  t.Question,
			Expected:  t.Expected,
			Category:  t.Category,
		}

		answer, err := answerer.Answer(ctx, t.Question)
		if err != nil {
			result.Error = err.Error()
			logging.LogEvent("accuracy prompt %d failed: %v", t.ID, err)
		} else {
			result.Response = answer.Text
			result.ElapsedMs = answer.Elapsed.Milliseconds()
			result.Correct = matchesExpected(answer.Text, t.Expected)
		}
		fmt.Fprintf(opts.Progress, "[%d/%d] %s - Result: correct=%v elapsed=%dms response=%s\n",
			i+1, total, opts.Model, result.Correct, result.ElapsedMs, util.TruncateRunes(util.SingleLine(result.Response), 80))

		if opts.ResultsPath != "" {
			if err := appendResult(opts.ResultsPath, result); err != nil {
				return results, summarize(results), err
			}
		}
		results = append(results, result)
	}
	return results, summarize(results), nil
}

func summarize(results []AccuracyResult) Summary {
	s := Summary{Total: len(results)}
	var elapsed int64
	answered := 0
	for _, r := range results {
		if r.Correct {
			s.Correct++
		}
		if r.Error != "" {
			s.Errors++
			continue
		}
		answered++
		elapsed += r.ElapsedMs
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Total)
	}
	if answered > 0 {
		s.MeanElapsedMs = float64(elapsed) / float64(answered)
	}
	return s
}

func appendResult(path string, result AccuracyResult) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("error opening results file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(result); err != nil {
		return fmt.Errorf("error writing results: %w", err)
	}
	return nil
}

// matchesExpected reports whether response contains any expected term. With no
// expected terms the model must decline to answer.
func matchesExpected(response string, expected []string) bool {
	normalized := normalizeResponse(response)
	if normalized == "" {
		return false
	}
	if len(expected) == 0 {
		return strings.Contains(normalized, UnknownAnswer)
	}
	for _, term := range expected {
		if term = normalizeResponse(term); term != "" && strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

// normalizeResponse strips reasoning blocks, collapses whitespace and lowercases.
func normalizeResponse(response string) string {
	trimmed := thinkBlock.ReplaceAllString(strings.TrimSpace(response), "")
	if idx := strings.Index(trimmed, "<think>"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = strings.Join(strings.Fields(trimmed), " ")
	return strings.ToLower(strings.TrimSpace(trimmed))
}

func slugify(s string) string {
	slug := strings.Trim(slugChars.ReplaceAllString(strings.ToLower(filepath.Base(s)), "-"), "-")
	if slug == "" {
		return "model"
	}
	return slug
}
