// internal/pipeline/pipeline.go
// Package pipeline answers a question by retrieving passages, assembling the
// prompt and asking the model for a completion.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/prompt"
	"github.com/mwiater/sage/internal/providers"
	"github.com/mwiater/sage/internal/rag"
	"github.com/mwiater/sage/internal/util"
)

// EmptyQuestionMessage is returned without calling the model when the question is blank.
const EmptyQuestionMessage = "問いかけがありません。何かお尋ねください。"

// MaxTokens bounds the length of every answer.
const MaxTokens = 512

// StopSequences end generation before the model starts a new turn or section.
var StopSequences = []string{"###", "ユーザー:", "質問:", "コンテキスト:", "\n\n"}

// Retriever returns the passages relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.ScoredPassage, error)
}

// Recorder receives per-answer timings. *metrics.Aggregator implements it.
type Recorder interface {
	RecordAnswer(retrieval, elapsed time.Duration, empty bool, err error)
}

// Pipeline is a stateless call chain. It keeps no conversation history.
type Pipeline struct {
	retriever Retriever
	completer providers.Completer
	recorder  Recorder
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRecorder reports each answer's timings to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// New builds a Pipeline from its collaborators.
func New(retriever Retriever, completer providers.Completer, opts ...Option) *Pipeline {
	p := &Pipeline{retriever: retriever, completer: completer, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnswerResult is the model's answer and the time spent producing it.
type AnswerResult struct {
	Text    string        `json:"text"`
	Elapsed time.Duration `json:"-"`
}

// ElapsedSeconds returns Elapsed as fractional seconds.
func (r AnswerResult) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Display renders the answer in the banner shown by every UI. The elapsed
// line is always last.
func (r AnswerResult) Display() string {
	return fmt.Sprintf("--- Sage ---\n%s\n------------------------------------------\n(elapsed: %.2f seconds)", r.Text, r.ElapsedSeconds())
}

// CompletionRequest returns the fixed decoding parameters used for every answer.
func CompletionRequest(assembled string) providers.CompletionRequest {
	stop := make([]string, len(StopSequences))
	copy(stop, StopSequences)
	return providers.CompletionRequest{
		Prompt:    assembled,
		MaxTokens: MaxTokens,
		Stop:      stop,
		Echo:      false,
		Stream:    false,
	}
}

// Answer runs retrieve, assemble and complete for question. A blank question
// short-circuits to EmptyQuestionMessage with zero elapsed time. Elapsed covers
// the three steps only.
func (p *Pipeline) Answer(ctx context.Context, question string) (AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		p.record(0, 0, true, nil)
		return AnswerResult{Text: EmptyQuestionMessage}, nil
	}

	start := p.now()

	passages, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		err = fmt.Errorf("retrieve: %w", err)
		p.record(0, p.now().Sub(start), false, err)
		return AnswerResult{}, err
	}
	retrieval := p.now().Sub(start)

	assembled := prompt.Assemble(rag.JoinPassages(passages), question)

	resp, err := p.completer.Complete(ctx, CompletionRequest(assembled))
	elapsed := p.now().Sub(start)
	if err != nil {
		err = fmt.Errorf("complete: %w", err)
		p.record(retrieval, elapsed, false, err)
		return AnswerResult{}, err
	}

	logging.LogEvent("answered %q with %d passages: retrieval=%s elapsed=%s", util.TruncateRunes(util.SingleLine(question), 80), len(passages), retrieval, elapsed)
	p.record(retrieval, elapsed, false, nil)
	return AnswerResult{Text: strings.TrimSpace(resp.Text), Elapsed: elapsed}, nil
}

func (p *Pipeline) record(retrieval, elapsed time.Duration, empty bool, err error) {
	if p.recorder != nil {
		p.recorder.RecordAnswer(retrieval, elapsed, empty, err)
	}
}
