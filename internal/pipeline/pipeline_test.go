package pipeline

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/sage/internal/prompt"
	"github.com/mwiater/sage/internal/providers"
	"github.com/mwiater/sage/internal/rag"
)

type recorder struct {
	calls []string
}

type fakeRetriever struct {
	log      *recorder
	passages []rag.ScoredPassage
	err      error
	queries  []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]rag.ScoredPassage, error) {
	f.log.calls = append(f.log.calls, "retrieve")
	f.queries = append(f.queries, query)
	return f.passages, f.err
}

type fakeCompleter struct {
	log      *recorder
	text     string
	err      error
	requests []providers.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	f.log.calls = append(f.log.calls, "complete")
	f.requests = append(f.requests, req)
	if f.err != nil {
		return providers.CompletionResponse{}, f.err
	}
	return providers.CompletionResponse{Text: f.text}, nil
}

type answerRecord struct {
	retrieval, elapsed time.Duration
	empty              bool
	err                error
}

type fakeMetrics struct {
	records []answerRecord
}

func (f *fakeMetrics) RecordAnswer(retrieval, elapsed time.Duration, empty bool, err error) {
	f.records = append(f.records, answerRecord{retrieval, elapsed, empty, err})
}

func passages(texts ...string) []rag.ScoredPassage {
	out := make([]rag.ScoredPassage, len(texts))
	for i, text := range texts {
		out[i] = rag.ScoredPassage{Passage: rag.Passage{Position: i, Text: text}, Score: 1 - float64(i)/10}
	}
	return out
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestAnswerRunsRetrieveThenComplete(t *testing.T) {
	log := &recorder{}
	retriever := &fakeRetriever{log: log, passages: passages("Paris is the capital of France.", "Apples are red.")}
	completer := &fakeCompleter{log: log, text: "  パリです。\n"}
	p := New(retriever, completer, WithClock(stepClock(time.Second)))

	got, err := p.Answer(context.Background(), "フランスの首都は?")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if !reflect.DeepEqual(log.calls, []string{"retrieve", "complete"}) {
		t.Fatalf("unexpected call order: %v", log.calls)
	}
	if got.Text != "パリです。" {
		t.Fatalf("expected trimmed text, got %q", got.Text)
	}
	if got.Elapsed != 2*time.Second {
		t.Fatalf("expected 2s elapsed, got %v", got.Elapsed)
	}
	if retriever.queries[0] != "フランスの首都は?" {
		t.Fatalf("retriever got %q", retriever.queries[0])
	}
}

func TestAnswerSendsAssembledPromptWithFixedParameters(t *testing.T) {
	log := &recorder{}
	retriever := &fakeRetriever{log: log, passages: passages("first", "second")}
	completer := &fakeCompleter{log: log, text: "ok"}
	p := New(retriever, completer)

	question := " what? "
	if _, err := p.Answer(context.Background(), question); err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	req := completer.requests[0]
	if req.Prompt != prompt.Assemble("first\n\nsecond", question) {
		t.Fatalf("unexpected prompt: %q", req.Prompt)
	}
	if req.MaxTokens != 512 {
		t.Fatalf("expected max tokens 512, got %d", req.MaxTokens)
	}
	if req.Echo || req.Stream {
		t.Fatalf("echo and stream must be false: %+v", req)
	}
	wantStop := []string{"###", "ユーザー:", "質問:", "コンテキスト:", "\n\n"}
	if !reflect.DeepEqual(req.Stop, wantStop) {
		t.Fatalf("unexpected stop sequences: %q", req.Stop)
	}
}

func TestAnswerBlankQuestionSkipsModel(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t "} {
		log := &recorder{}
		metrics := &fakeMetrics{}
		p := New(&fakeRetriever{log: log}, &fakeCompleter{log: log}, WithRecorder(metrics))

		got, err := p.Answer(context.Background(), q)
		if err != nil {
			t.Fatalf("Answer(%q) returned error: %v", q, err)
		}
		if got.Text != EmptyQuestionMessage || got.Elapsed != 0 {
			t.Fatalf("Answer(%q) = %+v, want canned response with zero elapsed", q, got)
		}
		if len(log.calls) != 0 {
			t.Fatalf("Answer(%q) called collaborators: %v", q, log.calls)
		}
		if len(metrics.records) != 1 || !metrics.records[0].empty {
			t.Fatalf("expected one empty-question record, got %+v", metrics.records)
		}
	}
}

func TestAnswerWithNoPassagesStillCallsModel(t *testing.T) {
	log := &recorder{}
	completer := &fakeCompleter{log: log, text: "分かりません"}
	p := New(&fakeRetriever{log: log}, completer)

	got, err := p.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if got.Text != "分かりません" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if !strings.Contains(completer.requests[0].Prompt, "コンテキスト:\n\n\n質問:") {
		t.Fatalf("expected empty context block: %q", completer.requests[0].Prompt)
	}
}

func TestAnswerPropagatesRetrieveError(t *testing.T) {
	log := &recorder{}
	sentinel := errors.New("embedding failed")
	metrics := &fakeMetrics{}
	p := New(&fakeRetriever{log: log, err: sentinel}, &fakeCompleter{log: log}, WithRecorder(metrics))

	_, err := p.Answer(context.Background(), "q")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if !reflect.DeepEqual(log.calls, []string{"retrieve"}) {
		t.Fatalf("model must not be called after retrieval failure: %v", log.calls)
	}
	if len(metrics.records) != 1 || metrics.records[0].err == nil {
		t.Fatalf("expected failure to be recorded: %+v", metrics.records)
	}
}

func TestAnswerPropagatesCompletionError(t *testing.T) {
	log := &recorder{}
	sentinel := errors.New("model crashed")
	p := New(&fakeRetriever{log: log, passages: passages("x")}, &fakeCompleter{log: log, err: sentinel})

	_, err := p.Answer(context.Background(), "q")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "complete: ") {
		t.Fatalf("expected complete prefix, got %q", err.Error())
	}
}

func TestAnswerRecordsTimings(t *testing.T) {
	log := &recorder{}
	metrics := &fakeMetrics{}
	p := New(&fakeRetriever{log: log, passages: passages("x")}, &fakeCompleter{log: log, text: "y"},
		WithClock(stepClock(500*time.Millisecond)), WithRecorder(metrics))

	if _, err := p.Answer(context.Background(), "q"); err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	rec := metrics.records[0]
	if rec.retrieval != 500*time.Millisecond || rec.elapsed != time.Second || rec.empty || rec.err != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestDisplay(t *testing.T) {
	r := AnswerResult{Text: "パリです。", Elapsed: 1234 * time.Millisecond}
	want := "--- Sage ---\nパリです。\n------------------------------------------\n(elapsed: 1.23 seconds)"
	if got := r.Display(); got != want {
		t.Fatalf("unexpected display:\n got %q\nwant %q", got, want)
	}
	if math.Abs(r.ElapsedSeconds()-1.234) > 1e-9 {
		t.Fatalf("unexpected seconds %f", r.ElapsedSeconds())
	}
}

func TestCompletionRequestCopiesStopSequences(t *testing.T) {
	req := CompletionRequest("p")
	req.Stop[0] = "changed"
	if StopSequences[0] != "###" {
		t.Fatal("request shares the package stop slice")
	}
}
