package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/console"
	"github.com/mwiater/sage/internal/rag"
)

// newModelServer fakes llama-server and records each completion prompt.
func newModelServer(t *testing.T, hits *int32, prompts *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/v1/completions":
			var payload struct {
				Prompt string `json:"prompt"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode completion payload: %v", err)
			}
			*prompts = append(*prompts, payload.Prompt)
			_, _ = w.Write([]byte(`{"model":"swallow","choices":[{"text":" パリです。 ","finish_reason":"stop"}],"usage":{"prompt_tokens":40,"completion_tokens":3}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rag.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func TestBootstrapAnswersFromCorpus(t *testing.T) {
	color.NoColor = true
	var hits int32
	var prompts []string
	srv := newModelServer(t, &hits, &prompts)

	cfg := &appconfig.Config{
		Model:  appconfig.ModelConfig{URL: srv.URL, Name: "swallow"},
		Corpus: writeCorpus(t, "りんごは赤い果物です。\n\nパリはフランスの首都です。"),
	}
	var out bytes.Buffer
	a, err := Bootstrap(context.Background(), cfg, console.New(&out))
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	defer a.Close()

	if a.Store.Len() != 2 {
		t.Fatalf("expected 2 passages, got %d", a.Store.Len())
	}
	for _, want := range []string{"Reading corpus", "2 passages", "model loaded", "knowledge store ready"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in startup output:\n%s", want, out.String())
		}
	}

	res, err := a.Pipeline.Answer(context.Background(), "フランスの首都は?")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if res.Text != "パリです。" {
		t.Fatalf("unexpected answer %q", res.Text)
	}
	if len(prompts) != 1 || !strings.Contains(prompts[0], "パリはフランスの首都です。\n\nりんごは赤い果物です。") {
		t.Fatalf("expected both passages ranked into the prompt, got %q", prompts)
	}
}

func TestBootstrapMissingCorpusNeverTouchesModel(t *testing.T) {
	var hits int32
	var prompts []string
	srv := newModelServer(t, &hits, &prompts)

	cfg := &appconfig.Config{
		Model:  appconfig.ModelConfig{URL: srv.URL},
		Corpus: filepath.Join(t.TempDir(), "missing.txt"),
	}
	_, err := Bootstrap(context.Background(), cfg, nil)
	if !errors.Is(err, rag.ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("model service was contacted %d times", hits)
	}
}

func TestBootstrapRecordsMetrics(t *testing.T) {
	var hits int32
	var prompts []string
	srv := newModelServer(t, &hits, &prompts)

	metricsPath := filepath.Join(t.TempDir(), "metrics.json")
	cfg := &appconfig.Config{
		Model:       appconfig.ModelConfig{URL: srv.URL, Name: "swallow"},
		Corpus:      writeCorpus(t, "alpha\n\nbeta"),
		Metrics:     true,
		MetricsFile: metricsPath,
	}
	a, err := Bootstrap(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if _, err := a.Pipeline.Answer(context.Background(), "alpha?"); err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if _, err := a.Pipeline.Answer(context.Background(), " "); err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	snap := a.Metrics.Snapshot()
	if snap.Answers.TotalRequests != 2 || snap.Answers.EmptyQuestions != 1 {
		t.Fatalf("unexpected answer stats: %+v", snap.Answers)
	}
	if _, err := os.Stat(metricsPath); err != nil {
		t.Fatalf("expected metrics file: %v", err)
	}
}

func TestBootstrapFailsWhenModelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &appconfig.Config{
		Model:          appconfig.ModelConfig{URL: srv.URL},
		Corpus:         writeCorpus(t, "alpha"),
		TimeoutSeconds: 1,
	}
	if _, err := Bootstrap(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected model readiness error")
	}
}

func TestBootstrapRetrievalSkipsModel(t *testing.T) {
	var hits int32
	var prompts []string
	srv := newModelServer(t, &hits, &prompts)

	cfg := &appconfig.Config{
		Model:  appconfig.ModelConfig{URL: srv.URL},
		Corpus: writeCorpus(t, "alpha beta\n\ngamma"),
	}
	a, err := BootstrapRetrieval(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("BootstrapRetrieval returned error: %v", err)
	}
	defer a.Close()

	if a.Pipeline != nil || a.Model != nil {
		t.Fatal("expected no model or pipeline")
	}
	results, err := a.Retriever.Retrieve(context.Background(), "gamma")
	if err != nil {
		t.Fatalf("Retrieve returned error: %v", err)
	}
	if results[0].Text != "gamma" {
		t.Fatalf("unexpected top passage %q", results[0].Text)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("model service was contacted %d times", hits)
	}
}
