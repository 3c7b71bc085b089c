// internal/providers/ollama/provider.go
// Package ollama provides a ModelService backed by Ollama-compatible HTTP endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/logging"
	"github.com/mwiater/sage/internal/providers"
)

// Provider implements providers.ModelService and providers.Embedder using Ollama HTTP APIs.
type Provider struct {
	client      *http.Client
	baseURL     string
	model       string
	timeout     time.Duration
	contextSize int
	gpuLayers   int
}

// New constructs a completion Provider for the configured model service.
func New(cfg *appconfig.Config) *Provider {
	return newProvider(cfg, cfg.ModelURL(), cfg.ModelName())
}

// NewEmbedder constructs a Provider pointed at the configured embedding service.
func NewEmbedder(cfg *appconfig.Config) *Provider {
	return newProvider(cfg, cfg.EmbeddingURL(), cfg.EmbeddingModel())
}

func newProvider(cfg *appconfig.Config, baseURL, model string) *Provider {
	timeout := cfg.RequestTimeout()
	return &Provider{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		timeout:     timeout,
		contextSize: cfg.ContextSize(),
		gpuLayers:   cfg.GPULayers(),
	}
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	TotalDuration   int64  `json:"total_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EnsureModelReady triggers an empty generate request so Ollama loads the model into memory.
func (p *Provider) EnsureModelReady(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"model":   p.model,
		"options": p.options(nil, 0),
	})
	if err != nil {
		return err
	}
	_, err = p.post(ctx, "/api/generate", body)
	return err
}

// Complete sends a raw prompt to /api/generate. Ollama's prompt templating is
// bypassed so the instruction format reaches the model unchanged.
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	if req.Stream {
		return providers.CompletionResponse{}, providers.ErrStreamingUnsupported
	}
	if req.Echo {
		return providers.CompletionResponse{}, fmt.Errorf("ollama: echo is not supported by /api/generate")
	}

	body, err := json.Marshal(map[string]any{
		"model":   p.model,
		"prompt":  req.Prompt,
		"raw":     true,
		"stream":  false,
		"options": p.options(req.Stop, req.MaxTokens),
	})
	if err != nil {
		return providers.CompletionResponse{}, err
	}

	raw, err := p.post(ctx, "/api/generate", body)
	if err != nil {
		return providers.CompletionResponse{}, err
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return providers.CompletionResponse{}, fmt.Errorf("ollama: parse generate response: %w", err)
	}
	model := parsed.Model
	if model == "" {
		model = p.model
	}
	return providers.CompletionResponse{
		Text:             parsed.Response,
		Model:            model,
		FinishReason:     parsed.DoneReason,
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
		Duration:         time.Duration(parsed.TotalDuration),
	}, nil
}

// Embed requests an embedding vector from /api/embeddings.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	raw, err := p.post(ctx, "/api/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}
	return parsed.Embedding, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// options maps decoding controls onto Ollama's options object. A negative GPU
// layer count is left out so Ollama offloads every layer that fits.
func (p *Provider) options(stop []string, maxTokens int) map[string]any {
	options := map[string]any{
		"num_ctx": p.contextSize,
	}
	if p.gpuLayers >= 0 {
		options["num_gpu"] = p.gpuLayers
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	if len(stop) > 0 {
		options["stop"] = stop
	}
	return options
}

func (p *Provider) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	logging.LogRequest("SAGE->LLM", p.baseURL, p.model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest("LLM->SAGE", p.baseURL, p.model, raw)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

var (
	_ providers.ModelService = (*Provider)(nil)
	_ providers.Embedder     = (*Provider)(nil)
)
