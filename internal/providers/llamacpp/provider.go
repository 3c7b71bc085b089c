// internal/providers/llamacpp/provider.go
// Package llamacpp provides a ModelService backed by llama.cpp's OpenAI-compatible HTTP API.
package llamacpp

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

// Provider implements providers.ModelService and providers.Embedder using llama-server HTTP APIs.
type Provider struct {
	client       *http.Client
	baseURL      string
	model        string
	timeout      time.Duration
	pollInterval time.Duration
	debug        bool
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
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		timeout:      timeout,
		pollInterval: 500 * time.Millisecond,
		debug:        cfg.Debug,
	}
}

// EnsureModelReady polls /health until llama-server reports the model as loaded.
// Servers without a health endpoint are assumed ready.
func (p *Provider) EnsureModelReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		ready, err := p.healthy(ctx)
		if err == nil && ready {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("llama.cpp: model %s did not become ready: %w", p.model, lastErr)
			}
			return fmt.Errorf("llama.cpp: model %s did not load before timeout", p.model)
		case <-ticker.C:
		}
	}
}

func (p *Provider) healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return true, nil
	case http.StatusServiceUnavailable:
		return false, nil
	default:
		return false, fmt.Errorf("llama.cpp: /health returned %s", resp.Status)
	}
}

// Complete sends a raw prompt to /v1/completions and returns the generated continuation.
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	if req.Stream {
		return providers.CompletionResponse{}, providers.ErrStreamingUnsupported
	}

	payload := map[string]any{
		"model":      p.model,
		"prompt":     req.Prompt,
		"max_tokens": req.MaxTokens,
		"echo":       req.Echo,
		"stream":     false,
	}
	if len(req.Stop) > 0 {
		payload["stop"] = req.Stop
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return providers.CompletionResponse{}, err
	}

	start := time.Now()
	raw, err := p.post(ctx, "/v1/completions", body)
	if err != nil {
		return providers.CompletionResponse{}, err
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return providers.CompletionResponse{}, fmt.Errorf("llama.cpp: parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return providers.CompletionResponse{}, fmt.Errorf("llama.cpp: completion response contained no choices")
	}

	model := parsed.Model
	if model == "" {
		model = p.model
	}
	return providers.CompletionResponse{
		Text:             parsed.Choices[0].Text,
		Model:            model,
		FinishReason:     parsed.Choices[0].FinishReason,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		Duration:         time.Since(start),
	}, nil
}

// Embed requests an embedding vector from /v1/embeddings.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": p.model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	raw, err := p.post(ctx, "/v1/embeddings", body)
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("llama.cpp: parse embedding response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("llama.cpp: embedding response returned empty vector")
	}
	return parsed.Data[0].Embedding, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if p.debug || path != "/v1/embeddings" {
		logging.LogRequest("SAGE->LLM", p.baseURL, p.model, body)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if p.debug || path != "/v1/embeddings" {
		logging.LogRequest("LLM->SAGE", p.baseURL, p.model, raw)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp: %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

var (
	_ providers.ModelService = (*Provider)(nil)
	_ providers.Embedder     = (*Provider)(nil)
)
