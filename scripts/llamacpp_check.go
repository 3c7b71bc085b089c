// scripts/llamacpp_check.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mwiater/sage/internal/appconfig"
	"github.com/mwiater/sage/internal/pipeline"
	"github.com/mwiater/sage/internal/prompt"
	"github.com/mwiater/sage/internal/providers/llamacpp"
)

type llamaModel struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Path  string `json:"path"`
}

type modelsResponse struct {
	Data   []llamaModel `json:"data"`
	Models []llamaModel `json:"models"`
}

// Probes a running llama-server with the exact completion request sage sends.
func main() {
	configPath := flag.String("config", appconfig.DefaultConfigPath, "Path to config JSON")
	hostURL := flag.String("url", "", "Override llama.cpp server URL")
	contextText := flag.String("context", "パリはフランスの首都です。", "Context passage for the probe prompt")
	question := flag.String("question", "フランスの首都は?", "Question for the probe prompt")
	timeout := flag.Duration("timeout", 60*time.Second, "HTTP timeout")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *hostURL != "" {
		cfg.Model.URL = *hostURL
	}
	cfg.TimeoutSeconds = int(timeout.Seconds())

	fmt.Printf("Target server: %s\n", cfg.ModelURL())
	fmt.Printf("Target model: %s\n\n", cfg.ModelName())

	client := &http.Client{Timeout: *timeout}
	if err := checkModels(client, cfg.ModelURL()); err != nil {
		fmt.Fprintf(os.Stderr, "models check failed: %v\n", err)
	}

	if err := probeCompletion(cfg, *contextText, *question); err != nil {
		fmt.Fprintf(os.Stderr, "completion probe failed: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when it exists. A missing file yields defaults.
func loadConfig(path string) (*appconfig.Config, error) {
	cfg := &appconfig.Config{ConfigPath: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := appconfig.ValidateJSON(raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkModels(client *http.Client, baseURL string) error {
	fmt.Println("== /v1/models ==")
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/v1/models")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("Status: %s\n", resp.Status)
	fmt.Println("Raw:")
	fmt.Println(indentJSON(body))

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		fmt.Printf("Parse: %v\n\n", err)
		return nil
	}
	models := append(parsed.Data, parsed.Models...)
	fmt.Printf("Parsed models: %d\n", len(models))
	for _, m := range models {
		fmt.Printf("  - %s\n", modelDisplayName(m))
	}
	fmt.Println()
	return nil
}

func probeCompletion(cfg *appconfig.Config, contextText, question string) error {
	fmt.Println("== /v1/completions probe ==")
	provider := llamacpp.New(cfg)
	defer provider.Close()

	ctx := context.Background()
	if err := provider.EnsureModelReady(ctx); err != nil {
		return err
	}

	req := pipeline.CompletionRequest(prompt.Assemble(contextText, question))
	start := time.Now()
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Elapsed: %.2fs\n", time.Since(start).Seconds())
	fmt.Printf("Finish reason: %s\n", resp.FinishReason)
	fmt.Printf("Tokens: prompt=%d completion=%d\n", resp.PromptTokens, resp.CompletionTokens)
	fmt.Printf("Text: %s\n", strings.TrimSpace(resp.Text))
	return nil
}

func modelDisplayName(model llamaModel) string {
	for _, v := range []string{model.ID, model.Model, model.Path} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return "(unnamed)"
}

func indentJSON(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}
