package llamaserver

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mwiater/sage/internal/appconfig"
)

func TestOptionsFromConfigDefaults(t *testing.T) {
	cfg := &appconfig.Config{Model: appconfig.ModelConfig{Managed: true}}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig returned error: %v", err)
	}
	want := []string{
		"-m", appconfig.DefaultModelPath,
		"-c", "4096",
		"-ngl", "999",
		"--host", "127.0.0.1",
		"--port", "8080",
	}
	if got := opts.Args(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", got, want)
	}
	if opts.Binary != "llama-server" {
		t.Fatalf("expected llama-server binary, got %s", opts.Binary)
	}
}

func TestOptionsFromConfigEnablesEmbeddingsOnSharedServer(t *testing.T) {
	layers := 0
	cfg := &appconfig.Config{
		Model: appconfig.ModelConfig{
			URL:         "http://127.0.0.1:9090",
			Path:        "models/swallow.gguf",
			ContextSize: 2048,
			GPULayers:   &layers,
		},
		Embedding: appconfig.EmbeddingConfig{Type: "llama.cpp"},
	}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig returned error: %v", err)
	}
	args := strings.Join(opts.Args(), " ")
	for _, want := range []string{"-m models/swallow.gguf", "-c 2048", "-ngl 0", "--port 9090", "--embeddings"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in args %q", want, args)
		}
	}
}

func TestStartFailsWithoutWeights(t *testing.T) {
	opts := Options{
		Binary:    "llama-server",
		ModelPath: filepath.Join(t.TempDir(), "missing.gguf"),
		Host:      "127.0.0.1",
		Port:      0,
	}
	_, err := Start(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "model weights not found") {
		t.Fatalf("expected missing weights error, got %v", err)
	}
}

func TestLineLoggerFlushesOnClose(t *testing.T) {
	l := newLineLogger("test")
	if _, err := l.Write([]byte("loading model\npartial")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestCloseNilServer(t *testing.T) {
	var s *Server
	if err := s.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
