// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// DefaultModelPath is the GGUF weights file launched when the model server is managed.
	DefaultModelPath = "tokyotech-llm-Swallow-13b-instruct-v0.1-Q4_K_M.gguf"
	// DefaultCorpusPath is the corpus read at startup when none is configured.
	DefaultCorpusPath = "rag.txt"
	// DefaultListenAddr is the loopback address the chat UI binds to.
	DefaultListenAddr = "127.0.0.1:7860"
	// DefaultContextSize is the model context window in tokens.
	DefaultContextSize = 4096
	// AllGPULayers offloads every layer of the model to the accelerator.
	AllGPULayers = -1
	// defaultTopK matches the default of the similarity index.
	defaultTopK = 4
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 600 * time.Second
	// defaultRetryDelay is the first backoff delay when model retries are enabled.
	defaultRetryDelay = time.Second
)

// Model service types.
const (
	TypeLlamaCpp = "llama.cpp"
	TypeOllama   = "ollama"
	TypeTFIDF    = "tfidf"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// ErrNonLoopbackListen is returned when the UI would be exposed beyond the local machine.
var ErrNonLoopbackListen = errors.New("listen address must be a loopback address")

// Config represents the top-level application configuration.
type Config struct {
	Model          ModelConfig     `json:"model" mapstructure:"model"`
	Embedding      EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
	Store          StoreConfig     `json:"store" mapstructure:"store"`
	Rag            RagConfig       `json:"rag" mapstructure:"rag"`
	Corpus         string          `json:"corpus,omitempty" mapstructure:"corpus"`
	Listen         string          `json:"listen,omitempty" mapstructure:"listen"`
	TimeoutSeconds int             `json:"timeout,omitempty" mapstructure:"timeout"`
	LogFile        string          `json:"logFile,omitempty" mapstructure:"logFile"`
	Debug          bool            `json:"debug" mapstructure:"debug"`
	Metrics        bool            `json:"metrics" mapstructure:"metrics"`
	MetricsFile    string          `json:"metricsFile,omitempty" mapstructure:"metricsFile"`
	ConfigPath     string          `json:"-" mapstructure:"-"`
}

// ModelConfig describes the text-completion service and, when managed, the local weights it serves.
type ModelConfig struct {
	Type         string `json:"type,omitempty" mapstructure:"type"`
	URL          string `json:"url,omitempty" mapstructure:"url"`
	Name         string `json:"name,omitempty" mapstructure:"name"`
	Path         string `json:"path,omitempty" mapstructure:"path"`
	Managed      bool   `json:"managed" mapstructure:"managed"`
	ServerBinary string `json:"serverBinary,omitempty" mapstructure:"serverBinary"`
	ContextSize  int    `json:"contextSize,omitempty" mapstructure:"contextSize"`
	GPULayers    *int   `json:"gpuLayers,omitempty" mapstructure:"gpuLayers"`
	MaxRetries   int    `json:"maxRetries,omitempty" mapstructure:"maxRetries"`
	RetryDelayMs int    `json:"retryDelayMs,omitempty" mapstructure:"retryDelayMs"`
}

// EmbeddingConfig selects the embedding backend used for both indexing and queries.
type EmbeddingConfig struct {
	Type  string `json:"type,omitempty" mapstructure:"type"`
	URL   string `json:"url,omitempty" mapstructure:"url"`
	Model string `json:"model,omitempty" mapstructure:"model"`
}

// StoreConfig selects where passage vectors are kept.
type StoreConfig struct {
	Backend    string `json:"backend,omitempty" mapstructure:"backend"`
	QdrantHost string `json:"qdrantHost,omitempty" mapstructure:"qdrantHost"`
	QdrantPort int    `json:"qdrantPort,omitempty" mapstructure:"qdrantPort"`
	Collection string `json:"collection,omitempty" mapstructure:"collection"`
}

// RagConfig holds retrieval settings.
type RagConfig struct {
	TopK int `json:"topK,omitempty" mapstructure:"topK"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "sage.log"
}

// MetricsFilePath returns where answer timing statistics are written.
func (c Config) MetricsFilePath() string {
	if path := strings.TrimSpace(c.MetricsFile); path != "" {
		return path
	}
	return "reports/data/answer_metrics.json"
}

// CorpusPath returns the corpus file path.
func (c Config) CorpusPath() string {
	if path := strings.TrimSpace(c.Corpus); path != "" {
		return path
	}
	return DefaultCorpusPath
}

// ListenAddr returns the host:port the chat UI binds to.
func (c Config) ListenAddr() string {
	if addr := strings.TrimSpace(c.Listen); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

// TopK returns the number of passages retrieved per question.
func (c Config) TopK() int {
	if c.Rag.TopK <= 0 {
		return defaultTopK
	}
	return c.Rag.TopK
}

// ModelType returns the normalized model service type.
func (c Config) ModelType() string {
	return normalizeType(c.Model.Type, TypeLlamaCpp)
}

// ModelURL returns the base URL of the model service.
func (c Config) ModelURL() string {
	if url := strings.TrimRight(strings.TrimSpace(c.Model.URL), "/"); url != "" {
		return url
	}
	return defaultURL(c.ModelType())
}

// ModelPath returns the weights file launched by a managed model server.
func (c Config) ModelPath() string {
	if path := strings.TrimSpace(c.Model.Path); path != "" {
		return path
	}
	return DefaultModelPath
}

// ModelName returns the model identifier sent with each request.
func (c Config) ModelName() string {
	if name := strings.TrimSpace(c.Model.Name); name != "" {
		return name
	}
	return c.ModelPath()
}

// ServerBinary returns the llama-server executable used when the model is managed.
func (c Config) ServerBinary() string {
	if bin := strings.TrimSpace(c.Model.ServerBinary); bin != "" {
		return bin
	}
	return "llama-server"
}

// ContextSize returns the model context window in tokens.
func (c Config) ContextSize() int {
	if c.Model.ContextSize <= 0 {
		return DefaultContextSize
	}
	return c.Model.ContextSize
}

// GPULayers returns the number of layers offloaded to the GPU; AllGPULayers means all of them.
func (c Config) GPULayers() int {
	if c.Model.GPULayers == nil {
		return AllGPULayers
	}
	return *c.Model.GPULayers
}

// RetryAttempts returns how many times a failed completion is retried.
func (c Config) RetryAttempts() int {
	if c.Model.MaxRetries < 0 {
		return 0
	}
	return c.Model.MaxRetries
}

// RetryDelay returns the first backoff delay between completion retries.
func (c Config) RetryDelay() time.Duration {
	if c.Model.RetryDelayMs <= 0 {
		return defaultRetryDelay
	}
	return time.Duration(c.Model.RetryDelayMs) * time.Millisecond
}

// EmbeddingType returns the normalized embedding backend type.
func (c Config) EmbeddingType() string {
	return normalizeType(c.Embedding.Type, TypeTFIDF)
}

// EmbeddingURL returns the embedding service URL, defaulting to the model service.
func (c Config) EmbeddingURL() string {
	if url := strings.TrimRight(strings.TrimSpace(c.Embedding.URL), "/"); url != "" {
		return url
	}
	if c.EmbeddingType() == c.ModelType() {
		return c.ModelURL()
	}
	return defaultURL(c.EmbeddingType())
}

// EmbeddingModel returns the model identifier used for embedding requests.
func (c Config) EmbeddingModel() string {
	if model := strings.TrimSpace(c.Embedding.Model); model != "" {
		return model
	}
	return c.ModelName()
}

// StoreBackend returns the normalized vector store backend.
func (c Config) StoreBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if backend == "" {
		return BackendMemory
	}
	return backend
}

// QdrantAddr returns the host:port of the Qdrant gRPC endpoint.
func (c Config) QdrantAddr() string {
	host := strings.TrimSpace(c.Store.QdrantHost)
	if host == "" {
		host = "localhost"
	}
	port := c.Store.QdrantPort
	if port <= 0 {
		port = 6334
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}

// QdrantCollection returns the collection rebuilt at startup.
func (c Config) QdrantCollection() string {
	if name := strings.TrimSpace(c.Store.Collection); name != "" {
		return name
	}
	return "sage_passages"
}

// Validate reports configuration values that cannot be served.
func (c Config) Validate() error {
	if err := checkLoopback(c.ListenAddr()); err != nil {
		return err
	}
	switch c.ModelType() {
	case TypeLlamaCpp, TypeOllama:
	default:
		return fmt.Errorf("unsupported model type %q", c.Model.Type)
	}
	switch c.EmbeddingType() {
	case TypeTFIDF, TypeLlamaCpp, TypeOllama:
	default:
		return fmt.Errorf("unsupported embedding type %q", c.Embedding.Type)
	}
	switch c.StoreBackend() {
	case BackendMemory, BackendQdrant:
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	if c.Model.Managed && c.ModelType() != TypeLlamaCpp {
		return fmt.Errorf("managed model server requires model type %q", TypeLlamaCpp)
	}
	return nil
}

func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNonLoopbackListen, addr)
	}
	return nil
}

func normalizeType(value, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return fallback
	case "llamacpp", "llama.cpp", "llama-cpp", "llama-server":
		return TypeLlamaCpp
	case "ollama":
		return TypeOllama
	case "tfidf", "tf-idf":
		return TypeTFIDF
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func defaultURL(kind string) string {
	if kind == TypeOllama {
		return "http://127.0.0.1:11434"
	}
	return "http://127.0.0.1:8080"
}
