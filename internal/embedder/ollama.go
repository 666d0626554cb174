package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Device selects where Ollama runs the embedding model.
type Device string

const (
	// DeviceAuto lets the server use an accelerator when one is available.
	DeviceAuto Device = "auto"
	// DeviceCPU disables GPU offload for the embedding model.
	DeviceCPU Device = "cpu"
)

// ParseDevice validates an EMBEDDING_DEVICE value. Empty means auto.
func ParseDevice(s string) (Device, error) {
	switch Device(s) {
	case "", DeviceAuto:
		return DeviceAuto, nil
	case DeviceCPU:
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("embedder: unknown EMBEDDING_DEVICE %q (valid: auto, cpu)", s)
	}
}

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required; Ollama runs locally.
type OllamaEmbedder struct {
	host   string
	model  string
	device Device
	// batchSize caps the number of texts per request; larger inputs are split.
	batchSize int
	client    *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Device selects GPU offload. Zero value means auto.
	Device Device
	// BatchSize is the maximum number of texts per request (default 64).
	BatchSize int
	// Timeout is the per-request timeout (default 60s).
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	e := &OllamaEmbedder{
		host:      cfg.Host,
		model:     cfg.Model,
		device:    cfg.Device,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if e.device == "" {
		e.device = DeviceAuto
	}
	if e.batchSize <= 0 {
		e.batchSize = 64
	}
	if e.client.Timeout <= 0 {
		e.client.Timeout = 60 * time.Second
	}
	return e
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string { return e.model }

type ollamaEmbedRequest struct {
	Model   string         `json:"model"`
	Input   []string       `json:"input"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body := ollamaEmbedRequest{Model: e.model, Input: texts}
	if e.device == DeviceCPU {
		body.Options = map[string]any{"num_gpu": 0}
	}

	var result ollamaEmbedResponse
	if err := postJSON(ctx, e.client, e.host+"/api/embed", nil, body, &result); err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}
