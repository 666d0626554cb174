package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/forumrag-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of ollama, openai, azure.
	Backend    string
	Model      string
	Endpoint   string
	APIKey     string
	APIVersion string
	Dimensions int
	Device     Device
	BatchSize  int
}

// ConfigFromEnv resolves the embedding configuration, inheriting from the
// chat provider configuration when embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER, else ollama
//  2. per-backend credentials inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY and EMBEDDING_ENDPOINT override inherited values
//  5. EMBEDDING_DIMENSIONS overrides the default dimensions (ollama: 768, openai/azure: 1536)
//  6. EMBEDDING_DEVICE selects auto or cpu (ollama only)
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Backend:   getEnv("EMBEDDING_PROVIDER"),
		Model:     getEnv("EMBEDDING_MODEL"),
		Endpoint:  getEnv("EMBEDDING_ENDPOINT"),
		APIKey:    getEnv("EMBEDDING_API_KEY"),
		BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 0),
	}
	if cfg.Backend == "" {
		cfg.Backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
	}
	cfg.Dimensions = DefaultDimensions(cfg.Backend)

	device, err := ParseDevice(getEnv("EMBEDDING_DEVICE"))
	if err != nil {
		return Config{}, err
	}
	cfg.Device = device

	switch cfg.Backend {
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}

	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}

	case "azure":
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if cfg.Endpoint == "" {
			return Config{}, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}

	default:
		return Config{}, fmt.Errorf("embedder: unknown backend %q (valid: ollama, openai, azure)", cfg.Backend)
	}
	return cfg, nil
}

// New constructs the embedder described by cfg.
func New(cfg Config) (rag.Embedder, error) {
	switch cfg.Backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{
			Host:      cfg.Endpoint,
			Model:     cfg.Model,
			Device:    cfg.Device,
			BatchSize: cfg.BatchSize,
		}), nil
	case "openai":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	case "azure":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil
	default:
		return nil, fmt.Errorf("embedder: unknown backend %q", cfg.Backend)
	}
}

// NewFromEnv is ConfigFromEnv followed by New.
func NewFromEnv() (rag.Embedder, Config, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, Config{}, err
	}
	e, err := New(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	return e, cfg, nil
}

// DefaultDimensions returns the default embedding vector size for the given
// backend. Callers that pre-configure a vector store (Qdrant collection
// creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
