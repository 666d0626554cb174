package provider

import (
	"context"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// ConfigFromEnv reads the generator configuration. MODEL_PROVIDER selects
// the backend (default ollama); the others are read but only the selected
// one is validated.
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3.2:3b)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o-mini), OPENAI_BASE_URL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Bedrock: AWS_REGION (default: us-east-1), BEDROCK_MODEL_ID, BEDROCK_API_KEY, BEDROCK_BASE_URL
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-flash)
//
//	Shared:  MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama))),
		Ollama: ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "llama3.2:3b"),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Bedrock: ProviderBedrock{
			AWSRegion: getEnvOrDefault("AWS_REGION", "us-east-1"),
			ModelID:   os.Getenv("BEDROCK_MODEL_ID"),
			APIKey:    os.Getenv("BEDROCK_API_KEY"),
			BaseURL:   os.Getenv("BEDROCK_BASE_URL"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Tuning: SharedTuning{
			MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 1024),
			Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		},
	}
}

// NewFromEnv builds a Generator from ConfigFromEnv. The config is returned so
// callers can log the backend and build a health checker.
func NewFromEnv() (*Generator, *Config, error) {
	cfg := ConfigFromEnv()
	g, err := NewGenerator(cfg)
	if err != nil {
		return nil, nil, err
	}
	return g, cfg, nil
}

// constructors maps each backend to the eino chat model it builds.
var constructors = map[Backend]func(context.Context, *Config) (model.BaseChatModel, error){
	BackendOllama:  newOllama,
	BackendOpenAI:  newOpenAI,
	BackendAzure:   newAzure,
	BackendBedrock: newBedrock,
	BackendGemini:  newGemini,
}

// New validates cfg and builds the chat model for its backend.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return constructors[cfg.Backend](ctx, cfg)
}

// envOr parses the named variable with parse, falling back when it is unset,
// empty or malformed.
func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out, err := parse(v)
	if err != nil {
		return fallback
	}
	return out
}

func getEnvOrDefault(key, fallback string) string {
	return envOr(key, fallback, func(v string) (string, error) { return v, nil })
}

func getEnvInt(key string, fallback int) int {
	return envOr(key, fallback, strconv.Atoi)
}

func getEnvFloat32(key string, fallback float32) float32 {
	return envOr(key, fallback, func(v string) (float32, error) {
		f, err := strconv.ParseFloat(v, 32)
		return float32(f), err
	})
}
