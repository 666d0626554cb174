// Package config provides YAML-based configuration for forumrag.
// Configuration is layered: defaults, then a .env file, then the YAML file,
// then the process environment. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. FORUMRAG_CONFIG environment variable
//  3. ~/.forumrag/config.yaml
//  4. ./forumrag.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure. Every leaf field
// carries the environment variable it is projected onto in its env tag.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	// Redis is the optional shared embedding cache.
	Redis   RedisConfig   `yaml:"redis"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Eval    EvalConfig    `yaml:"eval"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	// Tracing holds the Langfuse credentials.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig selects and tunes the chat model used by ask and serve.
type ModelConfig struct {
	// Provider is one of ollama, openai, azure, bedrock, gemini.
	Provider    string  `yaml:"provider" env:"MODEL_PROVIDER"`
	MaxTokens   int     `yaml:"max_tokens" env:"MODEL_MAX_TOKENS"`
	Temperature float32 `yaml:"temperature" env:"MODEL_TEMPERATURE"`

	Ollama struct {
		Host  string `yaml:"host" env:"OLLAMA_HOST"`
		Model string `yaml:"model" env:"OLLAMA_MODEL"`
	} `yaml:"ollama"`

	OpenAI struct {
		APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
		Model   string `yaml:"model" env:"OPENAI_MODEL"`
		BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	} `yaml:"openai"`

	Azure struct {
		APIKey     string `yaml:"api_key" env:"AZURE_OPENAI_API_KEY"`
		Endpoint   string `yaml:"endpoint" env:"AZURE_OPENAI_ENDPOINT"`
		Deployment string `yaml:"deployment" env:"AZURE_OPENAI_DEPLOYMENT"`
		APIVersion string `yaml:"api_version" env:"AZURE_OPENAI_API_VERSION"`
	} `yaml:"azure"`

	Bedrock struct {
		Region  string `yaml:"region" env:"AWS_REGION"`
		ModelID string `yaml:"model_id" env:"BEDROCK_MODEL_ID"`
		BaseURL string `yaml:"base_url" env:"BEDROCK_BASE_URL"`
	} `yaml:"bedrock"`

	Gemini struct {
		APIKey string `yaml:"api_key" env:"GOOGLE_API_KEY"`
		Model  string `yaml:"model" env:"GEMINI_MODEL"`
	} `yaml:"gemini"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"EMBEDDING_PROVIDER"`
	Model      string `yaml:"model" env:"EMBEDDING_MODEL"`
	Dimensions int    `yaml:"dimensions" env:"EMBEDDING_DIMENSIONS"`
	APIKey     string `yaml:"api_key" env:"EMBEDDING_API_KEY"`
	Endpoint   string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT"`
	// Device is auto or cpu; cpu keeps Ollama off the GPU.
	Device    string `yaml:"device" env:"EMBEDDING_DEVICE"`
	BatchSize int    `yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE"`
	// Artifact is the JSON vector cache written by ingest.
	Artifact string `yaml:"artifact" env:"FORUMRAG_EMBEDDINGS"`
}

type QdrantConfig struct {
	Host       string `yaml:"host" env:"QDRANT_HOST"`
	Port       int    `yaml:"port" env:"QDRANT_PORT"`
	Collection string `yaml:"collection" env:"QDRANT_COLLECTION"`
	APIKey     string `yaml:"api_key" env:"QDRANT_API_KEY"`
	TLS        bool   `yaml:"tls" env:"QDRANT_TLS"`
}

// RedisConfig enables the embedding cache when Addr is set. TTL is a Go
// duration string; zero keeps entries forever.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	TTL      string `yaml:"ttl" env:"REDIS_TTL"`
}

type ScrapeConfig struct {
	OutputDir   string `yaml:"output_dir" env:"FORUMRAG_SCRAPE_DIR"`
	UserAgent   string `yaml:"user_agent" env:"REDDIT_USER_AGENT"`
	Limit       int    `yaml:"limit" env:"FORUMRAG_SCRAPE_LIMIT"`
	Window      string `yaml:"window" env:"FORUMRAG_SCRAPE_WINDOW"`
	TopComments int    `yaml:"top_comments" env:"FORUMRAG_TOP_COMMENTS"`
}

// EvalConfig configures the recall evaluator. DBPath "disabled" turns the
// run history off.
type EvalConfig struct {
	Queries string `yaml:"queries" env:"FORUMRAG_EVAL_QUERIES"`
	K       int    `yaml:"k" env:"FORUMRAG_EVAL_K"`
	DBPath  string `yaml:"db_path" env:"FORUMRAG_EVAL_DB"`
}

type ServerConfig struct {
	Host   string `yaml:"host" env:"FORUMRAG_HOST"`
	Port   int    `yaml:"port" env:"FORUMRAG_PORT"`
	APIKey string `yaml:"api_key" env:"FORUMRAG_API_KEY"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type TracingConfig struct {
	PublicKey string `yaml:"public_key" env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey string `yaml:"secret_key" env:"LANGFUSE_SECRET_KEY"`
	Host      string `yaml:"host" env:"LANGFUSE_HOST"`
}

// envPair is one non-zero config value and the variable it maps to.
type envPair struct {
	key, value string
}

// envPairs flattens cfg into its non-zero env-tagged leaves in declaration
// order.
func envPairs(cfg *Config) []envPair {
	var out []envPair
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		t := v.Type()
		for i := range t.NumField() {
			f, fv := t.Field(i), v.Field(i)
			if fv.Kind() == reflect.Struct {
				walk(fv)
				continue
			}
			key := f.Tag.Get("env")
			if key == "" || fv.IsZero() {
				continue
			}
			out = append(out, envPair{key, formatValue(fv)})
		}
	}
	walk(reflect.ValueOf(cfg).Elem())
	return out
}

// formatValue renders a scalar leaf the way the env readers parse it.
func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Int:
		return strconv.Itoa(int(v.Int()))
	case reflect.Float32:
		return float32Str(float32(v.Float()))
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.String()
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string, log *slog.Logger) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, p := range envPairs(&cfg) {
		if _, set := os.LookupEnv(p.key); set {
			continue
		}
		if err := os.Setenv(p.key, p.value); err != nil {
			return "", fmt.Errorf("config: set %s: %w", p.key, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists. An
// explicit path that does not exist resolves to "" rather than falling through.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if exists(explicit) {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("FORUMRAG_CONFIG"); envPath != "" && exists(envPath) {
		return envPath
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".forumrag", "config.yaml")
		if exists(p) {
			return p
		}
	}

	if exists("forumrag.yaml") {
		return "forumrag.yaml"
	}

	return ""
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// float32Str formats v without trailing zeros; zero renders as "".
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(float64(v), 'f', 4, 32), "0"), ".")
}

