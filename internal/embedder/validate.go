package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat models
// which are not suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
}

// looksLikeChatModel reports whether the model name resembles a chat model
// rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check on a resolved configuration. It returns an
// error for settings that cannot work together and logs a warning when the
// model looks like a chat model.
//
// Call it before ingesting so operators get a clear error at startup rather
// than a failure halfway through the corpus.
func Validate(cfg Config, vectorSize uint64, log *slog.Logger) error {
	if cfg.Device == DeviceCPU && cfg.Backend != "ollama" {
		return fmt.Errorf("embedder: EMBEDDING_DEVICE=cpu only applies to the ollama backend, got %q", cfg.Backend)
	}
	if vectorSize > 0 && cfg.Dimensions > 0 && uint64(cfg.Dimensions) != vectorSize {
		return fmt.Errorf("embedder: embedding dimensions %d do not match vector store size %d; set EMBEDDING_DIMENSIONS", cfg.Dimensions, vectorSize)
	}
	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	return nil
}
