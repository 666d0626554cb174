// Package audit logs every CLI command invocation with its config file and the
// effective environment, grouped by concern. Secret values are never logged;
// only whether they are set.
package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// group is one concern's environment variables as they appear in the audit
// entry. Names ending in a secret suffix are redacted.
type group struct {
	name string
	keys []string
}

var groups = []group{
	{"llm", []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "OPENAI_API_KEY", "OPENAI_MODEL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
		"GOOGLE_API_KEY", "GEMINI_MODEL", "AWS_REGION", "BEDROCK_MODEL_ID", "BEDROCK_API_KEY",
	}},
	{"embedding", []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS", "EMBEDDING_DEVICE",
		"EMBEDDING_API_KEY", "REDIS_ADDR", "REDIS_PASSWORD",
	}},
	{"store", []string{
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "QDRANT_API_KEY", "FORUMRAG_EVAL_DB",
	}},
	{"server", []string{"FORUMRAG_HOST", "FORUMRAG_PORT", "FORUMRAG_API_KEY"}},
	{"telemetry", []string{"LOG_LEVEL", "LOG_FORMAT", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}},
}

// secretSuffixes mark a variable whose value is a credential.
var secretSuffixes = []string{"_API_KEY", "_PASSWORD", "_SECRET_KEY", "_PUBLIC_KEY", "_TOKEN", "_SECRET_ACCESS_KEY"}

// LogCommandStart writes one INFO entry for a starting command.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(groups)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", displayPath(configPath)),
	)
	for _, g := range groups {
		vals := make([]any, 0, len(g.keys))
		for _, k := range g.keys {
			vals = append(vals, slog.String(k, SanitiseKey(k, os.Getenv(k))))
		}
		attrs = append(attrs, slog.Group(g.name, vals...))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns the loggable form of an environment value: "unset" when
// empty, "set" for credentials, otherwise the value itself.
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return "unset"
	case isSecret(key):
		return "set"
	}
	return value
}

func isSecret(key string) bool {
	for _, s := range secretSuffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// displayPath shortens paths under the home directory to "~/...".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if rel, err := filepath.Rel(home, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("~", rel)
	}
	return p
}
