// Package tracing attaches Langfuse tracing to every eino chat model call made
// by the rephrase and answer steps.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// Config selects the Langfuse project receiving traces.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	return Config{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether both keys are set.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup registers a global Langfuse callback handler when cfg is enabled and
// returns the flush function that must run before process exit. When tracing
// is disabled the returned flush is a no-op and enabled is false.
func Setup(cfg Config) (flush func(), enabled bool) {
	if !cfg.Enabled() {
		return func() {}, false
	}
	host := cfg.Host
	if host == "" {
		host = "http://localhost:3000"
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	callbacks.AppendGlobalHandlers(handler)
	return flusher, true
}
