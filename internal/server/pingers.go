package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/provider"
)

// prompter is the one-shot generation used when a backend has no cheap
// health endpoint. *provider.Generator satisfies it.
type prompter interface {
	Generate(ctx context.Context, prompt, modelID string) (string, error)
}

// LLMPinger probes the chat backend for GET /api/ready.
type LLMPinger struct {
	check provider.HealthChecker
	gen   prompter
	name  string
}

// NewLLMPinger builds a pinger for the named backend. check may be nil, in
// which case Ping spends a one-token Generate call through gen.
func NewLLMPinger(check provider.HealthChecker, gen prompter, name string) *LLMPinger {
	return &LLMPinger{check: check, gen: gen, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the LLM backend.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.check != nil {
		if err := p.check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.gen == nil {
		return errors.New("no health check or generator configured")
	}

	logging.FromContext(ctx).Debug("pinger: using Generate-based health check", slog.String("backend", p.name))
	if _, err := p.gen.Generate(ctx, "ping", ""); err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	return nil
}

// storePinger is satisfied by *rag.QdrantStore.
type storePinger interface {
	Ping(ctx context.Context) error
}

// QdrantPinger probes the vector store for GET /api/ready.
type QdrantPinger struct {
	store storePinger
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(store storePinger) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the store's health check.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// funcPinger adapts a plain probe function.
type funcPinger struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncPinger wraps fn as a Pinger reported under name.
func NewFuncPinger(name string, fn func(ctx context.Context) error) Pinger {
	return &funcPinger{name: name, fn: fn}
}

func (p *funcPinger) Name() string                   { return p.name }
func (p *funcPinger) Ping(ctx context.Context) error { return p.fn(ctx) }
