package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator produces text from a configured backend. It keeps one chat model
// per model id so a single run can compare several models on one backend.
// It is safe for concurrent use.
type Generator struct {
	cfg      *Config
	newModel func(ctx context.Context, cfg *Config) (model.BaseChatModel, error)

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

// NewGenerator validates cfg and returns a Generator. Chat models are built
// on first use.
func NewGenerator(cfg *Config) (*Generator, error) {
	if cfg == nil {
		return nil, errors.New("provider: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		newModel: New,
		models:   make(map[string]model.BaseChatModel),
	}, nil
}

// DefaultModel is the model id used when a call passes an empty id.
func (g *Generator) DefaultModel() string { return g.cfg.Model() }

// Backend is the configured backend.
func (g *Generator) Backend() Backend { return g.cfg.Backend }

func (g *Generator) chatModel(ctx context.Context, modelID string) (model.BaseChatModel, error) {
	if modelID == "" {
		modelID = g.cfg.Model()
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.models[modelID]; ok {
		return m, nil
	}
	m, err := g.newModel(ctx, g.cfg.WithModel(modelID))
	if err != nil {
		return nil, err
	}
	g.models[modelID] = m
	return m, nil
}

// Generate sends prompt as a single user message and returns the reply text.
// An empty modelID selects the configured model.
func (g *Generator) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	return g.Chat(ctx, []*schema.Message{schema.UserMessage(prompt)}, modelID)
}

// Chat sends msgs and returns the reply text.
func (g *Generator) Chat(ctx context.Context, msgs []*schema.Message, modelID string) (string, error) {
	m, err := g.chatModel(ctx, modelID)
	if err != nil {
		return "", err
	}
	resp, err := m.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: generate failed: %w", err)
	}
	if resp == nil {
		return "", errors.New("provider: generate returned nil response")
	}
	return resp.Content, nil
}

// Stream sends msgs and passes each non-empty content chunk to onChunk as it
// arrives. It returns the concatenated reply. An error from onChunk stops the
// stream and is returned.
func (g *Generator) Stream(ctx context.Context, msgs []*schema.Message, modelID string, onChunk func(string) error) (string, error) {
	m, err := g.chatModel(ctx, modelID)
	if err != nil {
		return "", err
	}
	sr, err := m.Stream(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("provider: stream failed: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf.String(), fmt.Errorf("provider: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if onChunk != nil {
			if err := onChunk(msg.Content); err != nil {
				return buf.String(), err
			}
		}
	}
	return buf.String(), nil
}
