//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}

	for _, device := range []Device{DeviceAuto, DeviceCPU} {
		t.Run(string(device), func(t *testing.T) {
			emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model, Device: device})

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			texts := []string{
				"My Proxmox cluster keeps losing quorum after a switch reboot.",
				"Which quantisation should I use for a 7B model on a 12GB GPU?",
			}
			embeddings, err := emb.Embed(ctx, texts)
			if err != nil {
				t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
			}
			if len(embeddings) != len(texts) {
				t.Fatalf("expected %d embeddings, got %d", len(texts), len(embeddings))
			}
			for i, vec := range embeddings {
				if len(vec) == 0 {
					t.Errorf("embedding[%d] is empty", i)
				}
			}

			identical := len(embeddings[0]) == len(embeddings[1])
			for j := 0; identical && j < len(embeddings[0]); j++ {
				identical = embeddings[0][j] == embeddings[1][j]
			}
			if identical {
				t.Error("embeddings[0] and embeddings[1] are identical; model may not be working correctly")
			}

			t.Logf("model=%s device=%s dim=%d (set EMBEDDING_DIMENSIONS=%d for the Qdrant collection)",
				model, device, len(embeddings[0]), len(embeddings[0]))
		})
	}
}

// TestRedisCache_Integration round-trips vectors through a live Redis.
// Set REDIS_ADDR (default localhost:6379).
func TestRedisCache_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, RedisConfig{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	defer cache.Close()

	keys := []string{cacheKeyPrefix + "it:a", cacheKeyPrefix + "it:b"}
	if err := cache.SetMany(ctx, keys[:1], [][]float32{{0.5, -0.25}}); err != nil {
		t.Fatalf("SetMany() failed: %v", err)
	}
	got, err := cache.GetMany(ctx, keys)
	if err != nil {
		t.Fatalf("GetMany() failed: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 || got[0][1] != -0.25 || got[1] != nil {
		t.Errorf("GetMany() = %v, want hit then miss", got)
	}
}
