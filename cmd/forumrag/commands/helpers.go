package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/embedder"
	"github.com/54b3r/forumrag-go/internal/rag"
	"github.com/54b3r/forumrag-go/internal/store"
)

const (
	defaultScrapeDir  = "scrapes"
	defaultCollection = "forum_posts"
	defaultArtifact   = "embeddings.json"
)

// defaultCommunities are scraped when no community is named on the command line.
var defaultCommunities = []string{"MachineLearning", "LangChain", "huggingface", "homelab", "dataengineering"}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// stringFromEnv overwrites *dst with the env var key when the flag was not
// set explicitly. Flags are parsed before the config file is applied, so
// env-backed defaults are resolved here rather than at flag definition.
func stringFromEnv(cmd *cobra.Command, flag, key string, dst *string) {
	if v := os.Getenv(key); v != "" && !cmd.Flags().Changed(flag) {
		*dst = v
	}
}

// intFromEnv is stringFromEnv for integer flags. Unparsable values are ignored.
func intFromEnv(cmd *cobra.Command, flag, key string, dst *int) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// embedding bundles the embedder with its resolved config and the close
// function of any cache connection behind it.
type embedding struct {
	rag.Embedder
	cfg    embedder.Config
	cached *embedder.CachedEmbedder
	redis  *embedder.RedisCache
	close  func()
}

// stats logs cache effectiveness when the Redis cache is on.
func (e *embedding) stats(log *slog.Logger) {
	if e.cached == nil {
		return
	}
	hits, misses := e.cached.Stats()
	log.Info("embedding cache", slog.Int64("hits", hits), slog.Int64("misses", misses))
}

// buildEmbedder resolves and validates the embedder from the environment.
// The Qdrant collection is created with cfg.Dimensions, so no separate vector
// size is checked here. With REDIS_ADDR set the embedder is
// wrapped in a Redis-backed cache; an unreachable Redis only logs a warning.
func buildEmbedder(ctx context.Context, log *slog.Logger) (*embedding, error) {
	emb, cfg, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	if err := embedder.Validate(cfg, 0, log); err != nil {
		return nil, err
	}
	log.Info("embedder initialised",
		slog.String("backend", cfg.Backend),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", cfg.Dimensions),
	)

	out := &embedding{Embedder: emb, cfg: cfg, close: func() {}}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return out, nil
	}
	ttl, err := time.ParseDuration(getEnvOrDefault("REDIS_TTL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_TTL: %w", err)
	}
	cache, err := embedder.NewRedisCache(ctx, embedder.RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      ttl,
	})
	if err != nil {
		log.Warn("embedding cache disabled", slog.String("addr", addr), slog.Any("error", err))
		return out, nil
	}
	out.cached = embedder.NewCachedEmbedder(emb, cache, embedder.Namespace(cfg))
	out.Embedder = out.cached
	out.redis = cache
	out.close = func() { _ = cache.Close() }
	log.Info("embedding cache enabled", slog.String("addr", addr))
	return out, nil
}

// openQdrant connects to the collection named by QDRANT_COLLECTION, creating
// it with the embedder's dimensions if needed.
func openQdrant(ctx context.Context, log *slog.Logger, dimensions int) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)

	qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: uint64(dimensions), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return qs, nil
}

// openHistory opens the evaluation history database. FORUMRAG_EVAL_DB
// overrides the default path; "disabled" turns history off and returns nil.
// Failures are logged and also return nil: history is never required.
func openHistory(log *slog.Logger) store.HistoryStore {
	dbPath := os.Getenv("FORUMRAG_EVAL_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via FORUMRAG_EVAL_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		if dbPath, err = store.DefaultDBPath(); err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Debug("history: store opened", slog.String("path", dbPath))
	return hs
}
