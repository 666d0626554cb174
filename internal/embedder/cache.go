package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/rag"
)

const cacheKeyPrefix = "forumrag:emb:"

// Cache stores embedding vectors by key.
type Cache interface {
	// GetMany returns one entry per key; misses are nil.
	GetMany(ctx context.Context, keys []string) ([][]float32, error)
	// SetMany stores vectors[i] under keys[i].
	SetMany(ctx context.Context, keys []string, vectors [][]float32) error
}

// RedisConfig holds connection settings for RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL is the expiry of cached vectors. Zero keeps them forever.
	TTL time.Duration
}

// RedisCache implements Cache on a Redis server. Vectors are stored as
// little-endian float32 bytes.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with a PING.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("embedder: redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisCache{rdb: rdb, ttl: cfg.TTL}, nil
}

// GetMany fetches all keys in one MGET.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) ([][]float32, error) {
	out := make([][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("embedder: redis mget: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[i] = decodeVector([]byte(s))
	}
	return out, nil
}

// SetMany writes all vectors in one pipeline.
func (c *RedisCache) SetMany(ctx context.Context, keys []string, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("embedder: %d keys but %d vectors", len(keys), len(vectors))
	}
	pipe := c.rdb.Pipeline()
	for i, k := range keys {
		pipe.Set(ctx, k, encodeVector(vectors[i]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("embedder: redis pipeline: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector returns nil for malformed input so it is treated as a miss.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// CachedEmbedder serves embeddings from a Cache and embeds only the misses.
// Concurrent single-text calls for the same text share one backend request.
// Cache failures are logged and treated as misses; backend failures are
// returned.
type CachedEmbedder struct {
	inner     rag.Embedder
	cache     Cache
	namespace string
	group     singleflight.Group
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCachedEmbedder wraps inner. namespace separates vectors of different
// models and dimensions sharing one cache.
func NewCachedEmbedder(inner rag.Embedder, cache Cache, namespace string) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, namespace: namespace}
}

// Namespace builds the cache namespace for a resolved configuration.
func Namespace(cfg Config) string {
	return fmt.Sprintf("%s/%s/%d", cfg.Backend, cfg.Model, cfg.Dimensions)
}

// Embed implements rag.Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := logging.FromContext(ctx)

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		log.Warn("embedder: cache read failed, embedding without cache", slog.Any("error", err))
		out = make([][]float32, len(texts))
	}

	var missIdx []int
	var missTexts []string
	for i, v := range out {
		if v == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	c.hits.Add(int64(len(texts) - len(missIdx)))
	c.misses.Add(int64(len(missIdx)))
	if len(missIdx) == 0 {
		return out, nil
	}

	var fresh [][]float32
	if len(missTexts) == 1 {
		v, err, _ := c.group.Do(keys[missIdx[0]], func() (any, error) {
			return c.inner.Embed(ctx, missTexts)
		})
		if err != nil {
			return nil, err
		}
		fresh = v.([][]float32)
	} else {
		fresh, err = c.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(missTexts), len(fresh))
	}

	missKeys := make([]string, len(missIdx))
	for j, i := range missIdx {
		out[i] = fresh[j]
		missKeys[j] = keys[i]
	}
	if err := c.cache.SetMany(ctx, missKeys, fresh); err != nil {
		log.Warn("embedder: cache write failed", slog.Any("error", err))
	}
	return out, nil
}

// Stats returns the number of cache hits and misses served so far.
func (c *CachedEmbedder) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}
