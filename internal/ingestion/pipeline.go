// Package ingestion implements the post ingestion pipeline: it embeds parsed
// post records, optionally reusing a persisted embedding artifact, and
// upserts the posts into the vector store.
// This pipeline is invoked by the `forumrag ingest` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/54b3r/forumrag-go/internal/embedcache"
	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/post"
	"github.com/54b3r/forumrag-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of posts embedded and upserted per round trip.
	// Defaults to 32 if zero.
	BatchSize int

	// MaxEmbedChars caps the text sent to the embedder per post, in runes.
	// Longer bodies are cut. Defaults to 8000 if zero.
	MaxEmbedChars int

	// ArtifactPath is the embedding artifact file. Empty disables it.
	ArtifactPath string

	// Reembed ignores an existing artifact and rewrites it.
	Reembed bool

	// Namespace identifies the embedding model (see embedder.Namespace).
	// An artifact written under another namespace is not reused.
	Namespace string
}

// Stats summarises one ingest run.
type Stats struct {
	Posts        int
	Embedded     int
	FromArtifact bool
	Duration     time.Duration
}

// Pipeline orchestrates the embed → upsert flow for a set of post records.
type Pipeline struct {
	embedder rag.Embedder
	store    rag.VectorStore
	cfg      *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxEmbedChars <= 0 {
		cfg.MaxEmbedChars = 8000
	}
	return &Pipeline{embedder: embedder, store: store, cfg: cfg}, nil
}

// Ingest embeds and stores records. Vectors come from the artifact when its
// manifest matches the namespace and the key and embed text of every record;
// otherwise every record is embedded and the
// artifact is rewritten. Embedding or store failures abort the run.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, records []post.Record, progress func(msg string)) (Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)
	start := time.Now()
	stats := Stats{Posts: len(records)}

	if len(records) == 0 {
		progress("no posts to ingest")
		return stats, nil
	}

	manifest := p.Manifest(records)
	vectors, fromArtifact := p.loadArtifact(ctx, manifest)
	stats.FromArtifact = fromArtifact
	if fromArtifact {
		progress(fmt.Sprintf("reusing %d embeddings from %s", len(vectors), p.cfg.ArtifactPath))
	} else {
		vectors = make([][]float32, 0, len(records))
	}

	for startIdx := 0; startIdx < len(records); startIdx += p.cfg.BatchSize {
		end := min(startIdx+p.cfg.BatchSize, len(records))
		batch := records[startIdx:end]

		if !fromArtifact {
			texts := make([]string, len(batch))
			for i, rec := range batch {
				texts[i] = p.EmbedText(rec)
			}
			embedded, err := p.embedder.Embed(ctx, texts)
			if err != nil {
				return stats, fmt.Errorf("ingestion: embedding posts %d-%d failed: %w", startIdx, end-1, err)
			}
			if len(embedded) != len(batch) {
				return stats, fmt.Errorf("ingestion: embedder returned %d vectors for %d posts", len(embedded), len(batch))
			}
			vectors = append(vectors, embedded...)
			stats.Embedded += len(batch)
		}

		posts := make([]rag.Post, len(batch))
		for i, rec := range batch {
			posts[i] = ToPost(rec)
		}
		if err := p.store.Upsert(ctx, posts, vectors[startIdx:end]); err != nil {
			return stats, fmt.Errorf("ingestion: upsert posts %d-%d failed: %w", startIdx, end-1, err)
		}
		progress(fmt.Sprintf("ingested %d/%d posts", end, len(records)))
	}

	if !fromArtifact && p.cfg.ArtifactPath != "" {
		if err := embedcache.Save(p.cfg.ArtifactPath, vectors, manifest); err != nil {
			return stats, err
		}
		log.Info("ingestion: embedding artifact written",
			slog.String("path", p.cfg.ArtifactPath),
			slog.Int("vectors", len(vectors)),
		)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// Manifest describes records as they would be embedded by this pipeline.
func (p *Pipeline) Manifest(records []post.Record) embedcache.Manifest {
	m := embedcache.Manifest{
		Namespace: p.cfg.Namespace,
		Entries:   make([]embedcache.Entry, len(records)),
	}
	for i, rec := range records {
		m.Entries[i] = embedcache.NewEntry(recordKey(rec), p.EmbedText(rec))
	}
	return m
}

// loadArtifact returns the stored vectors when they can be reused.
func (p *Pipeline) loadArtifact(ctx context.Context, want embedcache.Manifest) ([][]float32, bool) {
	if p.cfg.ArtifactPath == "" || p.cfg.Reembed {
		return nil, false
	}
	log := logging.FromContext(ctx)

	vectors, err := embedcache.LoadAligned(p.cfg.ArtifactPath, want)
	switch {
	case err == nil:
		return vectors, true
	case errors.Is(err, embedcache.ErrMisaligned):
		log.Warn("ingestion: embedding artifact is stale, re-embedding",
			slog.String("path", p.cfg.ArtifactPath),
			slog.Any("error", err),
		)
	case errors.Is(err, fs.ErrNotExist):
		log.Info("ingestion: no embedding artifact yet", slog.String("path", p.cfg.ArtifactPath))
	default:
		log.Warn("ingestion: embedding artifact unreadable, re-embedding",
			slog.String("path", p.cfg.ArtifactPath),
			slog.Any("error", err),
		)
	}
	return nil, false
}

// EmbedText is the text embedded for a record: its body, or its title when
// the body is empty, cut to MaxEmbedChars runes.
func (p *Pipeline) EmbedText(rec post.Record) string {
	text := rec.Body
	if text == "" {
		text = rec.Title
	}
	if utf8.RuneCountInString(text) > p.cfg.MaxEmbedChars {
		text = string([]rune(text)[:p.cfg.MaxEmbedChars])
	}
	return text
}

// ToPost converts a parsed record into the stored payload. The point ID is
// derived from the source file path, falling back to the URL. A record
// without a source group takes the community named in its URL.
func ToPost(rec post.Record) rag.Post {
	if rec.SourceGroup == "" {
		rec.SourceGroup = InferCommunity(rec.URL)
	}
	key := recordKey(rec)
	comments := make([]rag.Comment, len(rec.Comments))
	for i, c := range rec.Comments {
		comments[i] = rag.Comment{Content: c.Text, Score: c.Score}
	}

	p := rag.Post{
		Subreddit: rec.SourceGroup,
		Title:     rec.Title,
		Content:   rec.Body,
		URL:       rec.URL,
		Score:     rec.Score,
		Comments:  comments,
	}
	if key != "" {
		p.ID = rag.PostID(key)
	}
	return p
}

// recordKey is the source file path, or the URL for records without one.
func recordKey(rec post.Record) string {
	if rec.Path != "" {
		return rec.Path
	}
	return rec.URL
}
