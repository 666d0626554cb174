// Package rag defines the retrieval components of forumrag: the post payload
// stored next to each vector, the search hit returned for a query, and the
// interfaces for embedding, vector storage and retrieval.
// Concrete implementations (Qdrant, in-memory) satisfy these interfaces so
// the ingest, answer and eval layers never depend on a specific backend.
package rag

import (
	"context"
)

// Comment is one top-scored comment stored with a post.
type Comment struct {
	Content string
	Score   int
}

// Post is the unit stored in the vector store: one scraped forum post with
// its highest-scored comments.
type Post struct {
	// ID is the point identifier. Empty IDs are derived with PostID.
	ID string

	// Subreddit is the community the post was scraped from. It is the
	// ground-truth label for retrieval evaluation.
	Subreddit string

	Title   string
	Content string
	URL     string

	// Score is the forum score of the post.
	Score int

	Comments []Comment
}

// Hit is one search result.
type Hit struct {
	Post

	// Similarity is the score assigned by the store (cosine similarity).
	Similarity float32

	// Fields holds every string-valued payload key of the stored point,
	// including ones this package does not model. Label extraction probes
	// it by name.
	Fields map[string]string
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher returns the k nearest stored posts for a query vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// VectorStore persists posts with their vectors and searches them.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	Searcher

	// Upsert stores or replaces posts. vectors[i] is the vector for posts[i].
	Upsert(ctx context.Context, posts []Post, vectors [][]float32) error

	// Count returns the number of stored posts.
	Count(ctx context.Context) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Retriever fetches the posts most relevant to a text query.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Hit, error)
}
