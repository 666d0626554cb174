package rag

import (
	"context"
	"fmt"
)

// DefaultRetriever implements Retriever by combining an Embedder and a
// Searcher. It embeds the query at retrieval time and delegates similarity
// search to the store.
type DefaultRetriever struct {
	embedder Embedder
	searcher Searcher

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever.
// defaultTopK sets the fallback result count when Retrieve is called with k=0.
func NewRetriever(embedder Embedder, searcher Searcher, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("rag: searcher must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &DefaultRetriever{
		embedder:    embedder,
		searcher:    searcher,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the k most similar posts.
// If k is 0 the defaultTopK configured at construction time is used.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = r.defaultTopK
	}

	vector, err := EmbedOne(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.searcher.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return hits, nil
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}
	return vectors[0], nil
}
