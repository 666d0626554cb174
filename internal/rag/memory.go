package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. It backs tests and small corpora that do not warrant a Qdrant
// instance.
type MemoryStore struct {
	mu      sync.RWMutex
	posts   []Post
	vectors [][]float32
	index   map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Upsert stores posts, replacing any stored post with the same ID. All
// vectors must share the dimension of the first stored vector.
func (s *MemoryStore) Upsert(_ context.Context, posts []Post, vectors [][]float32) error {
	if len(posts) != len(vectors) {
		return fmt.Errorf("memory: %d posts but %d vectors", len(posts), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := 0
	if len(s.vectors) > 0 {
		dim = len(s.vectors[0])
	} else if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("memory: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	for i, p := range posts {
		if p.ID == "" {
			p.ID = PostID(p.URL + "\x00" + p.Title)
		}
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])

		if j, ok := s.index[p.ID]; ok {
			s.posts[j], s.vectors[j] = p, v
			continue
		}
		s.index[p.ID] = len(s.posts)
		s.posts = append(s.posts, p)
		s.vectors = append(s.vectors, v)
	}
	return nil
}

// Search returns up to k posts ordered by descending cosine similarity.
// Equal similarities keep insertion order.
func (s *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.posts) == 0 {
		return []Hit{}, nil
	}
	if len(vector) != len(s.vectors[0]) {
		return nil, fmt.Errorf("memory: query dimension %d, want %d", len(vector), len(s.vectors[0]))
	}

	scores := make([]float32, len(s.vectors))
	idxs := make([]int, len(s.vectors))
	for i, v := range s.vectors {
		scores[i] = cosine(v, vector)
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	if k > len(idxs) {
		k = len(idxs)
	}
	hits := make([]Hit, 0, k)
	for _, j := range idxs[:k] {
		p := s.posts[j]
		hits = append(hits, Hit{Post: p, Similarity: scores[j], Fields: fields(p)})
	}
	return hits, nil
}

// Count returns the number of stored posts.
func (s *MemoryStore) Count(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.posts)), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of a and b, 0 when either is a zero
// vector.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
