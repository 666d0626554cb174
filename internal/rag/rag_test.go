package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	posts := []Post{
		{ID: PostID("a"), Subreddit: "homelab", Title: "rack"},
		{ID: PostID("b"), Subreddit: "LocalLLaMA", Title: "gguf"},
		{ID: PostID("c"), Subreddit: "homelab", Title: "nas"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}}
	if err := s.Upsert(context.Background(), posts, vectors); err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	return s
}

func TestMemoryStore_Search(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	tests := []struct {
		name       string
		vector     []float32
		k          int
		wantTitles []string
	}{
		{name: "nearest first", vector: []float32{1, 0}, k: 2, wantTitles: []string{"rack", "nas"}},
		{name: "k larger than corpus", vector: []float32{0, 1}, k: 10, wantTitles: []string{"gguf", "nas", "rack"}},
		{name: "zero k", vector: []float32{1, 0}, k: 0, wantTitles: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hits, err := s.Search(context.Background(), tt.vector, tt.k)
			if err != nil {
				t.Fatalf("Search() unexpected error: %v", err)
			}
			got := make([]string, 0, len(hits))
			for _, h := range hits {
				got = append(got, h.Title)
				if h.Fields[FieldSubreddit] != h.Subreddit {
					t.Errorf("Fields[subreddit] = %q, want %q", h.Fields[FieldSubreddit], h.Subreddit)
				}
			}
			if !reflect.DeepEqual(got, tt.wantTitles) {
				t.Errorf("titles: got %v, want %v", got, tt.wantTitles)
			}
		})
	}
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	t.Parallel()
	s := seededStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Post{{ID: PostID("a"), Subreddit: "homelab", Title: "rack v2"}}, [][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("Upsert() unexpected error: %v", err)
	}
	n, _ := s.Count(ctx)
	if n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
	hits, _ := s.Search(ctx, []float32{1, 0}, 1)
	if len(hits) != 1 || hits[0].Title != "rack v2" {
		t.Errorf("replaced post not returned: %+v", hits)
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	t.Parallel()
	s := seededStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, []Post{{Title: "x"}}, nil); err == nil {
		t.Error("Upsert() with mismatched lengths: expected error")
	}
	if err := s.Upsert(ctx, []Post{{Title: "x"}}, [][]float32{{1, 2, 3}}); err == nil {
		t.Error("Upsert() with wrong dimension: expected error")
	}
	if _, err := s.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("Search() with wrong dimension: expected error")
	}

	empty := NewMemoryStore()
	hits, err := empty.Search(ctx, []float32{1, 0}, 5)
	if err != nil || len(hits) != 0 {
		t.Errorf("Search() on empty store: got %v, %v", hits, err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	p := Post{
		Subreddit: "dataengineering",
		Title:     "dbt or sqlmesh",
		Content:   "thoughts?",
		URL:       "https://www.reddit.com/r/dataengineering/comments/1/",
		Score:     42,
		Comments: []Comment{
			{Content: "sqlmesh", Score: 10},
			{Content: "dbt", Score: -1},
		},
	}

	h := hitFromPayload("id-1", 0.5, qdrant.NewValueMap(payload(p)))

	want := p
	want.ID = "id-1"
	if !reflect.DeepEqual(h.Post, want) {
		t.Errorf("decoded post:\n got  %+v\n want %+v", h.Post, want)
	}
	if h.Similarity != 0.5 {
		t.Errorf("Similarity: got %v", h.Similarity)
	}
	if h.Fields[FieldURL] != p.URL {
		t.Errorf("url and score must be distinct fields, got url %q", h.Fields[FieldURL])
	}
	if _, ok := h.Fields[FieldScore]; ok {
		t.Error("integer score must not appear among string fields")
	}
}

func TestHitFromPayload_Defensive(t *testing.T) {
	t.Parallel()

	raw := qdrant.NewValueMap(map[string]any{
		"community": "homelab",
		"title":     7,
		"score":     "12",
		"comments":  "not a list",
	})
	h := hitFromPayload("", 0, raw)

	if h.Title != "" {
		t.Errorf("mistyped title: got %q, want empty", h.Title)
	}
	if h.Score != 12 {
		t.Errorf("string score: got %d, want 12", h.Score)
	}
	if len(h.Comments) != 0 {
		t.Errorf("comments: got %+v, want none", h.Comments)
	}
	if h.Fields["community"] != "homelab" {
		t.Errorf("unknown string keys must be kept in Fields, got %v", h.Fields)
	}

	if empty := hitFromPayload("", 0, nil); empty.Fields == nil {
		t.Error("Fields must be non-nil for an empty payload")
	}
}

func TestPostID(t *testing.T) {
	t.Parallel()

	if PostID("a") != PostID("a") {
		t.Error("PostID must be deterministic")
	}
	if PostID("a") == PostID("b") {
		t.Error("PostID must differ for different keys")
	}
}

func TestRetriever(t *testing.T) {
	t.Parallel()
	s := seededStore(t)

	emb := &fakeEmbedder{vectors: map[string][]float32{"server rack": {1, 0}}}
	r, err := NewRetriever(emb, s, 0)
	if err != nil {
		t.Fatalf("NewRetriever() unexpected error: %v", err)
	}

	hits, err := r.Retrieve(context.Background(), "server rack", 1)
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "rack" {
		t.Errorf("Retrieve(): got %+v", hits)
	}

	all, _ := r.Retrieve(context.Background(), "server rack", 0)
	if len(all) != 3 {
		t.Errorf("default k: got %d hits, want 3 (corpus size below default)", len(all))
	}

	if _, err := r.Retrieve(context.Background(), "unknown", 1); err == nil {
		t.Error("Retrieve() with empty embedding: expected error")
	}

	boom := errors.New("boom")
	failing, _ := NewRetriever(&fakeEmbedder{err: boom}, s, 1)
	if _, err := failing.Retrieve(context.Background(), "x", 1); !errors.Is(err, boom) {
		t.Errorf("Retrieve() error: got %v, want wrapped boom", err)
	}
}

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, NewMemoryStore(), 1); err == nil {
		t.Error("nil embedder: expected error")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 1); err == nil {
		t.Error("nil searcher: expected error")
	}
}
