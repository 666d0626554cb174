package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/54b3r/forumrag-go/internal/eval"
)

// openTestStore opens an in-memory SQLiteStore with a controllable clock.
func openTestStore(t *testing.T) (*SQLiteStore, *time.Time) {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func sampleRun(k int, recall float64) Run {
	return Run{
		K:          k,
		Embedder:   "ollama/nomic-embed-text",
		Collection: "forum_posts",
		Summary: eval.Summary{
			Queries:    3,
			MeanRecall: recall,
			HitRate:    2.0 / 3.0,
			PerLabel: []eval.LabelStats{
				{Label: "homelab", Count: 2, MeanRecall: 0.5, HitRate: 1},
				{Label: "LocalLLaMA", Count: 1, MeanRecall: 0.25, HitRate: 0},
			},
		},
	}
}

func Test_Store_SaveAndRecent(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	run := sampleRun(20, 0.41)
	id, err := s.Save(ctx, run)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id <= 0 {
		t.Errorf("save returned id %d", id)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("want 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != id || got.K != 20 || got.Embedder != run.Embedder || got.Collection != run.Collection {
		t.Errorf("run header = %+v", got)
	}
	if !got.CreatedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
	if !reflect.DeepEqual(got.Summary, run.Summary) {
		t.Errorf("summary = %+v, want %+v", got.Summary, run.Summary)
	}
}

func Test_Store_RecentNewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	s, clock := openTestStore(t)
	ctx := context.Background()

	for i := range 4 {
		*clock = clock.Add(time.Minute)
		if _, err := s.Save(ctx, sampleRun(i+1, float64(i)/10)); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("want 2 runs, got %d", len(runs))
	}
	if runs[0].K != 4 || runs[1].K != 3 {
		t.Errorf("order: got k=%d,%d want 4,3", runs[0].K, runs[1].K)
	}
	for _, r := range runs {
		if len(r.Summary.PerLabel) != 2 || r.Summary.PerLabel[0].Label != "homelab" {
			t.Errorf("run %d per-label = %+v", r.ID, r.Summary.PerLabel)
		}
	}
}

func Test_Store_EmptyAndNoLabels(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	runs, err := s.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", runs)
	}

	if _, err := s.Save(ctx, Run{K: 20, Summary: eval.Summary{PerLabel: nil}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	runs, _ = s.Recent(ctx, 5)
	if len(runs) != 1 || runs[0].Summary.PerLabel == nil || len(runs[0].Summary.PerLabel) != 0 {
		t.Errorf("run without labels = %+v", runs)
	}
}

func Test_Store_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "evals.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Save(ctx, sampleRun(10, 0.3)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	runs, err := s.Recent(ctx, 1)
	if err != nil || len(runs) != 1 || runs[0].K != 10 {
		t.Errorf("after reopen: runs=%+v err=%v", runs, err)
	}
}
