package eval

import (
	"math"
	"reflect"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSummarize(t *testing.T) {
	t.Parallel()

	results := []QueryResult{
		{Label: "homelab", RecallAtK: 1.0, HitAtK: 1},
		{Label: "LocalLLaMA", RecallAtK: 0.25, HitAtK: 1},
		{Label: "homelab", RecallAtK: 0.5, HitAtK: 1},
		{Label: "LocalLLaMA", RecallAtK: 0, HitAtK: 0},
	}

	s := Summarize(results)
	if s.Queries != 4 {
		t.Errorf("Queries: got %d, want 4", s.Queries)
	}
	if !approx(s.MeanRecall, 1.75/4) {
		t.Errorf("MeanRecall: got %v, want %v", s.MeanRecall, 1.75/4)
	}
	if !approx(s.HitRate, 0.75) {
		t.Errorf("HitRate: got %v, want 0.75", s.HitRate)
	}

	if len(s.PerLabel) != 2 {
		t.Fatalf("PerLabel: got %d entries, want 2", len(s.PerLabel))
	}
	if s.PerLabel[0].Label != "homelab" || s.PerLabel[1].Label != "LocalLLaMA" {
		t.Errorf("PerLabel order: got %q, %q; want first-appearance order", s.PerLabel[0].Label, s.PerLabel[1].Label)
	}
	if h := s.PerLabel[0]; h.Count != 2 || !approx(h.MeanRecall, 0.75) || !approx(h.HitRate, 1) {
		t.Errorf("homelab stats: got %+v", h)
	}
	if l := s.PerLabel[1]; l.Count != 2 || !approx(l.MeanRecall, 0.125) || !approx(l.HitRate, 0.5) {
		t.Errorf("LocalLLaMA stats: got %+v", l)
	}
}

func TestSummarize_Identical(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0, 0.1, 1.0 / 3, 0.75, 1} {
		for _, n := range []int{1, 3, 20} {
			results := make([]QueryResult, n)
			for i := range results {
				results[i] = QueryResult{Label: "x", RecallAtK: r}
			}
			if got := Summarize(results).MeanRecall; !approx(got, r) {
				t.Errorf("Summarize(%d x %v).MeanRecall = %v", n, r, got)
			}
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	if s.Queries != 0 || s.MeanRecall != 0 || s.HitRate != 0 {
		t.Errorf("empty summary: got %+v", s)
	}
	if s.PerLabel == nil {
		t.Error("PerLabel must be non-nil")
	}
}

func TestWorst(t *testing.T) {
	t.Parallel()

	results := []QueryResult{
		{QueryText: "q0", RecallAtK: 0.5},
		{QueryText: "q1", RecallAtK: 0},
		{QueryText: "q2", RecallAtK: 1},
		{QueryText: "q3", RecallAtK: 0},
		{QueryText: "q4", RecallAtK: 0.5},
	}

	texts := func(rs []QueryResult) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.QueryText)
		}
		return out
	}

	tests := []struct {
		m    int
		want []string
	}{
		{m: 0, want: []string{}},
		{m: 2, want: []string{"q1", "q3"}},
		{m: 4, want: []string{"q1", "q3", "q0", "q4"}},
		{m: 10, want: []string{"q1", "q3", "q0", "q4", "q2"}},
	}
	for _, tt := range tests {
		if got := texts(Worst(results, tt.m)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Worst(%d) = %v, want %v", tt.m, got, tt.want)
		}
	}

	if results[1].QueryText != "q1" || results[2].QueryText != "q2" {
		t.Error("Worst must not reorder its input")
	}
}
