package eval

import (
	"testing"
)

func TestRecallAndHit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		truth      string
		retrieved  []string
		wantRecall float64
		wantHit    int
	}{
		{name: "mixed", truth: "a", retrieved: []string{"a", "a", "b", "a"}, wantRecall: 0.75, wantHit: 1},
		{name: "empty", truth: "a", retrieved: []string{}, wantRecall: 0, wantHit: 0},
		{name: "nil", truth: "a", retrieved: nil, wantRecall: 0, wantHit: 0},
		{name: "all match", truth: "x", retrieved: []string{"x", "x"}, wantRecall: 1, wantHit: 1},
		{name: "no match", truth: "x", retrieved: []string{"y", "z"}, wantRecall: 0, wantHit: 0},
		{name: "single match at end", truth: "x", retrieved: []string{"y", "y", "y", "x"}, wantRecall: 0.25, wantHit: 1},
		{name: "case sensitive", truth: "Homelab", retrieved: []string{"homelab"}, wantRecall: 0, wantHit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Recall(tt.truth, tt.retrieved); got != tt.wantRecall {
				t.Errorf("Recall() = %v, want %v", got, tt.wantRecall)
			}
			if got := Hit(tt.truth, tt.retrieved); got != tt.wantHit {
				t.Errorf("Hit() = %d, want %d", got, tt.wantHit)
			}
		})
	}
}

func TestRecallBounds(t *testing.T) {
	t.Parallel()

	labels := []string{"a", "b", "c"}
	// every retrieved list over {a,b,c} up to length 4
	var lists [][]string
	var gen func(prefix []string)
	gen = func(prefix []string) {
		lists = append(lists, append([]string(nil), prefix...))
		if len(prefix) == 4 {
			return
		}
		for _, l := range labels {
			gen(append(prefix, l))
		}
	}
	gen(nil)

	for _, retrieved := range lists {
		r := Recall("a", retrieved)
		if r < 0 || r > 1 {
			t.Fatalf("Recall(%v) = %v out of [0,1]", retrieved, r)
		}
		if (r == 0) != (len(retrieved) == 0 || Hit("a", retrieved) == 0) {
			t.Fatalf("Recall(%v) = %v inconsistent with Hit", retrieved, r)
		}
		member := false
		for _, l := range retrieved {
			member = member || l == "a"
		}
		if (Hit("a", retrieved) == 1) != member {
			t.Fatalf("Hit(%v) disagrees with membership", retrieved)
		}
	}
}

func TestExtractLabel(t *testing.T) {
	t.Parallel()

	fallbacks := []string{"source_group", "community"}
	tests := []struct {
		name   string
		fields map[string]string
		want   string
		wantOK bool
	}{
		{name: "primary wins", fields: map[string]string{"subreddit": "a", "source_group": "b"}, want: "a", wantOK: true},
		{name: "first fallback", fields: map[string]string{"community": "c", "source_group": "b"}, want: "b", wantOK: true},
		{name: "second fallback", fields: map[string]string{"community": "c"}, want: "c", wantOK: true},
		{name: "empty primary falls through", fields: map[string]string{"subreddit": "", "community": "c"}, want: "c", wantOK: true},
		{name: "none", fields: map[string]string{"title": "t"}, wantOK: false},
		{name: "nil map", fields: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractLabel(tt.fields, "subreddit", fallbacks)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractLabel() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	r := Score(LabeledQuery{Label: "a", Text: "q"}, nil)
	if r.RetrievedLabels == nil || len(r.RetrievedLabels) != 0 {
		t.Errorf("RetrievedLabels: got %#v, want empty non-nil", r.RetrievedLabels)
	}
	if r.RecallAtK != 0 || r.HitAtK != 0 {
		t.Errorf("empty retrieval: got recall %v hit %d", r.RecallAtK, r.HitAtK)
	}
	if r.QueryText != "q" || r.Label != "a" {
		t.Errorf("query fields not carried: %+v", r)
	}
}
