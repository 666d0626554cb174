package post

import (
	"reflect"
	"testing"
)

func TestTopK(t *testing.T) {
	t.Parallel()

	p := &Post{Comments: []Comment{
		{Text: "a", Score: intPtr(1)},
		{Text: "unscored first"},
		{Text: "b", Score: intPtr(10)},
		{Text: " c ", Score: intPtr(10)},
		{Text: "d", Score: intPtr(-5)},
		{Text: "unscored second"},
	}}

	tests := []struct {
		name string
		n    int
		want []ScoredComment
	}{
		{name: "zero", n: 0, want: []ScoredComment{}},
		{name: "negative", n: -1, want: []ScoredComment{}},
		{
			name: "ties keep file order",
			n:    2,
			want: []ScoredComment{{Text: "b", Score: 10}, {Text: "c", Score: 10}},
		},
		{
			name: "unscored rank last with zero score",
			n:    10,
			want: []ScoredComment{
				{Text: "b", Score: 10},
				{Text: "c", Score: 10},
				{Text: "a", Score: 1},
				{Text: "d", Score: -5},
				{Text: "unscored first", Score: 0},
				{Text: "unscored second", Score: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.TopK(tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopK(%d):\n got  %+v\n want %+v", tt.n, got, tt.want)
			}
		})
	}

	if p.Comments[0].Text != "a" || p.Comments[3].Text != " c " {
		t.Error("TopK must not reorder or modify the post's comments")
	}
}

func TestTopK_Bounds(t *testing.T) {
	t.Parallel()

	p := &Post{Comments: []Comment{
		{Text: "x", Score: intPtr(3)},
		{Text: "y", Score: intPtr(7)},
		{Text: "z"},
	}}
	for n := 0; n <= 5; n++ {
		got := p.TopK(n)
		want := n
		if want > len(p.Comments) {
			want = len(p.Comments)
		}
		if len(got) != want {
			t.Errorf("TopK(%d): got %d comments, want %d", n, len(got), want)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].Score < got[i].Score {
				t.Errorf("TopK(%d): not descending at %d: %+v", n, i, got)
			}
		}
	}

	empty := &Post{}
	if got := empty.TopK(4); len(got) != 0 {
		t.Errorf("TopK on post without comments: got %+v", got)
	}
}

func TestRecord(t *testing.T) {
	t.Parallel()

	p := &Post{
		SourceGroup: "homelab",
		Title:       "  Rack build  ",
		Body:        "\nphotos inside\n",
		URL:         " https://example.com/r/homelab/1 ",
		Comments: []Comment{
			{Text: "low", Score: intPtr(1)},
			{Text: "high", Score: intPtr(9)},
		},
	}

	got := p.Record(1)
	want := Record{
		SourceGroup: "homelab",
		Title:       "Rack build",
		Body:        "photos inside",
		URL:         "https://example.com/r/homelab/1",
		Score:       0,
		Comments:    []ScoredComment{{Text: "high", Score: 9}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Record():\n got  %+v\n want %+v", got, want)
	}
}

func TestGroupDir(t *testing.T) {
	t.Parallel()

	for _, group := range []string{"homelab", "LocalLLaMA", "scrape_x"} {
		if got := SourceGroupFromDir(GroupDir(group)); got != group {
			t.Errorf("SourceGroupFromDir(GroupDir(%q)) = %q", group, got)
		}
	}
}
