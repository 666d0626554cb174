package post

import (
	"reflect"
	"testing"
)

func TestFormat_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		post Post
	}{
		{
			name: "full post",
			post: Post{
				SourceGroup:  "dataengineering",
				Title:        "Airflow vs Dagster in 2025",
				Author:       "pipeline_person",
				Score:        intPtr(87),
				URL:          "https://www.reddit.com/r/dataengineering/comments/x1/airflow/",
				CommentCount: intPtr(2),
				CreatedAt:    "1735000000.0",
				Body:         "We are migrating.\n\nWhich one would you pick?",
				Comments: []Comment{
					{Author: "a", Score: intPtr(30), CreatedAt: "1735000100.0", Text: "Dagster, for the asset model."},
					{Author: "b", Score: intPtr(-2), CreatedAt: "1735000200.0", Text: "Neither.\nUse cron."},
				},
			},
		},
		{
			name: "no comments",
			post: Post{
				SourceGroup:  "homelab",
				Title:        "Link only",
				Author:       "[deleted]",
				Score:        intPtr(0),
				CommentCount: intPtr(0),
				Body:         "[No content/Link only]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text := Format(&tt.post)
			got, err := Parse(text, GroupDir(tt.post.SourceGroup))
			if err != nil {
				t.Fatalf("Parse(Format()) unexpected error: %v\n%s", err, text)
			}
			if !reflect.DeepEqual(*got, tt.post) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v\ntext:\n%s", *got, tt.post, text)
			}
		})
	}
}

func TestFormat_NilIntsWrittenAsZero(t *testing.T) {
	t.Parallel()

	got, err := Parse(Format(&Post{Title: "t", Body: "b"}), "g")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if got.Score == nil || *got.Score != 0 {
		t.Errorf("Score: got %v, want 0", got.Score)
	}
	if got.CommentCount == nil || *got.CommentCount != 0 {
		t.Errorf("CommentCount: got %v, want 0", got.CommentCount)
	}
}
