package post

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func postText(title string) string {
	return "Post Title: " + title + "\nScore: 3\n\nPost Content:\nbody of " + title +
		"\n\nTop 2 comments:\n\nComment 1:\nScore: 1\nComment: low\n\nComment 2:\nScore: 5\nComment: high"
}

func TestFiles_PatternPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		files       []string
		wantPattern string
		wantFiles   []string
	}{
		{
			name:        "post_ prefix wins",
			files:       []string{"scrape_a/post_1.txt", "scrape_a/postx.txt", "notes.txt", "readme.md"},
			wantPattern: "post_*.txt",
			wantFiles:   []string{"scrape_a/post_1.txt"},
		},
		{
			name:        "post prefix without underscore",
			files:       []string{"b/post9.txt", "b/other.txt"},
			wantPattern: "post*.txt",
			wantFiles:   []string{"b/post9.txt"},
		},
		{
			name:        "any txt",
			files:       []string{"b/z.txt", "a/y.txt", "c/x.md"},
			wantPattern: "*.txt",
			wantFiles:   []string{"a/y.txt", "b/z.txt"},
		},
		{
			name:        "markdown fallback",
			files:       []string{"deep/nested/dir/x.md", "image.png"},
			wantPattern: "*.md",
			wantFiles:   []string{"deep/nested/dir/x.md"},
		},
		{
			name:        "nothing matches",
			files:       []string{"image.png"},
			wantPattern: "",
			wantFiles:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, filepath.Join(root, f), "x")
			}

			got, pattern, err := Files(root)
			if err != nil {
				t.Fatalf("Files() unexpected error: %v", err)
			}
			if pattern != tt.wantPattern {
				t.Errorf("pattern: got %q, want %q", pattern, tt.wantPattern)
			}
			if len(got) != len(tt.wantFiles) {
				t.Fatalf("files: got %v, want %v", got, tt.wantFiles)
			}
			for i, f := range tt.wantFiles {
				if want := filepath.Join(root, f); got[i] != want {
					t.Errorf("files[%d]: got %q, want %q", i, got[i], want)
				}
			}
		})
	}
}

func TestFiles_MissingRoot(t *testing.T) {
	t.Parallel()

	_, _, err := Files(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Files() on missing root: got %v, want os.ErrNotExist", err)
	}
}

func TestLoadAll(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "scrape_homelab", "post_b.txt"), postText("second"))
	writeFile(t, filepath.Join(root, "scrape_homelab", "post_a.txt"), postText("first"))
	writeFile(t, filepath.Join(root, "scrape_selfhosted", "post_c.txt"), postText("third"))
	writeFile(t, filepath.Join(root, "scrape_selfhosted", "post_junk.txt"), "no structure here")

	records, err := LoadAll(context.Background(), root, 1)
	if err != nil {
		t.Fatalf("LoadAll() unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3 (junk file skipped)", len(records))
	}

	wantTitles := []string{"first", "second", "third"}
	wantGroups := []string{"homelab", "homelab", "selfhosted"}
	for i, rec := range records {
		if rec.Title != wantTitles[i] {
			t.Errorf("records[%d].Title: got %q, want %q", i, rec.Title, wantTitles[i])
		}
		if rec.SourceGroup != wantGroups[i] {
			t.Errorf("records[%d].SourceGroup: got %q, want %q", i, rec.SourceGroup, wantGroups[i])
		}
		if rec.Score != 3 {
			t.Errorf("records[%d].Score: got %d, want 3", i, rec.Score)
		}
		if len(rec.Comments) != 1 || rec.Comments[0].Text != "high" {
			t.Errorf("records[%d].Comments: got %+v, want only the top comment", i, rec.Comments)
		}
		if rec.Path == "" {
			t.Errorf("records[%d].Path is empty", i)
		}
	}
}

func TestLoadAll_EmptyResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		root func(t *testing.T) string
	}{
		{
			name: "missing root",
			root: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
		},
		{
			name: "no matching files",
			root: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, filepath.Join(dir, "a.json"), "{}")
				return dir
			},
		},
		{
			name: "only unusable files",
			root: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, filepath.Join(dir, "post_1.txt"), "")
				return dir
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			records, err := LoadAll(context.Background(), tt.root(t), DefaultTopK)
			if err != nil {
				t.Fatalf("LoadAll() unexpected error: %v", err)
			}
			if records == nil || len(records) != 0 {
				t.Errorf("records: got %#v, want empty non-nil slice", records)
			}
		})
	}
}

func TestLoadAll_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "post_1.txt"), postText("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadAll(ctx, root, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadAll() with cancelled context: got %v, want context.Canceled", err)
	}
}

func TestParseFile_InvalidUTF8(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scrape_x", "post_1.txt")
	writeFile(t, path, "Post Title: bad \xff byte\nPost Content:\nok")

	p, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() unexpected error: %v", err)
	}
	if p.Title != "bad \uFFFD byte" {
		t.Errorf("Title: got %q", p.Title)
	}
	if p.SourceGroup != "x" {
		t.Errorf("SourceGroup: got %q, want %q", p.SourceGroup, "x")
	}
}
