package post

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnusable is returned when a text carries neither a recognised metadata
// field nor a content marker, so no meaningful post can be built from it.
var ErrUnusable = errors.New("post: no recognisable post structure")

// Metadata field prefixes, matched against trimmed lines of the metadata block.
const (
	fieldTitle        = "Post Title:"
	fieldAuthor       = "Author:"
	fieldScore        = "Score:"
	fieldURL          = "URL:"
	fieldCommentCount = "Number of comments:"
	fieldCreated      = "Created UTC:"
	fieldComment      = "Comment:"
)

var metadataFields = []string{
	fieldTitle, fieldAuthor, fieldScore, fieldURL, fieldCommentCount, fieldCreated,
}

var (
	intPattern            = regexp.MustCompile(`-?\d+`)
	contentMarkerPattern  = regexp.MustCompile(`(?m)^[ \t]*Post Content:[ \t]*$`)
	commentsMarkerPattern = regexp.MustCompile(`(?:^|\n)\s*Top\s+\d+\s+comments:\s*(?:\n|$)`)
	commentSplitPattern   = regexp.MustCompile(`\n\s*Comment\s+\d+\s*:\s*(?:\n|$)`)
)

// ParseFile reads the file at path and parses it, taking the source group
// from the name of the directory that contains it. Invalid UTF-8 sequences
// are replaced rather than rejected.
func ParseFile(path string) (*Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("post: read %s: %w", path, err)
	}
	text := strings.ToValidUTF8(string(data), "\uFFFD")

	p, err := Parse(text, filepath.Base(filepath.Dir(path)))
	if err != nil {
		return nil, fmt.Errorf("post: parse %s: %w", path, err)
	}
	return p, nil
}

// Parse converts one scraped post text into a Post. groupName is the name of
// the enclosing directory; a leading "scrape_" is stripped from it.
//
// Missing fields are defaulted (empty string or nil). Parse only fails, with
// ErrUnusable, when the text has no metadata field and no content marker.
func Parse(raw, groupName string) (*Post, error) {
	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(raw)

	meta, rest, hasContent := splitContent(text)
	metaLines := nonEmptyLines(meta)

	if !hasContent && !hasAnyField(metaLines) {
		return nil, ErrUnusable
	}

	body, commentsBlock := splitComments(rest)

	p := &Post{
		SourceGroup: SourceGroupFromDir(groupName),
		Body:        body,
		Comments:    parseComments(commentsBlock),
	}
	p.Title, _ = field(metaLines, fieldTitle)
	p.Author, _ = field(metaLines, fieldAuthor)
	p.URL, _ = field(metaLines, fieldURL)
	p.CreatedAt, _ = field(metaLines, fieldCreated)
	if v, ok := field(metaLines, fieldScore); ok {
		p.Score = parseInt(v)
	}
	if v, ok := field(metaLines, fieldCommentCount); ok {
		p.CommentCount = parseInt(v)
	}

	return p, nil
}

// splitContent separates the metadata block from the body and comments.
// Without a content marker the whole text is metadata.
func splitContent(text string) (meta, rest string, found bool) {
	loc := contentMarkerPattern.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), "", false
	}
	return strings.TrimSpace(text[:loc[0]]), strings.TrimSpace(text[loc[1]:]), true
}

// splitComments separates body text from the comments block at the
// "Top <n> comments:" line.
func splitComments(rest string) (body, comments string) {
	loc := commentsMarkerPattern.FindStringIndex(rest)
	if loc == nil {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(rest[:loc[0]]), strings.TrimSpace(rest[loc[1]:])
}

// parseComments splits the block on "Comment <n>:" lines and parses each
// chunk. Anything before the first marker is discarded, as are chunks whose
// body is empty.
func parseComments(block string) []Comment {
	if block == "" {
		return nil
	}

	chunks := commentSplitPattern.Split("\n"+block, -1)
	var comments []Comment
	for _, chunk := range chunks[1:] {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if c, ok := parseComment(chunk); ok {
			comments = append(comments, c)
		}
	}
	return comments
}

// parseComment reads the fields of one comment chunk. The text after
// "Comment:" continues over following lines until another field line.
func parseComment(chunk string) (Comment, bool) {
	var (
		c      Comment
		text   []string
		inText bool
	)

	for _, ln := range strings.Split(chunk, "\n") {
		s := strings.TrimSpace(ln)
		switch {
		case strings.HasPrefix(s, fieldAuthor):
			c.Author = strings.TrimSpace(s[len(fieldAuthor):])
			inText = false
		case strings.HasPrefix(s, fieldScore):
			c.Score = parseInt(s)
			inText = false
		case strings.HasPrefix(s, fieldCreated):
			c.CreatedAt = strings.TrimSpace(s[len(fieldCreated):])
			inText = false
		case strings.HasPrefix(s, fieldComment):
			inText = true
			text = append(text, strings.TrimLeft(s[len(fieldComment):], " \t"))
		case inText:
			text = append(text, ln)
		}
	}

	c.Text = strings.TrimSpace(strings.Join(text, "\n"))
	return c, c.Text != ""
}

// field returns the trimmed value of the first line starting with prefix.
func field(lines []string, prefix string) (string, bool) {
	for _, ln := range lines {
		if strings.HasPrefix(ln, prefix) {
			return strings.TrimSpace(ln[len(prefix):]), true
		}
	}
	return "", false
}

func hasAnyField(lines []string) bool {
	for _, prefix := range metadataFields {
		if _, ok := field(lines, prefix); ok {
			return true
		}
	}
	return false
}

// nonEmptyLines splits s into trimmed, non-blank lines.
func nonEmptyLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// parseInt extracts the first signed integer in s.
func parseInt(s string) *int {
	m := intPattern.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}
