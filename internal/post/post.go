// Package post parses scraped community-forum posts from their flat text
// representation into structured records, and renders records back into that
// format. The text format is the one written by the scraper:
//
//	Post Title: <title>
//	Author: <author>
//	Score: <int>
//	URL: <url>
//	Number of comments: <int>
//	Created UTC: <timestamp>
//
//	Post Content:
//	<body, possibly multi-line>
//
//	Top <n> comments:
//
//	Comment 1:
//	Author: <author>
//	Score: <int>
//	Created UTC: <timestamp>
//	Comment: <text, possibly multi-line>
//
// Parsing is lenient: missing fields are defaulted rather than rejected.
package post

import (
	"sort"
	"strings"
)

// groupPrefix is stripped from directory names to obtain the source group.
// The scraper writes one directory per community named scrape_<community>.
const groupPrefix = "scrape_"

// DefaultTopK is the number of comments kept per post by LoadAll callers
// that do not choose their own bound.
const DefaultTopK = 4

// Comment is a single comment attached to a post.
type Comment struct {
	// Author is the comment author. Empty when the field was absent.
	Author string
	// Text is the comment body, trimmed.
	Text string
	// Score is the comment score. Nil when absent or unparseable.
	Score *int
	// CreatedAt is the raw creation timestamp. Empty when absent.
	CreatedAt string
}

// Post is one scraped post with its comments.
type Post struct {
	// SourceGroup is the community the post was scraped from, derived from
	// the enclosing directory name.
	SourceGroup string
	// Title is the post title. Empty when absent.
	Title string
	// Author is the post author. Empty when absent.
	Author string
	// Score is the post score. Nil when absent.
	Score *int
	// URL is the post link. Empty when absent.
	URL string
	// CommentCount is the comment count reported by the forum. Nil when absent.
	CommentCount *int
	// CreatedAt is the raw creation timestamp. Empty when absent.
	CreatedAt string
	// Body is the post text between the content and comments markers.
	Body string
	// Comments holds the parsed comments in file order.
	Comments []Comment
}

// ScoredComment is one element of a top-k comment selection.
type ScoredComment struct {
	Text  string
	Score int
}

// Record is the flattened form of a post used for embedding and storage.
type Record struct {
	// Path is the file the record was parsed from. Empty for records built
	// in memory.
	Path        string
	SourceGroup string
	Title       string
	Body        string
	URL         string
	// Score is the post score, zero when absent.
	Score    int
	Comments []ScoredComment
}

// TopK returns up to n comments ordered by descending score. Comments without
// a score rank below every scored comment; ties keep file order. The post is
// not modified.
func (p *Post) TopK(n int) []ScoredComment {
	if n <= 0 || len(p.Comments) == 0 {
		return []ScoredComment{}
	}

	ranked := make([]Comment, len(p.Comments))
	copy(ranked, p.Comments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankScore(ranked[i].Score) > rankScore(ranked[j].Score)
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]ScoredComment, 0, n)
	for _, c := range ranked[:n] {
		out = append(out, ScoredComment{
			Text:  strings.TrimSpace(c.Text),
			Score: intOrZero(c.Score),
		})
	}
	return out
}

// Record flattens the post, keeping its topK highest-scored comments.
func (p *Post) Record(topK int) Record {
	return Record{
		SourceGroup: p.SourceGroup,
		Title:       strings.TrimSpace(p.Title),
		Body:        strings.TrimSpace(p.Body),
		URL:         strings.TrimSpace(p.URL),
		Score:       intOrZero(p.Score),
		Comments:    p.TopK(topK),
	}
}

// SourceGroupFromDir derives the source group from a directory name.
func SourceGroupFromDir(name string) string {
	return strings.TrimPrefix(name, groupPrefix)
}

// GroupDir returns the directory name the scraper uses for a community.
func GroupDir(group string) string {
	return groupPrefix + group
}

// rankScore maps a missing score below every representable score.
func rankScore(s *int) int64 {
	if s == nil {
		return -1 << 63
	}
	return int64(*s)
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
