package post

import (
	"fmt"
	"strings"
)

// Format renders p in the scraped-post text format read by Parse. Nil
// integers are written as 0. The comments section header always reports the
// number of comments actually written.
func Format(p *Post) string {
	lines := []string{
		fieldTitle + " " + p.Title,
		fieldAuthor + " " + p.Author,
		fmt.Sprintf("%s %d", fieldScore, intOrZero(p.Score)),
		fieldURL + " " + p.URL,
		fmt.Sprintf("%s %d", fieldCommentCount, intOrZero(p.CommentCount)),
		fieldCreated + " " + p.CreatedAt,
		"\nPost Content:",
		p.Body,
		fmt.Sprintf("\n\nTop %d comments:", len(p.Comments)),
	}

	for i, c := range p.Comments {
		lines = append(lines,
			fmt.Sprintf("\nComment %d:", i+1),
			fieldAuthor+" "+c.Author,
			fmt.Sprintf("%s %d", fieldScore, intOrZero(c.Score)),
			fieldCreated+" "+c.CreatedAt,
			fieldComment+" "+c.Text,
		)
	}

	return strings.Join(lines, "\n")
}
