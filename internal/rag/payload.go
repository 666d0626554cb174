package rag

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written for every stored post.
const (
	FieldSubreddit = "subreddit"
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldURL       = "url"
	FieldScore     = "score"
	FieldComments  = "comments"
)

// PostID derives a stable UUID for a post from a key unique to it (its file
// path or URL), so re-ingesting the same corpus replaces points instead of
// duplicating them.
func PostID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// payload converts p into the Qdrant point payload.
func payload(p Post) map[string]any {
	comments := make([]any, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, map[string]any{
			FieldContent: c.Content,
			FieldScore:   c.Score,
		})
	}
	return map[string]any{
		FieldSubreddit: p.Subreddit,
		FieldTitle:     p.Title,
		FieldContent:   p.Content,
		FieldURL:       p.URL,
		FieldScore:     p.Score,
		FieldComments:  comments,
	}
}

// hitFromPayload decodes a stored point defensively: missing or mistyped
// keys become zero values.
func hitFromPayload(id string, similarity float32, p map[string]*qdrant.Value) Hit {
	h := Hit{
		Post:       Post{ID: id},
		Similarity: similarity,
		Fields:     make(map[string]string, len(p)),
	}
	for k, v := range p {
		if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			h.Fields[k] = s.StringValue
		}
	}

	h.Subreddit = h.Fields[FieldSubreddit]
	h.Title = h.Fields[FieldTitle]
	h.Content = h.Fields[FieldContent]
	h.URL = h.Fields[FieldURL]
	h.Score = intValue(p[FieldScore])

	for _, v := range p[FieldComments].GetListValue().GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			continue
		}
		h.Comments = append(h.Comments, Comment{
			Content: fields[FieldContent].GetStringValue(),
			Score:   intValue(fields[FieldScore]),
		})
	}
	return h
}

// intValue reads an integer payload value, accepting doubles and numeric
// strings written by other producers.
func intValue(v *qdrant.Value) int {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_IntegerValue:
		return int(k.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return int(k.DoubleValue)
	case *qdrant.Value_StringValue:
		n, _ := strconv.Atoi(k.StringValue)
		return n
	}
	return 0
}

// fields returns the string-valued payload keys of p, mirroring what
// hitFromPayload exposes for a stored point.
func fields(p Post) map[string]string {
	return map[string]string{
		FieldSubreddit: p.Subreddit,
		FieldTitle:     p.Title,
		FieldContent:   p.Content,
		FieldURL:       p.URL,
	}
}
