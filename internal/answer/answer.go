// Package answer grounds LLM answers in retrieved forum posts. A question is
// optionally rephrased into the register of a forum post, used to retrieve
// the nearest posts, and answered from a prompt built from those posts and
// their top comments.
package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/forumrag-go/internal/budget"
	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/rag"
)

// systemPrompt frames every grounded answer.
const systemPrompt = `You answer technical questions using discussions from community forums.
You are given a set of forum posts with their most upvoted comments, followed by a question.

Rules:
- Base the answer on the posts and comments. Prefer advice that several comments agree on.
- Higher comment scores mean the community found the comment more useful.
- If the posts do not cover the question, say so, then give a short general answer and mark it as such.
- Cite posts by their number, e.g. [2], when you use them.
- Be concise. Use short paragraphs or a list of steps.`

// rephraseTemplate asks the model to restate a question as a forum post.
const rephraseTemplate = `Rewrite the following question as the title and body of a short post that a user
might write on a technical community forum when asking about it. Keep every technical term.
Reply with the post text only, no preamble.

Question: %s`

// Generator is the text generation surface used by the Answerer.
// provider.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string) (string, error)
	Stream(ctx context.Context, msgs []*schema.Message, modelID string, onChunk func(string) error) (string, error)
}

// Config holds the dependencies required to construct an Answerer.
type Config struct {
	Retriever rag.Retriever
	Generator Generator

	// TopK is the number of posts retrieved per question. Defaults to 4.
	TopK int
	// Rephrase enables the question rewrite before retrieval.
	Rephrase bool
	// MaxComments caps the comments shown per post. Defaults to 4.
	MaxComments int
	// MaxContextTokens is the estimated input budget. Posts are dropped
	// lowest-ranked first to fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Result describes one answered question.
type Result struct {
	// SearchText is the text that was embedded for retrieval.
	SearchText string
	// Hits are the posts placed in the prompt, best first.
	Hits []rag.Hit
	// Dropped counts retrieved posts left out to fit the budget.
	Dropped int
	// Answer is the full generated answer.
	Answer string
}

// Answerer answers questions from retrieved posts.
type Answerer struct {
	retriever   rag.Retriever
	generator   Generator
	topK        int
	rephrase    bool
	maxComments int
	maxTokens   int
}

// New constructs an Answerer from cfg.
func New(cfg *Config) (*Answerer, error) {
	if cfg == nil || cfg.Retriever == nil {
		return nil, errors.New("answer: retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, errors.New("answer: generator must not be nil")
	}
	a := &Answerer{
		retriever:   cfg.Retriever,
		generator:   cfg.Generator,
		topK:        cfg.TopK,
		rephrase:    cfg.Rephrase,
		maxComments: cfg.MaxComments,
		maxTokens:   cfg.MaxContextTokens,
	}
	if a.topK <= 0 {
		a.topK = 4
	}
	if a.maxComments <= 0 {
		a.maxComments = 4
	}
	if a.maxTokens <= 0 {
		a.maxTokens = budget.DefaultMaxContextTokens
	}
	return a, nil
}

// Rephrase rewrites question as forum-post text with the given model.
func (a *Answerer) Rephrase(ctx context.Context, question, modelID string) (string, error) {
	out, err := a.generator.Generate(ctx, fmt.Sprintf(rephraseTemplate, question), modelID)
	if err != nil {
		return "", fmt.Errorf("answer: rephrase failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Answer retrieves posts for question and streams the grounded answer to w.
// A failed rephrase falls back to the raw question; retrieval and generation
// failures are returned.
func (a *Answerer) Answer(ctx context.Context, question, modelID string, w io.Writer) (Result, error) {
	log := logging.FromContext(ctx)
	res := Result{SearchText: question}

	if a.rephrase {
		text, err := a.Rephrase(ctx, question, modelID)
		switch {
		case err != nil:
			log.Warn("answer: rephrase failed, searching with the question", slog.Any("error", err))
		case text != "":
			res.SearchText = text
		}
	}

	hits, err := a.retriever.Retrieve(ctx, res.SearchText, a.topK)
	if err != nil {
		return res, fmt.Errorf("answer: retrieval failed: %w", err)
	}

	msgs, used := a.buildMessages(hits, question)
	res.Hits = hits[:used]
	res.Dropped = len(hits) - used
	if res.Dropped > 0 {
		log.Warn("budget: dropped posts to fit context window",
			slog.Int("dropped", res.Dropped),
			slog.Int("retained", used),
			slog.Int("max_tokens", a.maxTokens),
		)
	}

	res.Answer, err = a.generator.Stream(ctx, msgs, modelID, func(chunk string) error {
		if _, err := io.WriteString(w, chunk); err != nil {
			return fmt.Errorf("answer: write error: %w", err)
		}
		return nil
	})
	return res, err
}

// buildMessages renders the prompt and reports how many hits it kept.
func (a *Answerer) buildMessages(hits []rag.Hit, question string) ([]*schema.Message, int) {
	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(contextHeader + questionBlock(question)),
	}
	sections := make([]string, len(hits))
	for i, h := range hits {
		sections[i] = RenderPost(i+1, h, a.maxComments)
	}
	used := budget.Fit(fixed, sections, a.maxTokens)
	return BuildPrompt(sections[:used], question), used
}

const contextHeader = "## Forum posts\n\n"

func questionBlock(question string) string {
	return "## Question\n\n" + question
}

// BuildPrompt assembles the chat messages from rendered post sections.
func BuildPrompt(sections []string, question string) []*schema.Message {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	if len(sections) == 0 {
		sb.WriteString("(no relevant posts found)\n\n")
	}
	for _, s := range sections {
		sb.WriteString(s)
	}
	sb.WriteString(questionBlock(question))
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(sb.String()),
	}
}

// RenderPost formats one retrieved post and up to maxComments of its
// comments as a numbered prompt section.
func RenderPost(n int, h rag.Hit, maxComments int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### [%d] %s", n, h.Title)
	if h.Subreddit != "" {
		fmt.Fprintf(&sb, " (r/%s, score %d)", h.Subreddit, h.Score)
	}
	sb.WriteString("\n")
	if h.Content != "" {
		sb.WriteString(h.Content)
		sb.WriteString("\n")
	}
	for i, c := range h.Comments {
		if i == maxComments {
			break
		}
		fmt.Fprintf(&sb, "- comment (score %d): %s\n", c.Score, c.Content)
	}
	sb.WriteString("\n")
	return sb.String()
}
