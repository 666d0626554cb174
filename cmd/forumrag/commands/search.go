package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/rag"
)

// NewSearchCmd constructs the `forumrag search` command, which prints the
// posts nearest to a query.
func NewSearchCmd() *cobra.Command {
	var k int
	var comments int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print the posts nearest to a query",
		Long: `Embed the query and print the k nearest posts with their similarity,
community, score and top comments.

Examples:
  forumrag search "which NAS case fits 8 drives"
  forumrag search -k 10 "fine-tuning llama on a single GPU"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}
			defer emb.close()

			qs, err := openQdrant(ctx, log, emb.cfg.Dimensions)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer qs.Close()

			retriever, err := rag.NewRetriever(emb, qs, k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			hits, err := retriever.Retrieve(ctx, strings.Join(args, " "), k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			printHits(cmd.OutOrStdout(), hits, comments)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 5, "Number of posts to return")
	cmd.Flags().IntVar(&comments, "comments", 2, "Comments printed per post")

	return cmd
}

func printHits(w io.Writer, hits []rag.Hit, comments int) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matching posts")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(w, "%2d. [%.3f] r/%s  %s  (score %d)\n", i+1, h.Similarity, h.Subreddit, h.Title, h.Score)
		if h.URL != "" {
			fmt.Fprintf(w, "    %s\n", h.URL)
		}
		for _, c := range h.Comments[:max(0, min(comments, len(h.Comments)))] {
			fmt.Fprintf(w, "    > (%d) %s\n", c.Score, oneLine(c.Content, 100))
		}
	}
}

// oneLine collapses whitespace and cuts s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
