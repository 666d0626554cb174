package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/answer"
	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/provider"
	"github.com/54b3r/forumrag-go/internal/rag"
	"github.com/54b3r/forumrag-go/internal/tracing"
)

// NewAskCmd constructs the `forumrag ask` command, which answers a question
// from retrieved posts and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var (
		models     []string
		k          int
		noRephrase bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question grounded in retrieved forum posts",
		Long: `Rewrite the question as a forum post, retrieve the nearest posts and
stream an answer that cites them as [n].

Pass --model more than once to compare several local models on the same
question; each answer is printed under its own heading.

Examples:
  forumrag ask "is a used R730 still worth it for a homelab?"
  forumrag ask --model llama3.2:3b --model mistral:7b "best vector db for a laptop"
  MODEL_PROVIDER=openai forumrag ask --no-rephrase "langchain vs llamaindex"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			out := cmd.OutOrStdout()

			flush, traced := tracing.Setup(tracing.ConfigFromEnv())
			defer flush()
			if traced {
				log.Info("langfuse tracing enabled")
			}

			gen, pcfg, err := provider.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}
			defer emb.close()

			qs, err := openQdrant(ctx, log, emb.cfg.Dimensions)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer qs.Close()

			retriever, err := rag.NewRetriever(emb, qs, k)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			answerer, err := answer.New(&answer.Config{
				Retriever: retriever,
				Generator: gen,
				TopK:      k,
				Rephrase:  !noRephrase,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if len(models) == 0 {
				models = []string{pcfg.Model()}
			}
			question := strings.Join(args, " ")
			for i, m := range models {
				if len(models) > 1 {
					if i > 0 {
						fmt.Fprintln(out)
					}
					fmt.Fprintf(out, "=== %s ===\n", m)
				}
				log.Info("ask", slog.String("backend", string(pcfg.Backend)), slog.String("model", m))

				res, err := answerer.Answer(ctx, question, m, out)
				if err != nil {
					return fmt.Errorf("ask: %s: %w", m, err)
				}
				fmt.Fprintln(out)
				if !quiet {
					printSources(out, res)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&models, "model", "m", nil, "Model id to answer with (repeatable; default: the provider's configured model)")
	cmd.Flags().IntVarP(&k, "k", "k", 4, "Posts retrieved per question")
	cmd.Flags().BoolVar(&noRephrase, "no-rephrase", false, "Search with the question as typed")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the sources list")

	return cmd
}

func printSources(w io.Writer, res answer.Result) {
	if len(res.Hits) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, h := range res.Hits {
		fmt.Fprintf(w, "  [%d] r/%s  %s", i+1, h.Subreddit, h.Title)
		if h.URL != "" {
			fmt.Fprintf(w, "  %s", h.URL)
		}
		fmt.Fprintln(w)
	}
	if res.Dropped > 0 {
		fmt.Fprintf(w, "  (%d more retrieved posts did not fit the context budget)\n", res.Dropped)
	}
}
