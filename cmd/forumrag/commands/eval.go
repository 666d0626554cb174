package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/embedder"
	"github.com/54b3r/forumrag-go/internal/eval"
	"github.com/54b3r/forumrag-go/internal/ingestion"
	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/post"
	"github.com/54b3r/forumrag-go/internal/rag"
	"github.com/54b3r/forumrag-go/internal/store"
)

const defaultQueriesFile = "configs/eval-queries.yaml"

// NewEvalCmd constructs the `forumrag eval` command and its history subcommand.
func NewEvalCmd() *cobra.Command {
	var (
		queriesPath string
		cfg         eval.Config
		worst       int
		asJSON      bool
		noHistory   bool
		memory      bool
		dir         string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure recall@K of retrieval against labelled queries",
		Long: `Embed every labelled query, retrieve the top K posts and score how many
of them come from the query's community (recall@K) and whether any does
(hit@K). Results are reported per community and overall, followed by the
queries with the lowest recall.

Each run is recorded in the evaluation history (~/.forumrag/evals.db) so
embedding models and collections can be compared over time. Set
FORUMRAG_EVAL_DB=disabled or pass --no-history to skip it.

With --memory the posts under --dir are indexed into an in-process store
instead of querying Qdrant. The embedding artifact written by ingest is
reused when it still matches the post files.

Examples:
  forumrag eval
  forumrag eval --queries my-queries.yaml --k 10 --worst 10
  forumrag eval --memory --dir ./scrapes
  QDRANT_COLLECTION=posts_mxbai forumrag eval --json > run.json
  forumrag eval history`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			stringFromEnv(cmd, "queries", "FORUMRAG_EVAL_QUERIES", &queriesPath)
			intFromEnv(cmd, "k", "FORUMRAG_EVAL_K", &cfg.K)

			queries, err := eval.LoadQueries(queriesPath)
			if err != nil {
				return err
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("eval: failed to initialise embedder: %w", err)
			}
			defer emb.close()

			var searcher rag.Searcher
			collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
			if memory {
				stringFromEnv(cmd, "dir", "FORUMRAG_SCRAPE_DIR", &dir)
				ms, err := indexInMemory(ctx, log, emb, dir)
				if err != nil {
					return fmt.Errorf("eval: %w", err)
				}
				searcher, collection = ms, "memory:"+dir
			} else {
				qs, err := openQdrant(ctx, log, emb.cfg.Dimensions)
				if err != nil {
					return fmt.Errorf("eval: %w", err)
				}
				defer qs.Close()
				searcher = qs
			}

			evaluator, err := eval.NewEvaluator(cfg, emb, searcher)
			if err != nil {
				return err
			}
			results, summary, err := evaluator.Evaluate(ctx, queries)
			if err != nil {
				return err
			}
			emb.stats(log)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					K       int                `json:"k"`
					Summary eval.Summary       `json:"summary"`
					Results []eval.QueryResult `json:"results"`
				}{evaluator.Config().K, summary, results}); err != nil {
					return fmt.Errorf("eval: encode results: %w", err)
				}
			} else {
				fmt.Fprintf(out, "recall@%d over %d queries\n\n", evaluator.Config().K, summary.Queries)
				if err := eval.WriteReport(out, summary, eval.Worst(results, worst)); err != nil {
					return err
				}
			}

			if !noHistory {
				recordRun(ctx, log, store.Run{
					K:          evaluator.Config().K,
					Embedder:   emb.cfg.Backend + "/" + emb.cfg.Model,
					Collection: collection,
					Summary:    summary,
				})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queriesPath, "queries", defaultQueriesFile, "YAML file of labelled queries")
	cmd.Flags().IntVarP(&cfg.K, "k", "k", eval.DefaultK, "Posts retrieved per query")
	cmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "c", 4, "Queries evaluated in parallel")
	cmd.Flags().StringVar(&cfg.LabelField, "label-field", eval.DefaultLabelField, "Hit field holding the community label")
	cmd.Flags().IntVar(&worst, "worst", 5, "Lowest-recall queries listed in the report")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary and per-query results as JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the evaluation history")
	cmd.Flags().BoolVar(&memory, "memory", false, "Index --dir into an in-process store instead of querying Qdrant")
	cmd.Flags().StringVarP(&dir, "dir", "d", defaultScrapeDir, "Root directory of scraped posts (with --memory)")

	cmd.AddCommand(newEvalHistoryCmd())
	return cmd
}

// indexInMemory loads the posts under dir and indexes them into a MemoryStore
// through the ingestion pipeline, reusing the embedding artifact if it was
// built from the same posts with the same model.
func indexInMemory(ctx context.Context, log *slog.Logger, emb *embedding, dir string) (*rag.MemoryStore, error) {
	records, err := post.LoadAll(ctx, dir, post.DefaultTopK)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no posts found under %s", dir)
	}

	ms := rag.NewMemoryStore()
	pipeline, err := ingestion.NewPipeline(emb, ms, &ingestion.Config{
		ArtifactPath: getEnvOrDefault("FORUMRAG_EMBEDDINGS", defaultArtifact),
		Namespace:    embedder.Namespace(emb.cfg),
	})
	if err != nil {
		return nil, err
	}
	stats, err := pipeline.Ingest(ctx, records, func(msg string) { log.Debug(msg) })
	if err != nil {
		return nil, err
	}
	log.Info("eval: in-memory index built",
		slog.Int("posts", stats.Posts),
		slog.Bool("from_artifact", stats.FromArtifact),
	)
	return ms, nil
}

// recordRun saves run to the history store. Failures only log: the report
// has already been printed.
func recordRun(ctx context.Context, log *slog.Logger, run store.Run) {
	hs := openHistory(log)
	if hs == nil {
		return
	}
	defer hs.Close()

	id, err := hs.Save(ctx, run)
	if err != nil {
		log.Warn("history: failed to record run", slog.Any("error", err))
		return
	}
	log.Info("history: run recorded", slog.Int64("id", id))
}

func newEvalHistoryCmd() *cobra.Command {
	var limit int
	var labels bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent evaluation runs",
		Long: `List the most recent evaluation runs, newest first. Pass --labels to
include the per-community breakdown of each run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			hs := openHistory(log)
			if hs == nil {
				return fmt.Errorf("eval history: history store unavailable")
			}
			defer hs.Close()

			runs, err := hs.Recent(ctx, limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), runs, labels)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	cmd.Flags().BoolVar(&labels, "labels", false, "Include per-community rows")
	return cmd
}

// writeHistory renders runs as a table, optionally with per-label rows.
func writeHistory(w io.Writer, runs []store.Run, labels bool) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no evaluation runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tK\tEMBEDDER\tCOLLECTION\tQUERIES\tRECALL@K\tHIT@K")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%d\t%.3f\t%.3f\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.K, r.Embedder, r.Collection,
			r.Summary.Queries, r.Summary.MeanRecall, r.Summary.HitRate)
		if labels {
			for _, ls := range r.Summary.PerLabel {
				fmt.Fprintf(tw, "\t\t\t  %s\t\t%d\t%.3f\t%.3f\n", ls.Label, ls.Count, ls.MeanRecall, ls.HitRate)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("eval history: write: %w", err)
	}
	return nil
}
