package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/embedder"
	"github.com/54b3r/forumrag-go/internal/ingestion"
	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/post"
)

// NewIngestCmd constructs the `forumrag ingest` command, which parses the
// scraped posts, embeds them and upserts them into Qdrant.
func NewIngestCmd() *cobra.Command {
	var (
		dir         string
		topComments int
		cfg         ingestion.Config
		noArtifact  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse, embed and index scraped posts",
		Long: `Parse every post file under --dir, embed it and upsert it into Qdrant.

Vectors are cached in a JSON artifact (--artifact). When the artifact holds
exactly one vector per post file it is reused and nothing is re-embedded;
otherwise every post is embedded and the artifact is rewritten.

Environment:
  QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_TLS
  EMBEDDING_PROVIDER, EMBEDDING_MODEL, EMBEDDING_DIMENSIONS, EMBEDDING_DEVICE
  REDIS_ADDR           optional shared embedding cache

Examples:
  forumrag ingest
  forumrag ingest --dir ./data --reembed
  EMBEDDING_DEVICE=cpu forumrag ingest --batch-size 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			stringFromEnv(cmd, "dir", "FORUMRAG_SCRAPE_DIR", &dir)
			stringFromEnv(cmd, "artifact", "FORUMRAG_EMBEDDINGS", &cfg.ArtifactPath)
			intFromEnv(cmd, "top-comments", "FORUMRAG_TOP_COMMENTS", &topComments)
			if noArtifact {
				cfg.ArtifactPath = ""
			}

			records, err := post.LoadAll(ctx, dir, topComments)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(records) == 0 {
				return fmt.Errorf("ingest: no posts found under %s", dir)
			}

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			defer emb.close()
			cfg.Namespace = embedder.Namespace(emb.cfg)

			qs, err := openQdrant(ctx, log, emb.cfg.Dimensions)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer qs.Close()

			pipeline, err := ingestion.NewPipeline(emb, qs, &cfg)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			stats, err := pipeline.Ingest(ctx, records, func(msg string) { log.Info(msg) })
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}
			emb.stats(log)

			total, err := qs.Count(ctx)
			if err != nil {
				log.Warn("ingest: could not count collection", slog.Any("error", err))
			}
			log.Info("ingestion complete",
				slog.Int("posts", stats.Posts),
				slog.Int("embedded", stats.Embedded),
				slog.Bool("from_artifact", stats.FromArtifact),
				slog.Duration("duration", stats.Duration),
				slog.Uint64("collection_points", total),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d posts (%d embedded) in %s\n",
				stats.Posts, stats.Embedded, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", defaultScrapeDir, "Root directory of scraped posts")
	cmd.Flags().IntVar(&topComments, "top-comments", 5, "Highest-scored comments kept per post")
	cmd.Flags().StringVar(&cfg.ArtifactPath, "artifact", defaultArtifact, "Embedding artifact file")
	cmd.Flags().BoolVar(&noArtifact, "no-artifact", false, "Do not read or write the embedding artifact")
	cmd.Flags().BoolVar(&cfg.Reembed, "reembed", false, "Ignore the artifact and embed every post")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 32, "Posts embedded and upserted per batch")

	return cmd
}
