package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/scraper"
)

// NewScrapeCmd constructs the `forumrag scrape` command.
func NewScrapeCmd() *cobra.Command {
	var cfg scraper.Config

	cmd := &cobra.Command{
		Use:   "scrape [community...]",
		Short: "Download top posts and comments of Reddit communities",
		Long: `Download the top posts of each community, with their highest-scored
comments, as text files under <out>/scrape_<community>/post_<id>.txt.

Requests are paced (default one per second) and a 429 response is retried
once. A post whose comments cannot be fetched is skipped; a community whose
listing cannot be fetched is skipped.

Examples:
  forumrag scrape
  forumrag scrape homelab selfhosted --limit 50 --window year
  forumrag scrape LocalLLaMA --out ./data --top-comments 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			communities := args
			if len(communities) == 0 {
				communities = defaultCommunities
			}
			stringFromEnv(cmd, "out", "FORUMRAG_SCRAPE_DIR", &cfg.OutputDir)
			stringFromEnv(cmd, "user-agent", "REDDIT_USER_AGENT", &cfg.UserAgent)
			stringFromEnv(cmd, "window", "FORUMRAG_SCRAPE_WINDOW", &cfg.Window)
			intFromEnv(cmd, "limit", "FORUMRAG_SCRAPE_LIMIT", &cfg.Limit)
			intFromEnv(cmd, "top-comments", "FORUMRAG_TOP_COMMENTS", &cfg.TopComments)

			s, err := scraper.New(cfg)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			stats, err := s.Run(ctx, communities)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}

			log.Info("scrape complete",
				slog.Int("communities", stats.Communities),
				slog.Int("posts", stats.Posts),
				slog.Int("failed", stats.Failed),
				slog.String("out", cfg.OutputDir),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d posts from %d communities to %s (%d skipped)\n",
				stats.Posts, stats.Communities, cfg.OutputDir, stats.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.OutputDir, "out", "o", defaultScrapeDir, "Output directory")
	cmd.Flags().IntVarP(&cfg.Limit, "limit", "n", scraper.DefaultLimit, "Top posts per community")
	cmd.Flags().StringVarP(&cfg.Window, "window", "t", scraper.DefaultWindow, "Top listing window: hour, day, week, month, year, all")
	cmd.Flags().IntVar(&cfg.TopComments, "top-comments", scraper.DefaultTopComments, "Comments kept per post")
	cmd.Flags().Float64Var(&cfg.RequestsPerSecond, "rate", scraper.DefaultRate, "Requests per second")
	cmd.Flags().StringVar(&cfg.UserAgent, "user-agent", "", "User-Agent header (default: REDDIT_USER_AGENT or a forumrag agent)")
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", scraper.DefaultBaseURL, "Reddit origin")

	return cmd
}
