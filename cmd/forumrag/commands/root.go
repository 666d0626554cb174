// Package commands defines all Cobra CLI commands for the forumrag binary.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/audit"
	"github.com/54b3r/forumrag-go/internal/config"
	"github.com/54b3r/forumrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "forumrag",
		Short: "Retrieval over scraped forum posts, with recall evaluation",
		Long: `forumrag turns forum threads into a searchable knowledge base.

  scrape   download top posts and comments of Reddit communities
  ingest   parse scraped posts, embed them and index them in Qdrant
  search   print the posts nearest to a query
  ask      answer a question grounded in retrieved posts
  eval     measure recall@K of retrieval against labelled queries
  serve    expose search and ask over HTTP

Settings come from the environment, a .env file in the working directory,
or a YAML config file (~/.forumrag/config.yaml). Environment variables win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Bootstrap logger for config loading; rebuilt once LOG_* may have changed.
			log := logging.New()
			if err := config.LoadDotEnv(".env", log); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			log = logging.New()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logging.WithLogger(ctx, log))

			audit.LogCommandStart(ctx, log, cmd.CommandPath(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.forumrag/config.yaml)")

	root.AddCommand(
		NewScrapeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewEvalCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
