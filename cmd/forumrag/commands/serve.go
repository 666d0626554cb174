package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/forumrag-go/internal/answer"
	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/provider"
	"github.com/54b3r/forumrag-go/internal/rag"
	"github.com/54b3r/forumrag-go/internal/server"
	"github.com/54b3r/forumrag-go/internal/tracing"
)

// NewServeCmd constructs the `forumrag serve` command, which exposes search
// and grounded answers over HTTP.
func NewServeCmd() *cobra.Command {
	var (
		cfg        server.Config
		noRephrase bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search and grounded answers over HTTP",
		Long: `Start the forumrag HTTP server.

Endpoints:
  POST /api/search   {"query": "...", "k": 5}          JSON hits
  POST /api/ask      {"question": "...", "model": ""}  SSE answer stream,
                     then a "sources" event and a "done" event
  GET  /api/health   liveness
  GET  /api/ready    Qdrant, LLM and Redis reachability
  GET  /metrics      Prometheus metrics

Set FORUMRAG_API_KEY to require "Authorization: Bearer <key>" on /api/search
and /api/ask.

Examples:
  forumrag serve
  forumrag serve --port 9090
  MODEL_PROVIDER=azure forumrag serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			stringFromEnv(cmd, "host", "FORUMRAG_HOST", &cfg.Host)
			intFromEnv(cmd, "port", "FORUMRAG_PORT", &cfg.Port)

			flush, traced := tracing.Setup(tracing.ConfigFromEnv())
			defer flush()
			if traced {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
			}

			gen, pcfg, err := provider.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised",
				slog.String("backend", string(pcfg.Backend)),
				slog.String("model", pcfg.Model()),
			)

			emb, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}
			defer emb.close()

			qs, err := openQdrant(ctx, log, emb.cfg.Dimensions)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qs.Close()

			retriever, err := rag.NewRetriever(emb, qs, cfg.DefaultTopK)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			answerer, err := answer.New(&answer.Config{
				Retriever: retriever,
				Generator: gen,
				TopK:      cfg.DefaultTopK,
				Rephrase:  !noRephrase,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			cfg.Logger = log
			cfg.APIKey = os.Getenv("FORUMRAG_API_KEY")
			cfg.Pingers = []server.Pinger{
				server.NewQdrantPinger(qs),
				server.NewLLMPinger(pcfg.HealthCheck(), gen, string(pcfg.Backend)),
			}
			if emb.redis != nil {
				cfg.Pingers = append(cfg.Pingers, server.NewFuncPinger("redis", emb.redis.Ping))
			}

			srv, err := server.New(retriever, answerer, &cfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().IntVar(&cfg.DefaultTopK, "k", 4, "Posts retrieved when a request does not set k")
	cmd.Flags().Float64Var(&cfg.RateLimit, "rate-limit", 10, "Requests per second allowed per client IP on /api/search and /api/ask")
	cmd.Flags().IntVar(&cfg.RateBurst, "rate-burst", 20, "Burst size per client IP")
	cmd.Flags().DurationVar(&cfg.AskTimeout, "ask-timeout", 0, "Bound on one /api/ask request (default 5m)")
	cmd.Flags().BoolVar(&noRephrase, "no-rephrase", false, "Search with questions as typed")

	return cmd
}
