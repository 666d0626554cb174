// Package eval measures retrieval quality against labeled queries.
//
// Each query carries the community it was written about. The evaluator embeds
// the query, retrieves the top K posts and compares the retrieved posts'
// communities with the query's label, producing recall@K and hit@K per query
// and aggregated overall and per label.
//
// Missing labels and empty results are not errors: they degrade to zero
// scores and sentinel labels so the numbers reflect retrieval quality.
// Embedding or store failures abort the run.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/rag"
)

// Defaults applied by NewEvaluator to zero-valued Config fields.
const (
	DefaultK          = 20
	DefaultLabelField = rag.FieldSubreddit
	DefaultSentinel   = "__unlabeled__"
)

// DefaultFallbackFields are probed, in order, when a hit lacks the primary
// label field.
var DefaultFallbackFields = []string{"source_group", "community", "label"}

// ErrNoQueries is returned by LoadQueries for a query set without queries.
var ErrNoQueries = errors.New("eval: no queries")

// LabeledQuery is a query text with the community it is expected to retrieve.
type LabeledQuery struct {
	Label string `yaml:"label" json:"label"`
	Text  string `yaml:"text" json:"text"`
}

// QueryResult is the outcome of evaluating one query.
type QueryResult struct {
	Label           string   `json:"label"`
	QueryText       string   `json:"query"`
	RetrievedLabels []string `json:"retrieved_labels"`
	RecallAtK       float64  `json:"recall_at_k"`
	HitAtK          int      `json:"hit_at_k"`
}

// Config controls an evaluation run.
type Config struct {
	// K is the number of posts retrieved per query.
	K int

	// LabelField is the hit field holding the community label.
	LabelField string

	// FallbackFields are probed in order when LabelField is absent.
	FallbackFields []string

	// Sentinel replaces every label of a non-empty result set from which no
	// label could be extracted.
	Sentinel string

	// Concurrency is the number of queries evaluated in parallel.
	// Values below 2 evaluate sequentially.
	Concurrency int
}

// Evaluator runs labeled queries against an embedder and a vector store.
type Evaluator struct {
	cfg      Config
	embedder rag.Embedder
	searcher rag.Searcher
}

// NewEvaluator constructs an Evaluator, filling zero Config fields with
// their defaults.
func NewEvaluator(cfg Config, embedder rag.Embedder, searcher rag.Searcher) (*Evaluator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("eval: embedder must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("eval: searcher must not be nil")
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.LabelField == "" {
		cfg.LabelField = DefaultLabelField
	}
	if cfg.FallbackFields == nil {
		cfg.FallbackFields = DefaultFallbackFields
	}
	if cfg.Sentinel == "" {
		cfg.Sentinel = DefaultSentinel
	}
	return &Evaluator{cfg: cfg, embedder: embedder, searcher: searcher}, nil
}

// Config returns the effective configuration.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Evaluate scores every query and summarises the results. Results are in
// query order regardless of Concurrency. The first embedding or search error
// aborts the run. An empty query set yields no results and a zero summary.
func (e *Evaluator) Evaluate(ctx context.Context, queries []LabeledQuery) ([]QueryResult, Summary, error) {
	if len(queries) == 0 {
		return []QueryResult{}, Summarize(nil), nil
	}

	log := logging.FromContext(ctx)
	start := time.Now()
	log.Info("eval: starting run",
		slog.Int("queries", len(queries)),
		slog.Int("k", e.cfg.K),
		slog.String("label_field", e.cfg.LabelField),
		slog.Int("concurrency", e.cfg.Concurrency),
	)

	results := make([]QueryResult, len(queries))

	if e.cfg.Concurrency < 2 {
		for i, q := range queries {
			r, err := e.evaluateOne(ctx, q)
			if err != nil {
				return nil, Summary{}, fmt.Errorf("eval: query %d (%s): %w", i, q.Label, err)
			}
			results[i] = r
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Concurrency)
		for i, q := range queries {
			g.Go(func() error {
				r, err := e.evaluateOne(gctx, q)
				if err != nil {
					return fmt.Errorf("eval: query %d (%s): %w", i, q.Label, err)
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, Summary{}, err
		}
	}

	summary := Summarize(results)
	log.Info("eval: run complete",
		slog.Float64("mean_recall", summary.MeanRecall),
		slog.Float64("hit_rate", summary.HitRate),
		slog.Duration("duration", time.Since(start)),
	)
	return results, summary, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, q LabeledQuery) (QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return QueryResult{}, err
	}

	vector, err := rag.EmbedOne(ctx, e.embedder, q.Text)
	if err != nil {
		return QueryResult{}, err
	}
	hits, err := e.searcher.Search(ctx, vector, e.cfg.K)
	if err != nil {
		return QueryResult{}, fmt.Errorf("search: %w", err)
	}

	labels := e.labels(hits)
	logging.FromContext(ctx).Debug("eval: query scored",
		slog.String("label", q.Label),
		slog.Int("hits", len(hits)),
		slog.Any("retrieved", labels),
	)
	return Score(q, labels), nil
}

// labels extracts one label per hit. When hits exist but none carries a
// label, every hit is given the sentinel.
func (e *Evaluator) labels(hits []rag.Hit) []string {
	labels := make([]string, 0, len(hits))
	for _, h := range hits {
		if l, ok := ExtractLabel(h.Fields, e.cfg.LabelField, e.cfg.FallbackFields); ok {
			labels = append(labels, l)
		}
	}
	if len(hits) > 0 && len(labels) == 0 {
		for range hits {
			labels = append(labels, e.cfg.Sentinel)
		}
	}
	return labels
}
