// Package scraper downloads the top posts of a set of communities from the
// Reddit JSON API and writes each one, with its highest-scored comments, as
// a text file in the format read by package post.
package scraper

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/post"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultBaseURL     = "https://www.reddit.com"
	DefaultUserAgent   = "forumrag-scraper/1.0 (+https://github.com/54b3r/forumrag-go)"
	DefaultLimit       = 100
	DefaultWindow      = "month"
	DefaultTopComments = 5
	DefaultRate        = 1.0
	DefaultRetryAfter  = 5 * time.Second
	DefaultTimeout     = 10 * time.Second
)

// noContent replaces an empty self-text so link posts still carry a body.
const noContent = "[No content/Link only]"

// Config controls a scrape run.
type Config struct {
	// OutputDir receives one scrape_<community> directory per community.
	OutputDir string
	// BaseURL is the Reddit origin. Defaults to DefaultBaseURL.
	BaseURL string
	// UserAgent is sent with every request. Reddit rejects generic agents.
	UserAgent string
	// Limit is the number of top posts requested per community.
	Limit int
	// Window is the top-listing time window: hour, day, week, month, year, all.
	Window string
	// TopComments is the number of comments written per post.
	TopComments int
	// RequestsPerSecond paces every request, listing and detail alike.
	RequestsPerSecond float64
	// RetryAfter is the back-off before the single retry of a 429 response.
	RetryAfter time.Duration
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Stats summarises a scrape run.
type Stats struct {
	Communities int
	Posts       int
	Failed      int
}

// Scraper writes community posts to disk.
type Scraper struct {
	cfg    Config
	client *client
}

// New validates cfg, applies defaults and returns a Scraper.
func New(cfg Config) (*Scraper, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("scraper: output directory must not be empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window == "" {
		cfg.Window = DefaultWindow
	}
	if cfg.TopComments <= 0 {
		cfg.TopComments = DefaultTopComments
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRate
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = DefaultRetryAfter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Scraper{
		cfg: cfg,
		client: &client{
			base:       cfg.BaseURL,
			userAgent:  cfg.UserAgent,
			http:       &http.Client{Timeout: cfg.Timeout},
			limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
			retryAfter: cfg.RetryAfter,
		},
	}, nil
}

// Run scrapes every community in turn. A community whose listing cannot be
// fetched is logged and skipped, as is any post whose comments cannot be
// fetched. Only context cancellation and filesystem errors abort the run.
func (s *Scraper) Run(ctx context.Context, communities []string) (Stats, error) {
	log := logging.FromContext(ctx)
	var stats Stats

	for _, community := range communities {
		written, failed, err := s.scrapeCommunity(ctx, community)
		stats.Posts += written
		stats.Failed += failed
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errWrite) {
				return stats, err
			}
			log.Warn("scraper: skipping community",
				slog.String("community", community),
				slog.Any("error", err),
			)
			continue
		}
		stats.Communities++
		log.Info("scraper: community done",
			slog.String("community", community),
			slog.Int("posts", written),
			slog.Int("failed", failed),
		)
	}
	return stats, nil
}

var errWrite = errors.New("scraper: write failed")

func (s *Scraper) scrapeCommunity(ctx context.Context, community string) (written, failed int, err error) {
	log := logging.FromContext(ctx)

	links, err := s.client.topPosts(ctx, community, s.cfg.Limit, s.cfg.Window)
	if err != nil {
		return 0, 0, err
	}
	dir := filepath.Join(s.cfg.OutputDir, post.GroupDir(community))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("%w: create %s: %w", errWrite, dir, err)
	}
	log.Info("scraper: fetched listing",
		slog.String("community", community),
		slog.Int("posts", len(links)),
	)

	for _, l := range links {
		comments, err := s.client.comments(ctx, l.Permalink)
		if err != nil {
			if ctx.Err() != nil {
				return written, failed, ctx.Err()
			}
			failed++
			log.Warn("scraper: failed to fetch post details",
				slog.String("community", community),
				slog.String("post_id", l.ID),
				slog.Any("error", err),
			)
			continue
		}

		p := toPost(community, l, comments, s.cfg.TopComments)
		path := filepath.Join(dir, "post_"+l.ID+".txt")
		if err := os.WriteFile(path, []byte(post.Format(p)), 0o644); err != nil {
			return written, failed, fmt.Errorf("%w: %s: %w", errWrite, path, err)
		}
		written++
		log.Debug("scraper: saved post", slog.String("path", path))
	}
	return written, failed, nil
}

// toPost builds the on-disk post from a listing entry and its comments,
// keeping the topN comments by descending score.
func toPost(community string, l link, comments []comment, topN int) *post.Post {
	p := &post.Post{
		SourceGroup:  community,
		Title:        orDefault(l.Title, "No Title"),
		Author:       orDefault(l.Author, "[deleted]"),
		Score:        &l.Score,
		URL:          l.URL,
		CommentCount: &l.NumComments,
		CreatedAt:    timestamp(l.CreatedUTC),
		Body:         l.Selftext,
	}
	if p.Body == "" {
		p.Body = noContent
	}

	slices.SortStableFunc(comments, func(a, b comment) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(comments) > topN {
		comments = comments[:topN]
	}
	for _, c := range comments {
		score := c.Score
		p.Comments = append(p.Comments, post.Comment{
			Author:    orDefault(c.Author, "[deleted]"),
			Text:      *c.Body,
			Score:     &score,
			CreatedAt: timestamp(c.CreatedUTC),
		})
	}
	return p
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func timestamp(n json.Number) string {
	if n == "" {
		return "0"
	}
	return string(n)
}
