package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/forumrag-go/internal/logging"
)

// listing is the envelope Reddit wraps every collection in.
type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

// thing is one listing child. Kind is "t3" for posts and "t1" for comments.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// link is the subset of a t3 post the scraper keeps.
type link struct {
	ID          string      `json:"id"`
	Title       *string     `json:"title"`
	Author      *string     `json:"author"`
	Score       int         `json:"score"`
	URL         string      `json:"url"`
	NumComments int         `json:"num_comments"`
	CreatedUTC  json.Number `json:"created_utc"`
	Selftext    string      `json:"selftext"`
	Permalink   string      `json:"permalink"`
}

// comment is the subset of a t1 comment the scraper keeps. Body is nil for
// placeholders such as "more" stubs.
type comment struct {
	Author     *string     `json:"author"`
	Score      int         `json:"score"`
	CreatedUTC json.Number `json:"created_utc"`
	Body       *string     `json:"body"`
}

// client fetches Reddit JSON endpoints at a bounded rate.
type client struct {
	base       string
	userAgent  string
	http       *http.Client
	limiter    *rate.Limiter
	retryAfter time.Duration
}

// topPosts returns the top posts of community for the given time window.
func (c *client) topPosts(ctx context.Context, community string, limit int, window string) ([]link, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("t", window)
	endpoint := fmt.Sprintf("%s/r/%s/top.json?%s", c.base, url.PathEscape(community), q.Encode())

	var l listing
	if err := c.getJSON(ctx, endpoint, &l); err != nil {
		return nil, err
	}

	posts := make([]link, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		var p link
		if err := json.Unmarshal(child.Data, &p); err != nil || p.ID == "" {
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// comments returns the top-level comment listing for a post permalink.
func (c *client) comments(ctx context.Context, permalink string) ([]comment, error) {
	endpoint := c.base + strings.TrimSuffix(permalink, "/") + ".json"

	var detail []listing
	if err := c.getJSON(ctx, endpoint, &detail); err != nil {
		return nil, err
	}
	if len(detail) < 2 {
		return nil, fmt.Errorf("scraper: %s: expected post and comment listings, got %d", endpoint, len(detail))
	}

	var out []comment
	for _, child := range detail[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var cm comment
		if err := json.Unmarshal(child.Data, &cm); err != nil || cm.Body == nil {
			continue
		}
		out = append(out, cm)
	}
	return out, nil
}

// getJSON performs a rate-limited GET and decodes the body into out. A 429 is
// retried once after retryAfter; any other non-200 status is an error.
func (c *client) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		logging.FromContext(ctx).Warn("scraper: rate limited, backing off",
			slog.String("url", endpoint),
			slog.Duration("wait", c.retryAfter),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryAfter):
		}
		if resp, err = c.get(ctx, endpoint); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scraper: GET %s: HTTP %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(out); err != nil {
		return fmt.Errorf("scraper: decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scraper: rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: GET %s: %w", endpoint, err)
	}
	return resp, nil
}
