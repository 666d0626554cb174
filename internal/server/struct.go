package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/forumrag-go/internal/answer"
	"github.com/54b3r/forumrag-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds one /api/ask request including retrieval and the
	// full answer stream (default: 5m).
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultTopK is used when a search request omits k (default: 4).
	DefaultTopK int
	// MaxTopK caps k on search requests (default: 50).
	MaxTopK int
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker streams a grounded answer. *answer.Answerer satisfies it; tests
// inject a fake.
type asker interface {
	Answer(ctx context.Context, question, modelID string, w io.Writer) (answer.Result, error)
}

// Server exposes post search and grounded answers over HTTP.
type Server struct {
	// retriever serves POST /api/search.
	retriever rag.Retriever
	// asker serves POST /api/ask.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the free-text search query.
	Query string `json:"query"`
	// K is the number of posts to return. Zero selects the default.
	K int `json:"k,omitempty"`
}

// commentJSON is one comment in a search hit.
type commentJSON struct {
	Content string `json:"content"`
	Score   int    `json:"score"`
}

// hitJSON is one search hit.
type hitJSON struct {
	ID         string        `json:"id"`
	Similarity float32       `json:"similarity"`
	Subreddit  string        `json:"subreddit"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	URL        string        `json:"url"`
	Score      int           `json:"score"`
	Comments   []commentJSON `json:"comments"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	Query string    `json:"query"`
	K     int       `json:"k"`
	Hits  []hitJSON `json:"hits"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// Model optionally selects a model other than the configured one.
	Model string `json:"model,omitempty"`
}

// sourceJSON is one post cited in the sources event of /api/ask.
type sourceJSON struct {
	Index      int     `json:"index"`
	Title      string  `json:"title"`
	Subreddit  string  `json:"subreddit"`
	URL        string  `json:"url"`
	Similarity float32 `json:"similarity"`
}

func toHitJSON(h rag.Hit) hitJSON {
	comments := make([]commentJSON, len(h.Comments))
	for i, c := range h.Comments {
		comments[i] = commentJSON{Content: c.Content, Score: c.Score}
	}
	return hitJSON{
		ID:         h.ID,
		Similarity: h.Similarity,
		Subreddit:  h.Subreddit,
		Title:      h.Title,
		Content:    h.Content,
		URL:        h.URL,
		Score:      h.Score,
		Comments:   comments,
	}
}
