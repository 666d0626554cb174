// Package server implements the HTTP API that exposes post search and
// grounded answers over REST and SSE.
// The server is started by the `forumrag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/forumrag-go/internal/logging"
	"github.com/54b3r/forumrag-go/internal/rag"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// New constructs a Server from the retriever, the answerer and config.
func New(retriever rag.Retriever, a asker, cfg *Config) (*Server, error) {
	if retriever == nil {
		return nil, errors.New("server: retriever must not be nil")
	}
	if a == nil {
		return nil, errors.New("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 4
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		retriever: retriever,
		asker:     a,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set, /api/search and /api/ask are unauthenticated")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics.rateLimitedTotal)
	s.stopRL = stop
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", protect(s.handleSearch))
	mux.Handle("POST /api/ask", protect(s.handleAsk))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.metrics.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSearch handles POST /api/search. It returns the nearest posts as JSON.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.K < 0 {
		http.Error(w, "k must not be negative", http.StatusBadRequest)
		return
	}
	if req.K == 0 {
		req.K = s.cfg.DefaultTopK
	}
	req.K = min(req.K, s.cfg.MaxTopK)

	hits, err := s.retriever.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("error").Inc()
		log.Error("search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}
	s.metrics.searchRequestsTotal.WithLabelValues("ok").Inc()

	resp := searchResponse{Query: req.Query, K: req.K, Hits: make([]hitJSON, len(hits))}
	for i, h := range hits {
		resp.Hits[i] = toHitJSON(h)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("search encode error", slog.Any("error", err))
	}
}

// handleAsk handles POST /api/ask requests. It streams the answer using
// Server-Sent Events, then sends the cited posts as a "sources" event.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()
	start := time.Now()

	sw := &sseWriter{w: w, flusher: flusher}
	res, err := s.asker.Answer(ctx, req.Question, req.Model, sw)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.metrics.observeAsk(outcome, time.Since(start))
		log.Error("ask failed", slog.String("outcome", outcome), slog.Any("error", err))
		sw.event("error", err.Error())
		return
	}
	s.metrics.observeAsk("ok", time.Since(start))

	sources := make([]sourceJSON, len(res.Hits))
	for i, h := range res.Hits {
		sources[i] = sourceJSON{Index: i + 1, Title: h.Title, Subreddit: h.Subreddit, URL: h.URL, Similarity: h.Similarity}
	}
	payload, _ := json.Marshal(sources)
	sw.event("sources", string(payload))
	sw.event("done", "[DONE]")
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// Write formats p as one or more SSE data lines and flushes to the client.
// Each newline in p is prefixed with "data: " so multi-line chunks never
// break the SSE frame boundary.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	if err := s.frame("", string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// event emits a named event. Write errors are ignored: the client is gone.
func (s *sseWriter) event(name, data string) {
	_ = s.frame(name, data)
}

func (s *sseWriter) frame(event, data string) error {
	var buf strings.Builder
	if event != "" {
		buf.WriteString("event: ")
		buf.WriteString(event)
		buf.WriteString("\n")
	}
	for _, line := range strings.Split(data, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err := fmt.Fprint(s.w, buf.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
