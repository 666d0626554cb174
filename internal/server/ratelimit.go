package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/forumrag-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained per-client rate (requests/second).
	defaultRateLimit = 10
	// defaultRateBurst is the per-client bucket size.
	defaultRateBurst = 20
	// staleAfter is how long an idle client keeps its bucket.
	staleAfter = 5 * time.Minute
	// sweepEvery is the interval between stale-bucket sweeps.
	sweepEvery = time.Minute
)

// bucket is one client's token bucket and when it was last used.
type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// rateLimiter applies a token bucket per client IP to the protected routes.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int

	// rejected counts 429 responses by route pattern. May be nil.
	rejected *prometheus.CounterVec
	now      func() time.Time
}

// newRateLimiter returns a limiter and the function that stops its sweeper.
func newRateLimiter(rps float64, burst int, rejected *prometheus.CounterVec) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets:  make(map[string]*bucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		rejected: rejected,
		now:      time.Now,
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()
	return rl, func() { once.Do(func() { close(done) }) }
}

// bucketFor returns the limiter for ip, creating it on first use.
func (rl *rateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[ip]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = rl.now()
	return b.lim
}

// sweep drops buckets idle for longer than staleAfter.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-staleAfter)
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware answers 429 with a Retry-After of the whole seconds until the
// client's next token when the bucket is empty.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		res := rl.bucketFor(ip).Reserve()
		if delay := res.Delay(); !res.OK() || delay > 0 {
			res.Cancel()
			retry := 1
			if res.OK() {
				retry = max(1, int(math.Ceil(delay.Seconds())))
			}
			if rl.rejected != nil {
				rl.rejected.WithLabelValues(r.Pattern).Inc()
			}
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after", retry),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the host part of RemoteAddr. Forwarding headers are ignored.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
