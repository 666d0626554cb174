package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// hit sends one POST from addr through h and returns the recorder.
func hit(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Burst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rps     float64
		burst   int
		sends   int
		allowed int
	}{
		{"fast refill", 1000, 5, 5, 5},
		{"burst of two", 0.001, 2, 6, 2},
		{"burst of one", 0.001, 1, 3, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rl, stop := newRateLimiter(tc.rps, tc.burst, nil)
			defer stop()
			h := rl.middleware(okHandler)

			ok := 0
			for i := range tc.sends {
				switch code := hit(h, "10.1.1.1:4000").Code; code {
				case http.StatusOK:
					if i >= tc.allowed {
						t.Errorf("request %d allowed past the burst", i)
					}
					ok++
				case http.StatusTooManyRequests:
				default:
					t.Fatalf("request %d: unexpected status %d", i, code)
				}
			}
			if ok != tc.allowed {
				t.Errorf("allowed %d requests, want %d", ok, tc.allowed)
			}
		})
	}
}

func TestRateLimit_RetryAfterAndCounter(t *testing.T) {
	t.Parallel()

	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rejected"}, []string{"handler"})
	rl, stop := newRateLimiter(0.5, 1, rejected)
	defer stop()
	h := rl.middleware(okHandler)

	hit(h, "10.0.0.2:1234")
	w := hit(h, "10.0.0.2:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", w.Code)
	}
	// One token every two seconds.
	if got, _ := strconv.Atoi(w.Header().Get("Retry-After")); got < 1 || got > 2 {
		t.Errorf("Retry-After = %q, want 1 or 2", w.Header().Get("Retry-After"))
	}
	var m dto.Metric
	if err := rejected.WithLabelValues("").Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if n := m.GetCounter().GetValue(); n != 1 {
		t.Errorf("rejected counter = %v, want 1", n)
	}
}

func TestRateLimit_ClientsIsolated(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 1, nil)
	defer stop()
	h := rl.middleware(okHandler)

	for range 3 {
		hit(h, "192.168.1.1:1111")
	}
	if w := hit(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second client = %d, want 200", w.Code)
	}
	// Same host on a different port shares the bucket.
	if w := hit(h, "192.168.1.1:3333"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same host, new port = %d, want 429", w.Code)
	}
}

func TestRateLimit_SweepDropsIdleBuckets(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, nil)
	defer stop()
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }

	rl.bucketFor("10.0.0.1")
	clock = clock.Add(4 * time.Minute)
	rl.bucketFor("10.0.0.2")
	clock = clock.Add(2 * time.Minute)

	rl.sweep()
	if n := rl.size(); n != 1 {
		t.Fatalf("buckets after sweep = %d, want 1", n)
	}
	rl.mu.Lock()
	_, kept := rl.buckets["10.0.0.2"]
	rl.mu.Unlock()
	if !kept {
		t.Error("recently used bucket was swept")
	}

	stop()
	stop()
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	for addr, want := range map[string]string{
		"127.0.0.1:54321":    "127.0.0.1",
		"[::1]:8080":         "::1",
		"[fe80::1%eth0]:443": "fe80::1%eth0",
		"unix-socket":        "unix-socket",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := clientIP(req); got != want {
			t.Errorf("clientIP(%q) = %q, want %q", addr, got, want)
		}
	}
}
