package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		device      Device
		wantOptions bool
	}{
		{name: "auto device sends no options", device: DeviceAuto},
		{name: "cpu device disables gpu", device: DeviceCPU, wantOptions: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				mu       sync.Mutex
				requests []ollamaEmbedRequest
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var raw map[string]any
				var req ollamaEmbedRequest
				body := json.NewDecoder(r.Body)
				if err := body.Decode(&raw); err != nil {
					t.Errorf("decode: %v", err)
				}
				b, _ := json.Marshal(raw)
				_ = json.Unmarshal(b, &req)

				_, hasOptions := raw["options"]
				if hasOptions != tt.wantOptions {
					t.Errorf("options present = %v, want %v", hasOptions, tt.wantOptions)
				}
				if tt.wantOptions && req.Options["num_gpu"] != float64(0) {
					t.Errorf("num_gpu: got %v, want 0", req.Options["num_gpu"])
				}

				mu.Lock()
				requests = append(requests, req)
				mu.Unlock()

				resp := ollamaEmbedResponse{}
				for _, in := range req.Input {
					resp.Embeddings = append(resp.Embeddings, []float32{float32(len(in)), 1})
				}
				_ = json.NewEncoder(w).Encode(resp)
			}))
			defer srv.Close()

			e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text", Device: tt.device, BatchSize: 2})
			got, err := e.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
			if err != nil {
				t.Fatalf("Embed() unexpected error: %v", err)
			}
			if len(got) != 5 {
				t.Fatalf("got %d embeddings, want 5", len(got))
			}
			for i, v := range got {
				if int(v[0]) != i+1 {
					t.Errorf("embedding %d out of order: %v", i, v)
				}
			}
			if len(requests) != 3 {
				t.Errorf("requests: got %d, want 3 batches", len(requests))
			}
			if requests[0].Model != "nomic-embed-text" {
				t.Errorf("model: got %q", requests[0].Model)
			}
		})
	}
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "ollama error body", status: http.StatusNotFound, body: `{"error":"model \"x\" not found"}`, wantStatus: 404, wantMsg: `model "x" not found`},
		{name: "plain text body", status: http.StatusBadGateway, body: "upstream down", wantStatus: 502, wantMsg: "upstream down"},
		{name: "short response", status: http.StatusOK, body: `{"embeddings":[]}`, wantMsg: "expected 1 embeddings, got 0"},
		{name: "garbage", status: http.StatusOK, body: `not json`, wantMsg: "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})
			_, err := e.Embed(context.Background(), []string{"x"})
			if err == nil {
				t.Fatal("Embed() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
			var se *StatusError
			if tt.wantStatus != 0 && (!errors.As(err, &se) || se.StatusCode != tt.wantStatus) {
				t.Errorf("error %v: want *StatusError with code %d", err, tt.wantStatus)
			}
		})
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		azure    bool
		wantPath string
		wantAuth func(r *http.Request) bool
	}{
		{
			name:     "openai bearer",
			wantPath: "/embeddings",
			wantAuth: func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer sk-test" },
		},
		{
			name:     "azure api-key",
			azure:    true,
			wantPath: "/deployments/embed-deploy/embeddings",
			wantAuth: func(r *http.Request) bool {
				return r.Header.Get("api-key") == "sk-test" && r.URL.Query().Get("api-version") == "2025-04-01-preview"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("path: got %q, want %q", r.URL.Path, tt.wantPath)
				}
				if !tt.wantAuth(r) {
					t.Errorf("auth headers wrong: %v", r.Header)
				}
				var req openaiEmbedRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Dimensions != 256 {
					t.Errorf("dimensions: got %d, want 256", req.Dimensions)
				}
				// reversed order, placed back by index
				_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`))
			}))
			defer srv.Close()

			e := NewOpenAIEmbedder(&OpenAIConfig{
				BaseURL:    srv.URL,
				APIKey:     "sk-test",
				Model:      "embed-deploy",
				Dimensions: 256,
				Azure:      tt.azure,
				APIVersion: "2025-04-01-preview",
			})
			got, err := e.Embed(context.Background(), []string{"first", "second"})
			if err != nil {
				t.Fatalf("Embed() unexpected error: %v", err)
			}
			if got[0][0] != 1 || got[1][0] != 2 {
				t.Errorf("embeddings not placed by index: %v", got)
			}
		})
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"Incorrect API key"}}`, wantMsg: "Incorrect API key"},
		{name: "index out of range", status: http.StatusOK, body: `{"data":[{"index":5,"embedding":[1]}]}`, wantMsg: "out of range"},
		{name: "duplicate index", status: http.StatusOK, body: `{"data":[{"index":0,"embedding":[1]},{"index":0,"embedding":[2]}]}`, wantMsg: "no embedding for input 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
			texts := []string{"a"}
			if tt.name == "duplicate index" {
				texts = []string{"a", "b"}
			}
			_, err := e.Embed(context.Background(), texts)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Embed() error: got %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseDevice(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Device{"": DeviceAuto, "auto": DeviceAuto, "cpu": DeviceCPU} {
		got, err := ParseDevice(in)
		if err != nil || got != want {
			t.Errorf("ParseDevice(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDevice("cuda"); err == nil {
		t.Error("ParseDevice(cuda): expected error")
	}
}
