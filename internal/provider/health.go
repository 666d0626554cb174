package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HealthChecker probes a backend without spending tokens.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck is a GET against a cheap listing endpoint of the backend.
type httpHealthCheck struct {
	url    string
	header http.Header
	client *http.Client
}

func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health check request: %w", err)
	}
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health check: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider: health check: HTTP %d from %s", resp.StatusCode, h.url)
	}
	return nil
}

// HealthCheck returns a zero-cost checker for the configured backend, or nil
// when the backend has no cheap listing endpoint. Callers fall back to a
// one-token Generate in that case.
func (c *Config) HealthCheck() HealthChecker {
	client := &http.Client{Timeout: 5 * time.Second}
	switch c.Backend {
	case BackendOllama:
		host := c.Ollama.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		return &httpHealthCheck{url: strings.TrimRight(host, "/") + "/api/tags", client: client}
	case BackendOpenAI:
		base := c.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		h := http.Header{}
		h.Set("Authorization", "Bearer "+c.OpenAI.APIKey)
		return &httpHealthCheck{url: strings.TrimRight(base, "/") + "/models", header: h, client: client}
	case BackendAzure:
		h := http.Header{}
		h.Set("api-key", c.AzureOpenAI.APIKey)
		url := fmt.Sprintf("%s/openai/models?api-version=%s", strings.TrimRight(c.AzureOpenAI.Endpoint, "/"), c.AzureOpenAI.APIVersion)
		return &httpHealthCheck{url: url, header: h, client: client}
	}
	return nil
}
