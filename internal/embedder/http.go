// Package embedder provides implementations of the rag.Embedder interface for
// converting post text into dense vector embeddings. Each implementation
// talks to a different backend (Ollama, OpenAI, Azure OpenAI) via plain HTTP.
// CachedEmbedder wraps any of them with a shared Redis cache.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 20

// StatusError is returned when an embedding backend answers with a non-2xx
// status. It is never retried.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the error shapes of both Ollama ({"error": "msg"}) and
// OpenAI ({"error": {"message": "msg"}}).
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

func (b errorBody) message() string {
	if len(b.Error) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(b.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b.Error, &obj) == nil {
		return obj.Message
	}
	return string(b.Error)
}

// postJSON sends in as a JSON POST body and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		msg := ""
		if json.Unmarshal(body, &eb) == nil {
			msg = eb.message()
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
