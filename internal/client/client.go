// Package client opens the upstream SSE streams consumed by the session
// controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// HTTPError reports a non-success upstream status observed before the read
// loop started.
type HTTPError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d %s: %s", e.Status, e.StatusText, e.Body)
}

// ChatMessage is one turn of upstream conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body for the chat-completions stream.
type ChatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ValidateRequest is the body for one chunk's validation stream.
type ValidateRequest struct {
	ChunkIndex int      `json:"chunk_index"`
	HTML       string   `json:"html"`
	Categories []string `json:"categories,omitempty"`
}

// AgentRequest is the body for the document-agent stream.
type AgentRequest struct {
	Instruction  string        `json:"instruction"`
	DocumentHTML string        `json:"document_html,omitempty"`
	History      []ChatMessage `json:"history,omitempty"`
}

// Client talks to the upstream LLM backend. The embedded http.Client carries
// no timeout; streams are long-lived and bounded by the session's inactivity
// watchdog instead.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an upstream client.
func New(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// OpenChat starts a chat-completions stream.
func (c *Client) OpenChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	req.Stream = true
	return c.open(ctx, "/v1/chat/completions", req)
}

// OpenValidation starts a validation stream for one document chunk.
func (c *Client) OpenValidation(ctx context.Context, req ValidateRequest) (io.ReadCloser, error) {
	return c.open(ctx, "/v1/validate", req)
}

// OpenAgent starts a document-agent stream.
func (c *Client) OpenAgent(ctx context.Context, req AgentRequest) (io.ReadCloser, error) {
	return c.open(ctx, "/v1/agent/execute", req)
}

// open POSTs the payload and hands back the response body for the session to
// own. Callers must close it; non-2xx responses are closed here and returned
// as HTTPError.
func (c *Client) open(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect stream %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	c.logger.Debug("stream opened", "path", path, "content_type", resp.Header.Get("Content-Type"))
	return resp.Body, nil
}
