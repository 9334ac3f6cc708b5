package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenChatSetsHeadersAndStreamFlag(t *testing.T) {
	var gotAuth, gotAccept string
	var gotBody ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", testLogger())
	body, err := c.OpenChat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	defer body.Close()

	if gotAuth != "Bearer secret" {
		t.Fatalf("auth header: %q", gotAuth)
	}
	if gotAccept != "text/event-stream" {
		t.Fatalf("accept header: %q", gotAccept)
	}
	if !gotBody.Stream {
		t.Fatalf("stream flag must be forced on")
	}
}

func TestOpenChatWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", testLogger())
	body, err := c.OpenChat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("open chat: %v", err)
	}
	body.Close()
}

func TestOpenValidationPath(t *testing.T) {
	var gotPath string
	var gotReq ValidateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
	}))
	defer srv.Close()

	c := New(srv.URL, "t", testLogger())
	body, err := c.OpenValidation(context.Background(), ValidateRequest{ChunkIndex: 2, HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("open validation: %v", err)
	}
	body.Close()

	if gotPath != "/v1/validate" {
		t.Fatalf("path: %q", gotPath)
	}
	if gotReq.ChunkIndex != 2 || gotReq.HTML != "<p>x</p>" {
		t.Fatalf("request: %#v", gotReq)
	}
}

func TestOpenAgentPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c := New(srv.URL, "t", testLogger())
	body, err := c.OpenAgent(context.Background(), AgentRequest{Instruction: "rewrite"})
	if err != nil {
		t.Fatalf("open agent: %v", err)
	}
	body.Close()

	if gotPath != "/v1/agent/execute" {
		t.Fatalf("path: %q", gotPath)
	}
}

func TestOpenNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "t", testLogger())
	_, err := c.OpenChat(context.Background(), ChatRequest{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests || httpErr.Body != "rate limited" {
		t.Fatalf("got %#v", httpErr)
	}
}

func TestOpenConnectError(t *testing.T) {
	c := New("http://127.0.0.1:1", "t", testLogger())
	if _, err := c.OpenChat(context.Background(), ChatRequest{}); err == nil {
		t.Fatalf("expected connection error")
	}
}
