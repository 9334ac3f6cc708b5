package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillworks/quill/internal/client"
	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/storage"
	"github.com/quillworks/quill/internal/store"
)

const testToken = "test-token"

// newTestServer wires a gateway against the given upstream base URL with a
// throwaway SQLite store.
func newTestServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "quill.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(Config{
		Listen: "127.0.0.1:0",
		Token:  testToken,
		Stream: config.StreamConfig{
			ChatParseErrorCeiling:       10,
			ValidationParseErrorCeiling: 15,
			InactivityTimeout:           5 * time.Second,
		},
	}, client.New(upstreamURL, "up-token", logger), store.NewConversationStore(db), store.NewMessageStore(db), logger)
}

func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestHealthzUnauthenticated(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp HealthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("got %#v", resp)
	}
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	router := s.setupRoutes()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status %d want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/conversations/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1")
	router := s.setupRoutes()
	ctx := context.Background()

	conv, err := s.conversations.Create(ctx, "hello world", "chat")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.messages.Append(ctx, conv.ID, store.RoleUser, "hello world", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/conversations/"+conv.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	var resp ConversationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Conversation.ID != conv.ID || len(resp.Messages) != 1 {
		t.Fatalf("got %#v", resp)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/conversations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/v1/conversations/"+conv.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/conversations/"+conv.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status %d", rec.Code)
	}
}
