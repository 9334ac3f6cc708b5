package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quillworks/quill/internal/store"
)

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ConversationResponse is returned by GET /v1/conversations/{conversation_id}.
type ConversationResponse struct {
	Conversation *store.Conversation `json:"conversation"`
	Messages     []*store.Message    `json:"messages"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleListConversations handles GET /v1/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []*store.Conversation{}
	}
	respondJSON(w, http.StatusOK, convs)
}

// handleGetConversation handles GET /v1/conversations/{conversation_id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversation_id")

	conv, err := s.conversations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("failed to get conversation", "conversation_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	msgs, err := s.messages.ListByConversation(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list messages", "conversation_id", id, "error", err)
		msgs = nil
	}

	respondJSON(w, http.StatusOK, ConversationResponse{Conversation: conv, Messages: msgs})
}

// handleDeleteConversation handles DELETE /v1/conversations/{conversation_id}.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversation_id")
	if err := s.conversations.Delete(r.Context(), id); err != nil {
		s.logger.Error("failed to delete conversation", "conversation_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
