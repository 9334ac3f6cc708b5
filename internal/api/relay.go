package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/client"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/flow"
	"github.com/quillworks/quill/internal/patch"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/internal/stream"
)

// ChatStreamRequest is the JSON body for POST /v1/chat.
type ChatStreamRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ValidateChunk is one document chunk submitted for validation.
type ValidateChunk struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

// ValidateStreamRequest is the JSON body for POST /v1/validate.
type ValidateStreamRequest struct {
	Chunks []ValidateChunk `json:"chunks"`
}

// AgentStreamRequest is the JSON body for POST /v1/agent.
type AgentStreamRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Instruction    string `json:"instruction"`
	DocumentHTML   string `json:"document_html,omitempty"`
}

// sessionEnd is the final SSE event of every relay stream.
type sessionEnd struct {
	State          string              `json:"state"`
	ConversationID string              `json:"conversation_id,omitempty"`
	DocumentHTML   string              `json:"document_html,omitempty"`
	Results        []accum.ChunkResult `json:"results,omitempty"`
	Frames         int                 `json:"frames"`
	ParseErrors    int                 `json:"parse_errors"`
}

// sessionError is the single user-visible failure event.
type sessionError struct {
	Message string `json:"message"`
}

// handleChat handles POST /v1/chat: it runs one chat session upstream and
// relays the normalized events to the caller as SSE, persisting both sides
// of the exchange.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	conv, history, err := s.resolveConversation(r.Context(), req.ConversationID, req.Message, "chat")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if _, err := s.messages.Append(r.Context(), conv.ID, store.RoleUser, req.Message, ""); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to persist message")
		return
	}

	ctx, release := s.surface("chat:" + conv.ID).Begin(r.Context())
	defer release()

	body, err := s.upstream.OpenChat(ctx, client.ChatRequest{
		Model:    s.config.Model,
		Messages: append(history, client.ChatMessage{Role: "user", Content: req.Message}),
	})
	if err != nil {
		s.logger.Error("failed to open chat stream", "error", err)
		s.writeError(w, http.StatusBadGateway, flow.FriendlyError(err))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		_ = body.Close()
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cf := flow.NewChatFlow(accum.NewChat(nil))
	handlers := cf.Handlers()
	handlers.Tap = sw.relay

	sess := stream.New(handlers, stream.Options{
		ParseErrorCeiling: s.config.Stream.ChatParseErrorCeiling,
		InactivityTimeout: s.config.Stream.InactivityTimeout,
		Logger:            s.logger,
	})
	out := sess.Run(ctx, body)

	record := cf.Finalize(out)
	if _, err := s.messages.Append(r.Context(), conv.ID, store.RoleAssistant, record.Text, string(record.Reason)); err != nil {
		s.logger.Error("failed to persist assistant message", "conversation_id", conv.ID, "error", err)
	}
	_ = s.conversations.Touch(r.Context(), conv.ID)

	if msg := cf.FailureMessage(out); msg != "" {
		sw.send("session_error", sessionError{Message: msg})
	}
	sw.send("session_end", sessionEnd{
		State:          out.State.String(),
		ConversationID: conv.ID,
		Frames:         out.Frames,
		ParseErrors:    out.ParseErrors,
	})
}

// handleValidate handles POST /v1/validate: one upstream session per chunk,
// each folded into a shared validation accumulator. A failed chunk yields an
// error entry without disturbing the entries of other chunks.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Chunks) == 0 {
		s.writeError(w, http.StatusBadRequest, "chunks are required")
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	acc := accum.NewValidation(nil)
	for _, chunk := range req.Chunks {
		body, err := s.upstream.OpenValidation(r.Context(), client.ValidateRequest{
			ChunkIndex: chunk.Index,
			HTML:       chunk.HTML,
		})
		if err != nil {
			s.logger.Error("failed to open validation stream", "chunk_index", chunk.Index, "error", err)
			acc.MarkError(chunk.Index, flow.FriendlyError(err))
			res, _ := acc.Get(chunk.Index)
			sw.send("chunk_result", res)
			continue
		}

		vf := flow.NewValidateFlow(acc, chunk.Index)
		sess := stream.New(vf.Handlers(), stream.Options{
			ParseErrorCeiling: s.config.Stream.ValidationParseErrorCeiling,
			InactivityTimeout: s.config.Stream.InactivityTimeout,
			Logger:            s.logger,
		})
		out := sess.Run(r.Context(), body)
		sw.send("chunk_result", vf.Finalize(out))

		if out.State == stream.Aborted {
			break
		}
	}

	sw.send("session_end", sessionEnd{State: stream.Completed.String(), Results: acc.Results()})
}

// handleAgent handles POST /v1/agent: the document agent's events are folded
// into an execution timeline, document updates are applied to an editor
// seeded from the request, and the final event carries the resulting HTML.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		s.writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	conv, history, err := s.resolveConversation(r.Context(), req.ConversationID, req.Instruction, "agent")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if _, err := s.messages.Append(r.Context(), conv.ID, store.RoleUser, req.Instruction, ""); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to persist message")
		return
	}

	ctx, release := s.surface("agent:" + conv.ID).Begin(r.Context())
	defer release()

	body, err := s.upstream.OpenAgent(ctx, client.AgentRequest{
		Instruction:  req.Instruction,
		DocumentHTML: req.DocumentHTML,
		History:      history,
	})
	if err != nil {
		s.logger.Error("failed to open agent stream", "error", err)
		s.writeError(w, http.StatusBadGateway, flow.FriendlyError(err))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		_ = body.Close()
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	doc := editor.NewDocument()
	doc.SetContent(req.DocumentHTML)
	timeline := accum.NewTimeline(s.logger, nil)
	af := flow.NewAgentFlow(timeline, patch.NewDispatcher(doc, s.logger))
	handlers := af.Handlers()
	handlers.Tap = sw.relay

	sess := stream.New(handlers, stream.Options{
		ParseErrorCeiling: s.config.Stream.ChatParseErrorCeiling,
		InactivityTimeout: s.config.Stream.InactivityTimeout,
		Logger:            s.logger,
	})
	out := sess.Run(ctx, body)
	af.Finalize(out)

	reply := agentReplyText(af, timeline)
	if _, err := s.messages.Append(r.Context(), conv.ID, store.RoleAssistant, reply, terminalTag(out.State)); err != nil {
		s.logger.Error("failed to persist assistant message", "conversation_id", conv.ID, "error", err)
	}
	_ = s.conversations.Touch(r.Context(), conv.ID)

	if msg := af.FailureMessage(out); msg != "" {
		sw.send("session_error", sessionError{Message: msg})
	}
	sw.send("session_end", sessionEnd{
		State:          out.State.String(),
		ConversationID: conv.ID,
		DocumentHTML:   doc.GetHTML(),
		Frames:         out.Frames,
		ParseErrors:    out.ParseErrors,
	})
}

// resolveConversation loads the conversation and its history, creating a new
// conversation titled from the first message when no id is given.
func (s *Server) resolveConversation(ctx context.Context, id, seed, surface string) (*store.Conversation, []client.ChatMessage, error) {
	if id == "" {
		conv, err := s.conversations.Create(ctx, titleFrom(seed), surface)
		return conv, nil, err
	}

	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			conv, err = s.conversations.Create(ctx, titleFrom(seed), surface)
			return conv, nil, err
		}
		return nil, nil, err
	}

	msgs, err := s.messages.ListByConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	history := make([]client.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, client.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return conv, history, nil
}

func agentReplyText(af *flow.AgentFlow, timeline *accum.Timeline) string {
	if complete, ok := af.Complete(); ok && complete.Message != "" {
		return complete.Message
	}
	var b strings.Builder
	for _, block := range timeline.Blocks() {
		if block.Kind == accum.BlockContent {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func terminalTag(state stream.State) string {
	switch state {
	case stream.Aborted:
		return string(accum.FinalAborted)
	case stream.Failed:
		return string(accum.FinalFailed)
	default:
		return string(accum.FinalCompleted)
	}
}

func titleFrom(seed string) string {
	title := strings.TrimSpace(seed)
	if len(title) > 60 {
		title = title[:60]
	}
	if title == "" {
		title = "Untitled"
	}
	return title
}

// sseWriter emits `event:`/`data:` frames, flushing after every event so
// each delta is independently observable by the caller.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseWriter{w: w, f: f}, true
}

// relay mirrors one parsed upstream event to the caller under its kind name.
func (sw *sseWriter) relay(ev event.Event) {
	sw.send(string(ev.Kind()), ev)
}

func (sw *sseWriter) send(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data)
	sw.f.Flush()
}
