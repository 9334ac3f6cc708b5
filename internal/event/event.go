// Package event defines the typed application events decoded from upstream
// stream frames, covering both the tagged agent/validation protocol and the
// OpenAI-compatible chat-completion delta protocol.
package event

import "encoding/json"

// Kind identifies the variant of a parsed stream event.
type Kind string

const (
	KindStatus           Kind = "status"
	KindContentDelta     Kind = "content_delta"
	KindThinking         Kind = "thinking"
	KindToolUse          Kind = "tool_use"
	KindToolUpdate       Kind = "tool_update"
	KindToolResult       Kind = "tool_result"
	KindTodoList         Kind = "todo_list"
	KindTodoItemUpdate   Kind = "todo_item_update"
	KindDocumentUpdate   Kind = "document_update"
	KindSectionProgress  Kind = "section_progress"
	KindArticleDraft     Kind = "article_draft"
	KindParagraphSummary Kind = "paragraph_summary"
	KindComplete         Kind = "complete"
	KindError            Kind = "error"
	KindFinish           Kind = "finish"
)

// Event is one decoded stream frame. The set of implementations is closed;
// dispatch sites switch exhaustively on the concrete type.
type Event interface {
	Kind() Kind
}

// Status carries progress narration. It updates a "current status" slot and
// nothing else.
type Status struct {
	Phase           string          `json:"phase"`
	Message         string          `json:"message"`
	CurrentStep     int             `json:"current_step,omitempty"`
	TotalSteps      int             `json:"total_steps,omitempty"`
	StepDescription string          `json:"step_description,omitempty"`
	Timeline        json.RawMessage `json:"timeline,omitempty"`
}

// ContentDelta is an incremental character run for the main content channel.
type ContentDelta struct {
	Text string `json:"text"`
}

// Thinking is an incremental run on the reasoning channel. It is never merged
// with content deltas.
type Thinking struct {
	Text string `json:"text"`
}

// ToolUse declares a new in-flight tool invocation.
type ToolUse struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
}

// ToolUpdate appends to the running result text of an open tool invocation.
type ToolUpdate struct {
	ToolCallID string `json:"tool_call_id"`
	Text       string `json:"text"`
}

// ToolResult closes a tool invocation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// TodoItem is one entry of the side-channel checklist.
type TodoItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TodoList replaces the checklist wholesale.
type TodoList struct {
	Items []TodoItem `json:"items"`
}

// TodoItemUpdate patches one checklist entry by id.
type TodoItemUpdate struct {
	TodoID string `json:"todo_id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Document update operations.
const (
	OpReplace     = "replace"
	OpAppend      = "append"
	OpInsert      = "insert"
	OpDelete      = "delete"
	OpInsertImage = "insert_image"
)

// DocumentUpdate is a section-scoped edit routed to the patch dispatcher.
type DocumentUpdate struct {
	Operation        string `json:"operation"`
	SectionIndex     int    `json:"section_index"`
	Title            string `json:"title,omitempty"`
	Content          string `json:"content,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	ImageDescription string `json:"image_description,omitempty"`
}

// SectionProgress reports auto-writer/validation progress and sizes the
// checklist to Total.
type SectionProgress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Title   string `json:"title,omitempty"`
}

// ArticleDraft is a full-document HTML snapshot that replaces, never appends.
type ArticleDraft struct {
	HTML string `json:"html"`
}

// ParagraphSummary is a standalone chat-visible message, never merged into
// the streaming text.
type ParagraphSummary struct {
	SectionIndex int    `json:"section_index"`
	SectionTitle string `json:"section_title"`
	Summary      string `json:"summary"`
	Current      int    `json:"current"`
	Total        int    `json:"total"`
}

// Complete is the terminal success signal.
type Complete struct {
	Message   string          `json:"message,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Timeline  json.RawMessage `json:"timeline,omitempty"`
	FinalHTML string          `json:"final_html,omitempty"`
	Title     string          `json:"title,omitempty"`
}

// Error is the terminal failure signal. Accumulated state is preserved.
type Error struct {
	Message string          `json:"message"`
	Details json.RawMessage `json:"error_details,omitempty"`
}

// Finish is the implicit OpenAI-compatible end-of-turn marker. It is a soft
// boundary; transport EOF remains the hard terminator.
type Finish struct {
	Reason string `json:"reason"`
}

func (Status) Kind() Kind           { return KindStatus }
func (ContentDelta) Kind() Kind     { return KindContentDelta }
func (Thinking) Kind() Kind         { return KindThinking }
func (ToolUse) Kind() Kind          { return KindToolUse }
func (ToolUpdate) Kind() Kind       { return KindToolUpdate }
func (ToolResult) Kind() Kind       { return KindToolResult }
func (TodoList) Kind() Kind         { return KindTodoList }
func (TodoItemUpdate) Kind() Kind   { return KindTodoItemUpdate }
func (DocumentUpdate) Kind() Kind   { return KindDocumentUpdate }
func (SectionProgress) Kind() Kind  { return KindSectionProgress }
func (ArticleDraft) Kind() Kind     { return KindArticleDraft }
func (ParagraphSummary) Kind() Kind { return KindParagraphSummary }
func (Complete) Kind() Kind         { return KindComplete }
func (Error) Kind() Kind            { return KindError }
func (Finish) Kind() Kind           { return KindFinish }
