package accum

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/quillworks/quill/internal/event"
)

// BlockKind identifies one unit of the rendered execution timeline.
type BlockKind string

const (
	BlockContent       BlockKind = "content"
	BlockThinking      BlockKind = "thinking"
	BlockToolUse       BlockKind = "tool_use"
	BlockTurnSeparator BlockKind = "turn_separator"
	BlockDocUpdate     BlockKind = "doc_update"
)

// ToolStatus is the lifecycle state of a tool invocation block.
type ToolStatus string

const (
	ToolRunning  ToolStatus = "running"
	ToolComplete ToolStatus = "complete"
	ToolError    ToolStatus = "error"
)

// ToolCall is the mutable payload of a tool_use block. It is located by id
// and updated in place; the same id never produces a second block.
type ToolCall struct {
	ID        string
	Name      string
	Input     json.RawMessage
	Status    ToolStatus
	Result    string
	IsError   bool
	StartedAt time.Time
	EndedAt   *time.Time
}

// DocNote records a document operation on the timeline for audit display,
// independent of the patch actually being applied.
type DocNote struct {
	Operation    string
	SectionIndex int
	Title        string
	ImageURL     string
}

// Block is one timeline entry. Exactly one payload field is set, matching
// Kind.
type Block struct {
	Kind BlockKind
	Text string
	Tool *ToolCall
	Turn int
	Doc  *DocNote
}

// StatusLine is the "current status" slot updated by status events.
type StatusLine struct {
	Phase           string
	Message         string
	CurrentStep     int
	TotalSteps      int
	StepDescription string
}

// Timeline folds agent events into an ordered list of execution blocks.
// Invariant: a content or thinking block being streamed into is always the
// last block; any other arrival closes it first. Blocks render in strict
// arrival order.
type Timeline struct {
	blocks []*Block
	open   *Block
	tools  map[string]*ToolCall
	turns  int
	todos  []event.TodoItem
	status StatusLine
	logger *slog.Logger
	notify func()
}

// NewTimeline creates an empty timeline. notify, if non-nil, fires after
// every mutation.
func NewTimeline(logger *slog.Logger, notify func()) *Timeline {
	return &Timeline{
		tools:  make(map[string]*ToolCall),
		logger: logger,
		notify: notify,
	}
}

// AppendContent streams text into the open content block, opening one if the
// current open block is a different kind.
func (t *Timeline) AppendContent(text string) {
	t.appendText(BlockContent, text)
}

// AppendThinking streams text into the open thinking block. Reasoning text is
// kept on its own channel, never merged with content.
func (t *Timeline) AppendThinking(text string) {
	t.appendText(BlockThinking, text)
}

func (t *Timeline) appendText(kind BlockKind, text string) {
	if text == "" {
		return
	}
	if t.open == nil || t.open.Kind != kind {
		t.closeOpen()
		b := &Block{Kind: kind}
		t.blocks = append(t.blocks, b)
		t.open = b
	}
	t.open.Text += text
	t.changed()
}

// StartTool opens a tool invocation block. A repeated tool_call_id is treated
// as already open, not re-created.
func (t *Timeline) StartTool(ev event.ToolUse) {
	if _, ok := t.tools[ev.ToolCallID]; ok {
		t.logger.Debug("tool_use for open invocation ignored", "tool_call_id", ev.ToolCallID)
		return
	}
	t.closeOpen()
	call := &ToolCall{
		ID:        ev.ToolCallID,
		Name:      ev.ToolName,
		Input:     ev.ToolInput,
		Status:    ToolRunning,
		StartedAt: time.Now().UTC(),
	}
	t.tools[ev.ToolCallID] = call
	t.blocks = append(t.blocks, &Block{Kind: BlockToolUse, Tool: call})
	t.changed()
}

// UpdateTool appends to the running result text of an open invocation.
// An unknown id is logged and ignored.
func (t *Timeline) UpdateTool(ev event.ToolUpdate) {
	call, ok := t.tools[ev.ToolCallID]
	if !ok {
		t.logger.Warn("tool_update for unknown invocation", "tool_call_id", ev.ToolCallID)
		return
	}
	call.Result += ev.Text
	t.changed()
}

// FinishTool closes an invocation with its terminal status and result.
// An unknown id is logged and ignored.
func (t *Timeline) FinishTool(ev event.ToolResult) {
	call, ok := t.tools[ev.ToolCallID]
	if !ok {
		t.logger.Warn("tool_result for unknown invocation", "tool_call_id", ev.ToolCallID)
		return
	}
	call.Status = ToolComplete
	if ev.IsError {
		call.Status = ToolError
	}
	call.Result = ev.Content
	call.IsError = ev.IsError
	now := time.Now().UTC()
	call.EndedAt = &now
	t.changed()
}

// NoteDocUpdate records a section-scoped document operation on the timeline.
func (t *Timeline) NoteDocUpdate(ev event.DocumentUpdate) {
	t.closeOpen()
	t.blocks = append(t.blocks, &Block{Kind: BlockDocUpdate, Doc: &DocNote{
		Operation:    ev.Operation,
		SectionIndex: ev.SectionIndex,
		Title:        ev.Title,
		ImageURL:     ev.ImageURL,
	}})
	t.changed()
}

// NoteDraft records a full-document snapshot operation on the timeline.
func (t *Timeline) NoteDraft() {
	t.closeOpen()
	t.blocks = append(t.blocks, &Block{Kind: BlockDocUpdate, Doc: &DocNote{Operation: "draft"}})
	t.changed()
}

// NextTurn closes the open block and appends a turn separator. Turn numbers
// start at 1.
func (t *Timeline) NextTurn() {
	t.closeOpen()
	t.turns++
	t.blocks = append(t.blocks, &Block{Kind: BlockTurnSeparator, Turn: t.turns})
	t.changed()
}

// SetStatus updates the current status slot. Status events narrate progress
// and mutate nothing else.
func (t *Timeline) SetStatus(ev event.Status) {
	t.status = StatusLine{
		Phase:           ev.Phase,
		Message:         ev.Message,
		CurrentStep:     ev.CurrentStep,
		TotalSteps:      ev.TotalSteps,
		StepDescription: ev.StepDescription,
	}
	t.changed()
}

// SetTodos replaces the side-channel checklist wholesale.
func (t *Timeline) SetTodos(items []event.TodoItem) {
	t.todos = append([]event.TodoItem(nil), items...)
	t.changed()
}

// UpdateTodo patches one checklist entry by id. Unmatched ids are logged and
// ignored.
func (t *Timeline) UpdateTodo(ev event.TodoItemUpdate) {
	for i := range t.todos {
		if t.todos[i].ID != ev.TodoID {
			continue
		}
		t.todos[i].Status = ev.Status
		if ev.Result != "" {
			t.todos[i].Result = ev.Result
		}
		if ev.Error != "" {
			t.todos[i].Error = ev.Error
		}
		t.changed()
		return
	}
	t.logger.Warn("todo_item_update for unknown item", "todo_id", ev.TodoID)
}

// SyncProgress sizes the checklist to a section_progress total and marks
// entries up to current as done.
func (t *Timeline) SyncProgress(ev event.SectionProgress) {
	if ev.Total <= 0 {
		return
	}
	if len(t.todos) != ev.Total {
		todos := make([]event.TodoItem, ev.Total)
		for i := range todos {
			todos[i] = event.TodoItem{ID: sectionTodoID(i), Label: "Section", Status: "pending"}
			if i < len(t.todos) {
				todos[i] = t.todos[i]
			}
		}
		t.todos = todos
	}
	for i := range t.todos {
		switch {
		case i < ev.Current:
			t.todos[i].Status = "done"
		case i == ev.Current:
			t.todos[i].Status = "running"
			if ev.Title != "" {
				t.todos[i].Label = ev.Title
			}
		}
	}
	t.changed()
}

// Close finalizes any open streaming block. Sessions call it on terminal
// transitions so aborted partial text survives as a closed block.
func (t *Timeline) Close() {
	if t.open != nil {
		t.closeOpen()
		t.changed()
	}
}

// Blocks returns a snapshot of the timeline in arrival order. Tool payloads
// are copied so renderers never observe mid-event mutation.
func (t *Timeline) Blocks() []Block {
	out := make([]Block, 0, len(t.blocks))
	for _, b := range t.blocks {
		cp := *b
		if b.Tool != nil {
			tool := *b.Tool
			cp.Tool = &tool
		}
		if b.Doc != nil {
			doc := *b.Doc
			cp.Doc = &doc
		}
		out = append(out, cp)
	}
	return out
}

// Todos returns a snapshot of the checklist.
func (t *Timeline) Todos() []event.TodoItem {
	return append([]event.TodoItem(nil), t.todos...)
}

// Status returns the current status slot.
func (t *Timeline) Status() StatusLine {
	return t.status
}

func (t *Timeline) closeOpen() {
	t.open = nil
}

func (t *Timeline) changed() {
	if t.notify != nil {
		t.notify()
	}
}

func sectionTodoID(i int) string {
	return "section-" + strconv.Itoa(i)
}
