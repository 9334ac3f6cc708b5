package flow

import (
	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/patch"
	"github.com/quillworks/quill/internal/stream"
)

// AgentFlow folds a document-agent stream into an execution timeline and
// routes document updates to the patch dispatcher. The timeline records every
// attempted operation whether or not the editor applied it.
type AgentFlow struct {
	Timeline  *accum.Timeline
	Patcher   *patch.Dispatcher
	Summaries []event.ParagraphSummary

	complete *event.Complete
	errMsg   string
}

// NewAgentFlow binds a timeline and dispatcher.
func NewAgentFlow(timeline *accum.Timeline, patcher *patch.Dispatcher) *AgentFlow {
	return &AgentFlow{Timeline: timeline, Patcher: patcher}
}

// Handlers returns the session handler map for the agent surface.
func (f *AgentFlow) Handlers() stream.Handlers {
	return stream.Handlers{
		Status:       func(ev event.Status) { f.Timeline.SetStatus(ev) },
		ContentDelta: func(ev event.ContentDelta) { f.Timeline.AppendContent(ev.Text) },
		Thinking:     func(ev event.Thinking) { f.Timeline.AppendThinking(ev.Text) },
		ToolUse:      func(ev event.ToolUse) { f.Timeline.StartTool(ev) },
		ToolUpdate:   func(ev event.ToolUpdate) { f.Timeline.UpdateTool(ev) },
		ToolResult:   func(ev event.ToolResult) { f.Timeline.FinishTool(ev) },
		TodoList:     func(ev event.TodoList) { f.Timeline.SetTodos(ev.Items) },
		TodoItemUpdate: func(ev event.TodoItemUpdate) {
			f.Timeline.UpdateTodo(ev)
		},
		SectionProgress: func(ev event.SectionProgress) { f.Timeline.SyncProgress(ev) },
		DocumentUpdate: func(ev event.DocumentUpdate) {
			f.Timeline.NoteDocUpdate(ev)
			f.Patcher.Apply(ev)
		},
		ArticleDraft: func(ev event.ArticleDraft) {
			f.Timeline.NoteDraft()
			f.Patcher.ApplyDraft(ev.HTML)
		},
		ParagraphSummary: func(ev event.ParagraphSummary) {
			f.Summaries = append(f.Summaries, ev)
		},
		Complete: func(ev event.Complete) {
			f.complete = &ev
			f.Patcher.ApplyFinal(ev.FinalHTML)
		},
		Error: func(ev event.Error) {
			f.errMsg = ev.Message
			f.Timeline.SetStatus(event.Status{Phase: "error", Message: ev.Message})
		},
		// The implicit finish marker is the turn boundary on this surface.
		Finish: func(event.Finish) { f.Timeline.NextTurn() },
	}
}

// Finalize closes any open streaming block so partial text survives the
// terminal transition as a finished block.
func (f *AgentFlow) Finalize(out stream.Outcome) {
	f.Timeline.Close()
}

// Complete returns the terminal success payload, if one arrived.
func (f *AgentFlow) Complete() (event.Complete, bool) {
	if f.complete == nil {
		return event.Complete{}, false
	}
	return *f.complete, true
}

// FailureMessage returns the single user-visible error text for a failed
// session, or "" when the session did not fail.
func (f *AgentFlow) FailureMessage(out stream.Outcome) string {
	if f.errMsg != "" {
		return f.errMsg
	}
	if out.State == stream.Failed {
		return FriendlyError(out.Err)
	}
	return ""
}
