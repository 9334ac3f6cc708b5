// Package flow binds accumulators and the patch dispatcher to stream session
// handlers. The three surfaces (chat, agent timeline, validation) share one
// session controller and differ only in the handler maps built here.
package flow

import (
	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/stream"
)

// ChatFlow folds a plain chat-completion stream into a chat accumulator.
// Paragraph summaries become standalone messages on the side, never merged
// into the streaming text.
type ChatFlow struct {
	Acc       *accum.Chat
	Summaries []event.ParagraphSummary

	completeMsg string
	errMsg      string
}

// NewChatFlow binds a chat accumulator.
func NewChatFlow(acc *accum.Chat) *ChatFlow {
	return &ChatFlow{Acc: acc}
}

// Handlers returns the session handler map for the chat surface.
func (f *ChatFlow) Handlers() stream.Handlers {
	return stream.Handlers{
		ContentDelta: func(ev event.ContentDelta) { f.Acc.Append(ev.Text) },
		ParagraphSummary: func(ev event.ParagraphSummary) {
			f.Summaries = append(f.Summaries, ev)
		},
		Complete: func(ev event.Complete) { f.completeMsg = ev.Message },
		Error:    func(ev event.Error) { f.errMsg = ev.Message },
		// finish_reason is a soft end-of-turn marker; transport EOF ends the
		// session.
		Finish: func(event.Finish) {},
	}
}

// Finalize freezes the accumulator according to the session outcome and
// returns the terminal message record. Partial text survives aborts and
// failures.
func (f *ChatFlow) Finalize(out stream.Outcome) accum.Message {
	switch out.State {
	case stream.Aborted:
		return f.Acc.Finalize(accum.FinalAborted)
	case stream.Failed:
		return f.Acc.Finalize(accum.FinalFailed)
	default:
		if f.errMsg != "" {
			return f.Acc.Finalize(accum.FinalFailed)
		}
		return f.Acc.Finalize(accum.FinalCompleted)
	}
}

// FailureMessage returns the single user-visible error text for a failed
// session, or "" when the session did not fail.
func (f *ChatFlow) FailureMessage(out stream.Outcome) string {
	if f.errMsg != "" {
		return f.errMsg
	}
	if out.State == stream.Failed {
		return FriendlyError(out.Err)
	}
	return ""
}
