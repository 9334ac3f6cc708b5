// Package accum holds the single-writer accumulators that fold stream events
// into UI-renderable snapshots. Only a session's dispatch step may mutate an
// accumulator; readers take snapshots between event applications.
package accum

import (
	"strings"
	"time"
)

// FinalReason tags how a streaming record reached its terminal state.
type FinalReason string

const (
	FinalCompleted FinalReason = "completed"
	FinalAborted   FinalReason = "aborted"
	FinalFailed    FinalReason = "failed"
)

// Message is a frozen chat record produced when a turn finalizes.
type Message struct {
	Text   string
	Reason FinalReason
	At     time.Time
}

// Chat accumulates streamed completion text for one conversation turn.
// Appends are monotonic: earlier text is never altered or removed.
type Chat struct {
	text   strings.Builder
	frozen *Message
	notify func()
}

// NewChat creates a chat accumulator. notify, if non-nil, fires after every
// mutation so each delta is independently observable.
func NewChat(notify func()) *Chat {
	return &Chat{notify: notify}
}

// Append adds a content delta to the growing text. Appends after finalization
// are ignored; the turn is already frozen.
func (c *Chat) Append(text string) {
	if c.frozen != nil || text == "" {
		return
	}
	c.text.WriteString(text)
	c.changed()
}

// Text returns the current snapshot of the streamed text.
func (c *Chat) Text() string {
	return c.text.String()
}

// Finalize freezes the accumulated text into an immutable message record.
// Re-finalizing returns the original record; the first reason wins.
func (c *Chat) Finalize(reason FinalReason) Message {
	if c.frozen != nil {
		return *c.frozen
	}
	m := Message{Text: c.text.String(), Reason: reason, At: time.Now().UTC()}
	c.frozen = &m
	c.changed()
	return m
}

// Finalized reports whether the turn has reached a terminal record.
func (c *Chat) Finalized() bool {
	return c.frozen != nil
}

// Clear resets the accumulator. Only an explicit user clear action calls
// this; stream outcomes never do.
func (c *Chat) Clear() {
	c.text.Reset()
	c.frozen = nil
	c.changed()
}

func (c *Chat) changed() {
	if c.notify != nil {
		c.notify()
	}
}
