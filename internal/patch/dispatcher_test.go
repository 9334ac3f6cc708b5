package patch

import (
	"io"
	"log/slog"
	"testing"

	"github.com/quillworks/quill/internal/event"
)

// recordingEditor captures the editor calls a dispatcher makes.
type recordingEditor struct {
	calls []string
	html  string
}

func (r *recordingEditor) GetHTML() string { return r.html }
func (r *recordingEditor) SetContent(html string) {
	r.html = html
	r.calls = append(r.calls, "set")
}
func (r *recordingEditor) ReplaceSection(index int, title, content string) {
	r.calls = append(r.calls, "replace")
}
func (r *recordingEditor) AppendSection(title, content string) {
	r.calls = append(r.calls, "append")
}
func (r *recordingEditor) InsertSection(index int, title, content string) {
	r.calls = append(r.calls, "insert")
}
func (r *recordingEditor) DeleteSection(index int) {
	r.calls = append(r.calls, "delete")
}
func (r *recordingEditor) InsertImageAfterSection(index int, url, description string) bool {
	r.calls = append(r.calls, "image")
	return index >= 0
}
func (r *recordingEditor) HighlightSpan(text, issueID string, chunkIndex int, color string) {}
func (r *recordingEditor) ClearHighlights()                                                 {}
func (r *recordingEditor) ScrollToHighlight(issueID string) bool                            { return false }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyRoutesOperations(t *testing.T) {
	cases := []struct {
		op   string
		want string
	}{
		{event.OpReplace, "replace"},
		{event.OpAppend, "append"},
		{event.OpInsert, "insert"},
		{event.OpDelete, "delete"},
		{event.OpInsertImage, "image"},
	}
	for _, tc := range cases {
		ed := &recordingEditor{}
		d := NewDispatcher(ed, testLogger())
		d.Apply(event.DocumentUpdate{Operation: tc.op, SectionIndex: 0, ImageURL: "u"})
		if len(ed.calls) != 1 || ed.calls[0] != tc.want {
			t.Fatalf("%s: got calls %v", tc.op, ed.calls)
		}
	}
}

func TestApplyUnknownOperationIsNoOp(t *testing.T) {
	ed := &recordingEditor{}
	d := NewDispatcher(ed, testLogger())
	d.Apply(event.DocumentUpdate{Operation: "rotate"})
	if len(ed.calls) != 0 {
		t.Fatalf("unknown op must not touch the editor: %v", ed.calls)
	}
}

func TestApplyNilEditorIsNoOp(t *testing.T) {
	d := NewDispatcher(nil, testLogger())
	// Must not panic.
	d.Apply(event.DocumentUpdate{Operation: event.OpReplace})
	d.ApplyDraft("<p>x</p>")
	d.ApplyFinal("<p>y</p>")
}

func TestApplyDraftAndFinal(t *testing.T) {
	ed := &recordingEditor{}
	d := NewDispatcher(ed, testLogger())

	d.ApplyDraft("<p>draft</p>")
	if ed.html != "<p>draft</p>" {
		t.Fatalf("draft not applied: %q", ed.html)
	}
	d.ApplyFinal("<p>final</p>")
	if ed.html != "<p>final</p>" {
		t.Fatalf("final not applied: %q", ed.html)
	}

	// Empty snapshots never clear the document.
	d.ApplyFinal("")
	if ed.html != "<p>final</p>" {
		t.Fatalf("empty html must be ignored: %q", ed.html)
	}
}

func TestSetEditorLateMount(t *testing.T) {
	d := NewDispatcher(nil, testLogger())
	d.Apply(event.DocumentUpdate{Operation: event.OpAppend})

	ed := &recordingEditor{}
	d.SetEditor(ed)
	d.Apply(event.DocumentUpdate{Operation: event.OpAppend})
	if len(ed.calls) != 1 {
		t.Fatalf("expected one call after mount, got %v", ed.calls)
	}
}
