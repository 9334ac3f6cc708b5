// Package patch translates document-update events into calls against the
// editor contract.
package patch

import (
	"log/slog"

	"github.com/quillworks/quill/internal/event"
)

// Editor is the narrow contract quill holds against the rich-text editor
// collaborator. Section indexes are zero-based.
type Editor interface {
	GetHTML() string
	SetContent(html string)
	ReplaceSection(index int, title, content string)
	AppendSection(title, content string)
	InsertSection(index int, title, content string)
	DeleteSection(index int)
	InsertImageAfterSection(index int, url, description string) bool
	HighlightSpan(text, issueID string, chunkIndex int, color string)
	ClearHighlights()
	ScrollToHighlight(issueID string) bool
}

// Dispatcher maps each document_update-family event to exactly one editor
// call. Missing editor and unknown operations are logged no-ops; the session
// always continues.
type Dispatcher struct {
	editor Editor
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. editor may be nil if the collaborator
// has not mounted yet; see SetEditor.
func NewDispatcher(editor Editor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{editor: editor, logger: logger}
}

// SetEditor attaches (or replaces) the editor collaborator.
func (d *Dispatcher) SetEditor(e Editor) {
	d.editor = e
}

// Apply performs one section-scoped operation.
func (d *Dispatcher) Apply(ev event.DocumentUpdate) {
	if d.editor == nil {
		d.logger.Warn("document update skipped, editor not mounted",
			"operation", ev.Operation, "section_index", ev.SectionIndex)
		return
	}
	switch ev.Operation {
	case event.OpReplace:
		d.editor.ReplaceSection(ev.SectionIndex, ev.Title, ev.Content)
	case event.OpAppend:
		d.editor.AppendSection(ev.Title, ev.Content)
	case event.OpInsert:
		d.editor.InsertSection(ev.SectionIndex, ev.Title, ev.Content)
	case event.OpDelete:
		d.editor.DeleteSection(ev.SectionIndex)
	case event.OpInsertImage:
		if !d.editor.InsertImageAfterSection(ev.SectionIndex, ev.ImageURL, ev.ImageDescription) {
			d.logger.Warn("image insertion rejected by editor",
				"section_index", ev.SectionIndex, "image_url", ev.ImageURL)
		}
	default:
		d.logger.Warn("dropping unknown document operation", "operation", ev.Operation)
	}
}

// ApplyDraft replaces the whole document with an article_draft snapshot.
func (d *Dispatcher) ApplyDraft(html string) {
	d.applyFull("article_draft", html)
}

// ApplyFinal replaces the whole document with the final HTML carried by a
// complete event.
func (d *Dispatcher) ApplyFinal(html string) {
	d.applyFull("final_html", html)
}

func (d *Dispatcher) applyFull(source, html string) {
	if html == "" {
		return
	}
	if d.editor == nil {
		d.logger.Warn("full-document update skipped, editor not mounted", "source", source)
		return
	}
	d.editor.SetContent(html)
}
