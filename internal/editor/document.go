// Package editor provides an in-memory section-model document implementing
// the editor contract, used by the gateway, the CLI, and tests.
package editor

import (
	"fmt"
	"strings"
)

// Section is one titled unit of the document.
type Section struct {
	Title   string
	Content string
}

// Highlight is one registered issue span.
type Highlight struct {
	Text       string
	ChunkIndex int
	Color      string
}

// Document is a section-model document. It is not safe for concurrent use;
// like the accumulators it follows the single-writer discipline.
type Document struct {
	sections   []Section
	highlights map[string]Highlight
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{highlights: make(map[string]Highlight)}
}

// GetHTML renders the document as section-delimited HTML.
func (d *Document) GetHTML() string {
	var b strings.Builder
	for _, s := range d.sections {
		if s.Title != "" {
			fmt.Fprintf(&b, "<h2>%s</h2>\n", s.Title)
		}
		b.WriteString(s.Content)
		if s.Content != "" && !strings.HasSuffix(s.Content, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// SetContent replaces the whole document, splitting the HTML back into
// sections on <h2> headings. Content before the first heading becomes an
// untitled leading section.
func (d *Document) SetContent(html string) {
	d.sections = nil
	rest := html
	for {
		open := strings.Index(rest, "<h2>")
		if open < 0 {
			if body := strings.TrimSpace(rest); body != "" {
				d.sections = append(d.sections, Section{Content: body})
			}
			return
		}
		if lead := strings.TrimSpace(rest[:open]); lead != "" {
			d.sections = append(d.sections, Section{Content: lead})
		}
		rest = rest[open+len("<h2>"):]
		closeTag := strings.Index(rest, "</h2>")
		if closeTag < 0 {
			d.sections = append(d.sections, Section{Content: strings.TrimSpace(rest)})
			return
		}
		title := strings.TrimSpace(rest[:closeTag])
		rest = rest[closeTag+len("</h2>"):]
		next := strings.Index(rest, "<h2>")
		var body string
		if next < 0 {
			body = rest
			rest = ""
		} else {
			body = rest[:next]
			rest = rest[next:]
		}
		d.sections = append(d.sections, Section{Title: title, Content: strings.TrimSpace(body)})
		if rest == "" {
			return
		}
	}
}

// ReplaceSection overwrites the section at index. Out-of-range indexes are
// ignored.
func (d *Document) ReplaceSection(index int, title, content string) {
	if index < 0 || index >= len(d.sections) {
		return
	}
	if title != "" {
		d.sections[index].Title = title
	}
	d.sections[index].Content = content
}

// AppendSection adds a section at the end.
func (d *Document) AppendSection(title, content string) {
	d.sections = append(d.sections, Section{Title: title, Content: content})
}

// InsertSection inserts a section before index. An index at or past the end
// appends.
func (d *Document) InsertSection(index int, title, content string) {
	if index < 0 {
		index = 0
	}
	if index >= len(d.sections) {
		d.AppendSection(title, content)
		return
	}
	d.sections = append(d.sections[:index],
		append([]Section{{Title: title, Content: content}}, d.sections[index:]...)...)
}

// DeleteSection removes the section at index. Out-of-range indexes are
// ignored.
func (d *Document) DeleteSection(index int) {
	if index < 0 || index >= len(d.sections) {
		return
	}
	d.sections = append(d.sections[:index], d.sections[index+1:]...)
}

// InsertImageAfterSection appends an image figure to the section at index.
// Returns false when the index is out of range.
func (d *Document) InsertImageAfterSection(index int, url, description string) bool {
	if index < 0 || index >= len(d.sections) {
		return false
	}
	figure := fmt.Sprintf(`<figure><img src="%s" alt="%s"></figure>`, url, description)
	s := &d.sections[index]
	if s.Content != "" {
		s.Content += "\n"
	}
	s.Content += figure
	return true
}

// HighlightSpan registers an issue span. Highlights are a registry on this
// model; a rich-text editor would mark the text visually.
func (d *Document) HighlightSpan(text, issueID string, chunkIndex int, color string) {
	d.highlights[issueID] = Highlight{Text: text, ChunkIndex: chunkIndex, Color: color}
}

// ClearHighlights drops every registered highlight.
func (d *Document) ClearHighlights() {
	d.highlights = make(map[string]Highlight)
}

// ScrollToHighlight reports whether the issue span is registered.
func (d *Document) ScrollToHighlight(issueID string) bool {
	_, ok := d.highlights[issueID]
	return ok
}

// Sections returns a snapshot of the section list.
func (d *Document) Sections() []Section {
	return append([]Section(nil), d.sections...)
}

// Highlights returns a snapshot of the highlight registry.
func (d *Document) Highlights() map[string]Highlight {
	out := make(map[string]Highlight, len(d.highlights))
	for k, v := range d.highlights {
		out[k] = v
	}
	return out
}
