package main

import (
	"strings"
	"testing"

	"github.com/quillworks/quill/internal/editor"
)

func TestTrimForLog(t *testing.T) {
	if got := trimForLog("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := trimForLog("a very long line of output", 10); got != "a very ..." {
		t.Fatalf("got %q", got)
	}
	if got := trimForLog("line\nbreaks", 100); got != "line breaks" {
		t.Fatalf("newlines must flatten, got %q", got)
	}
}

func TestConnectionLabel(t *testing.T) {
	if got := connectionLabel(false, false, nil); got != "connecting" {
		t.Fatalf("got %q", got)
	}
	if got := connectionLabel(true, false, nil); got != "open" {
		t.Fatalf("got %q", got)
	}
	if got := connectionLabel(true, true, nil); got != "closed" {
		t.Fatalf("got %q", got)
	}
}

func TestBodyWidthBounds(t *testing.T) {
	if got := bodyWidth(0); got != 80 {
		t.Fatalf("unknown width: %d", got)
	}
	if got := bodyWidth(20); got != 40 {
		t.Fatalf("narrow floor: %d", got)
	}
	if got := bodyWidth(120); got != 118 {
		t.Fatalf("wide: %d", got)
	}
}

func TestChunkSections(t *testing.T) {
	sections := []editor.Section{
		{Title: "A", Content: "<p>a</p>"},
		{Title: "B", Content: "<p>b</p>"},
		{Title: "C", Content: "<p>c</p>"},
	}
	chunks := chunkSections(sections, 2)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "<h2>A</h2>") || !strings.Contains(chunks[0], "<h2>B</h2>") {
		t.Fatalf("chunk 0: %q", chunks[0])
	}
	if !strings.Contains(chunks[1], "<h2>C</h2>") {
		t.Fatalf("chunk 1: %q", chunks[1])
	}
}

func TestChunkSectionsUntitledBody(t *testing.T) {
	chunks := chunkSections([]editor.Section{{Content: "<p>lead</p>"}}, 4)
	if len(chunks) != 1 || chunks[0] != "<p>lead</p>" {
		t.Fatalf("got %#v", chunks)
	}
}
