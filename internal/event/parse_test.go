package event

import (
	"errors"
	"testing"
)

func TestParseTaggedContent(t *testing.T) {
	ev, err := Parse(`{"type":"content","text":"hello"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	delta, ok := ev.(ContentDelta)
	if !ok {
		t.Fatalf("expected ContentDelta, got %T", ev)
	}
	if delta.Text != "hello" {
		t.Fatalf("got text %q", delta.Text)
	}
	if delta.Kind() != KindContentDelta {
		t.Fatalf("got kind %q", delta.Kind())
	}
}

func TestParseCompletionDelta(t *testing.T) {
	ev, err := Parse(`{"choices":[{"delta":{"content":"hi"},"finish_reason":null}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	delta, ok := ev.(ContentDelta)
	if !ok || delta.Text != "hi" {
		t.Fatalf("expected ContentDelta{hi}, got %#v", ev)
	}
}

func TestParseCompletionFinish(t *testing.T) {
	ev, err := Parse(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fin, ok := ev.(Finish)
	if !ok || fin.Reason != "stop" {
		t.Fatalf("expected Finish{stop}, got %#v", ev)
	}
}

func TestParseDocumentUpdateAlias(t *testing.T) {
	for _, tag := range []string{"document_update", "doc_update"} {
		ev, err := Parse(`{"type":"` + tag + `","operation":"replace","section_index":2,"content":"<p>x</p>"}`)
		if err != nil {
			t.Fatalf("%s: parse: %v", tag, err)
		}
		du, ok := ev.(DocumentUpdate)
		if !ok {
			t.Fatalf("%s: expected DocumentUpdate, got %T", tag, ev)
		}
		if du.Operation != OpReplace || du.SectionIndex != 2 {
			t.Fatalf("%s: got %#v", tag, du)
		}
	}
}

func TestParseToolEvents(t *testing.T) {
	ev, err := Parse(`{"type":"tool_use","tool_call_id":"t1","tool_name":"search","tool_input":{"q":"go"}}`)
	if err != nil {
		t.Fatalf("parse tool_use: %v", err)
	}
	use, ok := ev.(ToolUse)
	if !ok || use.ToolCallID != "t1" || use.ToolName != "search" {
		t.Fatalf("got %#v", ev)
	}

	ev, err = Parse(`{"type":"tool_result","tool_call_id":"t1","content":"ok","is_error":false}`)
	if err != nil {
		t.Fatalf("parse tool_result: %v", err)
	}
	res, ok := ev.(ToolResult)
	if !ok || res.ToolCallID != "t1" || res.Content != "ok" {
		t.Fatalf("got %#v", ev)
	}
}

func TestParseUnknownKind(t *testing.T) {
	_, err := Parse(`{"type":"heartbeat"}`)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"choices":[]}`,
		`{"type":"content","text":5}`,
	}
	for _, raw := range cases {
		ev, err := Parse(raw)
		if err == nil {
			t.Fatalf("expected error for %q, got %#v", raw, ev)
		}
		if errors.Is(err, ErrUnknownKind) {
			t.Fatalf("%q must count against the ceiling, not be skipped", raw)
		}
	}
}

func TestDecodeKnownKinds(t *testing.T) {
	ev, err := Decode(KindParagraphSummary, []byte(`{"section_index":1,"section_title":"Intro","summary":"s","current":1,"total":3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ps, ok := ev.(ParagraphSummary)
	if !ok || ps.SectionTitle != "Intro" || ps.Total != 3 {
		t.Fatalf("got %#v", ev)
	}

	ev, err = Decode(KindFinish, []byte(`{"reason":"stop"}`))
	if err != nil {
		t.Fatalf("decode finish: %v", err)
	}
	if fin, ok := ev.(Finish); !ok || fin.Reason != "stop" {
		t.Fatalf("got %#v", ev)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode(Kind("bogus"), []byte(`{}`)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
