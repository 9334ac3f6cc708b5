package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind marks a frame that decoded as JSON but carries a type this
// build does not recognize. Callers drop these without charging the
// parse-error ceiling.
var ErrUnknownKind = errors.New("unknown event kind")

type completionChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Parse decodes one frame payload into a typed event. It never panics; a
// malformed payload is reported as an error for the session to count.
//
// Frames carrying an explicit "type" field follow the tagged agent/validation
// protocol. Frames without one are classified by the OpenAI-compatible
// choices[0].delta shape.
func Parse(raw string) (Event, error) {
	data := []byte(raw)

	var head struct {
		Type    string             `json:"type"`
		Choices []completionChoice `json:"choices"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if head.Type == "" {
		if len(head.Choices) == 0 {
			return nil, fmt.Errorf("decode frame: no type field and no choices")
		}
		c := head.Choices[0]
		if c.FinishReason != nil && *c.FinishReason != "" {
			return Finish{Reason: *c.FinishReason}, nil
		}
		return ContentDelta{Text: c.Delta.Content}, nil
	}

	switch head.Type {
	case "status":
		return decodeAs[Status](data)
	case "content":
		return decodeAs[ContentDelta](data)
	case "thinking":
		return decodeAs[Thinking](data)
	case "tool_use":
		return decodeAs[ToolUse](data)
	case "tool_update":
		return decodeAs[ToolUpdate](data)
	case "tool_result":
		return decodeAs[ToolResult](data)
	case "todo_list":
		return decodeAs[TodoList](data)
	case "todo_item_update":
		return decodeAs[TodoItemUpdate](data)
	case "document_update", "doc_update":
		return decodeAs[DocumentUpdate](data)
	case "section_progress":
		return decodeAs[SectionProgress](data)
	case "article_draft":
		return decodeAs[ArticleDraft](data)
	case "paragraph_summary":
		return decodeAs[ParagraphSummary](data)
	case "complete":
		return decodeAs[Complete](data)
	case "error":
		return decodeAs[Error](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}
}

// Decode decodes a payload whose kind is already known, as relayed by the
// gateway's normalized stream.
func Decode(kind Kind, data []byte) (Event, error) {
	switch kind {
	case KindStatus:
		return decodeAs[Status](data)
	case KindContentDelta:
		return decodeAs[ContentDelta](data)
	case KindThinking:
		return decodeAs[Thinking](data)
	case KindToolUse:
		return decodeAs[ToolUse](data)
	case KindToolUpdate:
		return decodeAs[ToolUpdate](data)
	case KindToolResult:
		return decodeAs[ToolResult](data)
	case KindTodoList:
		return decodeAs[TodoList](data)
	case KindTodoItemUpdate:
		return decodeAs[TodoItemUpdate](data)
	case KindDocumentUpdate:
		return decodeAs[DocumentUpdate](data)
	case KindSectionProgress:
		return decodeAs[SectionProgress](data)
	case KindArticleDraft:
		return decodeAs[ArticleDraft](data)
	case KindParagraphSummary:
		return decodeAs[ParagraphSummary](data)
	case KindComplete:
		return decodeAs[Complete](data)
	case KindError:
		return decodeAs[Error](data)
	case KindFinish:
		return decodeAs[Finish](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", ev.Kind(), err)
	}
	return ev, nil
}
