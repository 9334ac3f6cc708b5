package flow

import (
	"encoding/json"
	"strings"

	"github.com/quillworks/quill/internal/accum"
	"github.com/quillworks/quill/internal/event"
	"github.com/quillworks/quill/internal/stream"
)

// ValidateFlow folds one chunk's validation stream into the shared validation
// accumulator. The backend streams the result document as content deltas;
// Finalize decodes the assembled JSON and upserts it under the chunk index.
// A chunk that fails gets an entry with Error set; other chunks' entries are
// untouched.
type ValidateFlow struct {
	Acc        *accum.Validation
	ChunkIndex int

	buf    strings.Builder
	errMsg string
}

// chunkPayload is the JSON document assembled from the chunk's deltas.
type chunkPayload struct {
	Issues  []accum.Issue `json:"issues"`
	Summary accum.Summary `json:"summary"`
}

// NewValidateFlow binds the accumulator for one chunk's session.
func NewValidateFlow(acc *accum.Validation, chunkIndex int) *ValidateFlow {
	return &ValidateFlow{Acc: acc, ChunkIndex: chunkIndex}
}

// Handlers returns the session handler map for the validation surface.
func (f *ValidateFlow) Handlers() stream.Handlers {
	return stream.Handlers{
		ContentDelta: func(ev event.ContentDelta) { f.buf.WriteString(ev.Text) },
		Error:        func(ev event.Error) { f.errMsg = ev.Message },
		Finish:       func(event.Finish) {},
	}
}

// Finalize folds the session outcome into the accumulator: an upserted result
// on success, an error entry on any failure. It returns the stored entry.
func (f *ValidateFlow) Finalize(out stream.Outcome) accum.ChunkResult {
	switch {
	case f.errMsg != "":
		f.Acc.MarkError(f.ChunkIndex, f.errMsg)
	case out.State != stream.Completed:
		f.Acc.MarkError(f.ChunkIndex, FriendlyError(out.Err))
	default:
		var payload chunkPayload
		if err := json.Unmarshal([]byte(f.buf.String()), &payload); err != nil {
			f.Acc.MarkError(f.ChunkIndex, "validation response was not valid JSON")
			break
		}
		f.Acc.Upsert(accum.ChunkResult{
			ChunkIndex: f.ChunkIndex,
			Issues:     payload.Issues,
			Summary:    payload.Summary,
		})
	}
	res, _ := f.Acc.Get(f.ChunkIndex)
	return res
}
