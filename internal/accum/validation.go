package accum

import (
	"fmt"
	"sort"
	"time"
)

// Issue is one validation finding inside a chunk. IDs are namespaced by chunk
// index on insert so they stay globally unique across the document.
type Issue struct {
	ID         string `json:"id"`
	Severity   string `json:"severity"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	Excerpt    string `json:"excerpt,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Summary carries issue counts as reported by the backend, or recomputed
// locally when the payload omits them.
type Summary struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category,omitempty"`
}

// ChunkResult is the validation outcome for one document chunk. Error is set
// instead of Issues when the chunk's stream failed.
type ChunkResult struct {
	ChunkIndex int       `json:"chunk_index"`
	Issues     []Issue   `json:"issues,omitempty"`
	Summary    Summary   `json:"summary"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

// Validation collects per-chunk results keyed by chunk index. Re-validating a
// chunk replaces its entry; nothing short of an explicit document-replaced
// signal clears the map.
type Validation struct {
	results map[int]ChunkResult
	notify  func()
}

// NewValidation creates an empty validation accumulator. notify, if non-nil,
// fires after every mutation.
func NewValidation(notify func()) *Validation {
	return &Validation{
		results: make(map[int]ChunkResult),
		notify:  notify,
	}
}

// Upsert stores a chunk result, replacing any existing entry for the same
// index. Issue ids are namespaced, the timestamp is stamped if absent, and a
// missing summary is recomputed by category.
func (v *Validation) Upsert(res ChunkResult) {
	for i := range res.Issues {
		res.Issues[i].ID = namespaceIssueID(res.ChunkIndex, res.Issues[i].ID)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	if res.Summary.Total == 0 && res.Summary.ByCategory == nil && len(res.Issues) > 0 {
		res.Summary = recountIssues(res.Issues)
	}
	v.results[res.ChunkIndex] = res
	v.changed()
}

// MarkError records a failed chunk: the entry carries an error instead of
// issues, and any prior result for that index is replaced.
func (v *Validation) MarkError(chunkIndex int, msg string) {
	v.results[chunkIndex] = ChunkResult{
		ChunkIndex: chunkIndex,
		Timestamp:  time.Now().UTC(),
		Error:      msg,
	}
	v.changed()
}

// Get returns the entry for one chunk index.
func (v *Validation) Get(chunkIndex int) (ChunkResult, bool) {
	res, ok := v.results[chunkIndex]
	return res, ok
}

// Results returns a snapshot of all entries ordered by chunk index.
func (v *Validation) Results() []ChunkResult {
	out := make([]ChunkResult, 0, len(v.results))
	for _, res := range v.results {
		res.Issues = append([]Issue(nil), res.Issues...)
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

// Reset drops everything. Only the explicit document-replaced signal calls
// this; re-running validation never does.
func (v *Validation) Reset() {
	v.results = make(map[int]ChunkResult)
	v.changed()
}

func (v *Validation) changed() {
	if v.notify != nil {
		v.notify()
	}
}

func namespaceIssueID(chunkIndex int, id string) string {
	return fmt.Sprintf("chunk-%d-%s", chunkIndex, id)
}

func recountIssues(issues []Issue) Summary {
	s := Summary{Total: len(issues), ByCategory: make(map[string]int)}
	for _, issue := range issues {
		s.ByCategory[issue.Category]++
	}
	return s
}
