package accum

import (
	"testing"
	"time"
)

func TestValidationUpsertNamespacesIssueIDs(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{
		ChunkIndex: 2,
		Issues: []Issue{
			{ID: "grammar-1", Severity: "warning", Category: "grammar", Message: "m"},
		},
	})

	res, ok := v.Get(2)
	if !ok {
		t.Fatalf("expected entry for chunk 2")
	}
	if res.Issues[0].ID != "chunk-2-grammar-1" {
		t.Fatalf("got id %q", res.Issues[0].ID)
	}
	if res.Timestamp.IsZero() {
		t.Fatalf("expected timestamp stamped")
	}
}

func TestValidationUpsertRecountsMissingSummary(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{
		ChunkIndex: 0,
		Issues: []Issue{
			{ID: "a", Category: "grammar"},
			{ID: "b", Category: "grammar"},
			{ID: "c", Category: "clarity"},
		},
	})

	res, _ := v.Get(0)
	if res.Summary.Total != 3 {
		t.Fatalf("got total %d", res.Summary.Total)
	}
	if res.Summary.ByCategory["grammar"] != 2 || res.Summary.ByCategory["clarity"] != 1 {
		t.Fatalf("got categories %#v", res.Summary.ByCategory)
	}
}

func TestValidationUpsertKeepsBackendSummary(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{
		ChunkIndex: 0,
		Issues:     []Issue{{ID: "a", Category: "grammar"}},
		Summary:    Summary{Total: 5, ByCategory: map[string]int{"grammar": 5}},
	})

	res, _ := v.Get(0)
	if res.Summary.Total != 5 {
		t.Fatalf("backend summary must win, got %d", res.Summary.Total)
	}
}

func TestValidationReUpsertReplacesOnlyThatChunk(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{ChunkIndex: 0, Issues: []Issue{{ID: "old", Category: "grammar"}}})
	v.Upsert(ChunkResult{ChunkIndex: 1, Issues: []Issue{{ID: "keep", Category: "style"}}})

	v.Upsert(ChunkResult{ChunkIndex: 0, Issues: []Issue{{ID: "new", Category: "clarity"}}})

	res0, _ := v.Get(0)
	if len(res0.Issues) != 1 || res0.Issues[0].ID != "chunk-0-new" {
		t.Fatalf("chunk 0 not replaced: %#v", res0.Issues)
	}
	res1, _ := v.Get(1)
	if len(res1.Issues) != 1 || res1.Issues[0].ID != "chunk-1-keep" {
		t.Fatalf("chunk 1 disturbed: %#v", res1.Issues)
	}
}

func TestValidationMarkError(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{ChunkIndex: 3, Issues: []Issue{{ID: "x", Category: "grammar"}}})
	v.MarkError(3, "stream stalled")

	res, _ := v.Get(3)
	if res.Error != "stream stalled" || len(res.Issues) != 0 {
		t.Fatalf("expected error entry, got %#v", res)
	}
}

func TestValidationResultsOrdered(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{ChunkIndex: 4, Timestamp: time.Now()})
	v.Upsert(ChunkResult{ChunkIndex: 0, Timestamp: time.Now()})
	v.Upsert(ChunkResult{ChunkIndex: 2, Timestamp: time.Now()})

	results := v.Results()
	for i, want := range []int{0, 2, 4} {
		if results[i].ChunkIndex != want {
			t.Fatalf("position %d: got chunk %d want %d", i, results[i].ChunkIndex, want)
		}
	}
}

func TestValidationReset(t *testing.T) {
	v := NewValidation(nil)
	v.Upsert(ChunkResult{ChunkIndex: 0})
	v.Reset()
	if len(v.Results()) != 0 {
		t.Fatalf("expected empty after reset")
	}
}
