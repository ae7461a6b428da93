package trace

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixtureLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	content := `{"id":"r1","timestamp":"2026-03-01T10:00:00Z","request":{"model":"gpt-4o"},"response":null,"duration_ms":100}
{"id":"r2","timestamp":"2026-03-01T11:00:00Z","request":{"model":"claude-sonnet-4"},"response":null,"duration_ms":200}
{"id":"r3","timestamp":"2026-03-01T12:00:00Z","request":{"model":"claude-opus-4"},"response":null,"duration_ms":300,"error":"timeout"}
{"id":"r4","timestamp":"2026-03-01T13:00:00Z","request":{"model":"gpt-4o-mini"},"response":null,"duration_ms":400}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func loadIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	n, err := idx.Load(writeFixtureLog(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 4 {
		t.Fatalf("indexed %d records, want 4", n)
	}
	return idx
}

func TestIndexQuery_All(t *testing.T) {
	idx := loadIndex(t)

	records, err := idx.Query(QueryParams{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	// File order preserved.
	for i, want := range []string{"r1", "r2", "r3", "r4"} {
		if records[i].ID != want {
			t.Errorf("records[%d].ID = %q, want %q", i, records[i].ID, want)
		}
	}
}

func TestIndexQuery_ModelGlob(t *testing.T) {
	idx := loadIndex(t)

	records, err := idx.Query(QueryParams{Model: "claude-*"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 claude records, got %d", len(records))
	}
	if records[0].ID != "r2" || records[1].ID != "r3" {
		t.Errorf("got ids %q, %q; want r2, r3", records[0].ID, records[1].ID)
	}
}

func TestIndexQuery_ErrorsOnly(t *testing.T) {
	idx := loadIndex(t)

	records, err := idx.Query(QueryParams{ErrorsOnly: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 error record, got %d", len(records))
	}
	if records[0].ID != "r3" || records[0].Error != "timeout" {
		t.Errorf("got id=%q error=%q; want r3/timeout", records[0].ID, records[0].Error)
	}
}

func TestIndexQuery_TimeRange(t *testing.T) {
	idx := loadIndex(t)

	records, err := idx.Query(QueryParams{
		Since: "2026-03-01T10:30:00Z",
		Until: "2026-03-01T12:30:00Z",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records in range, got %d", len(records))
	}
	if records[0].ID != "r2" || records[1].ID != "r3" {
		t.Errorf("got ids %q, %q; want r2, r3", records[0].ID, records[1].ID)
	}
}

func TestIndexQuery_Limit(t *testing.T) {
	idx := loadIndex(t)

	records, err := idx.Query(QueryParams{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "r1" || records[1].ID != "r2" {
		t.Errorf("limit should keep file order: got %q, %q", records[0].ID, records[1].ID)
	}
}

func TestIndexQuery_BadPattern(t *testing.T) {
	idx := loadIndex(t)

	if _, err := idx.Query(QueryParams{Model: "[unclosed"}); err == nil {
		t.Error("expected error for malformed glob pattern")
	}
}

func TestIndexQuery_BadSince(t *testing.T) {
	idx := loadIndex(t)

	if _, err := idx.Query(QueryParams{Since: "yesterday-ish"}); err == nil {
		t.Error("expected error for unparsable since value")
	}
}
