// File path: internal/retriever/retriever_test.go
package retriever

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Azure-Samples/infra-support-copilot/internal/store"
)

func testRetriever(t *testing.T) (*Retriever, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "retriever_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	docs := []struct{ title, kind, content string }{
		{"Patching policy", "runbook", "Virtual machines are patched monthly during the maintenance window."},
		{"Incident 4821", "incident", "vm-alpha lost network connectivity after a NIC misconfiguration."},
		{"Backup schedule", "runbook", "Database backups run nightly and are retained for thirty days."},
	}
	for _, doc := range docs {
		_, err := st.DB().Exec(
			`INSERT INTO documents (title, kind, content) VALUES (?, ?, ?)`,
			doc.title, doc.kind, doc.content,
		)
		if err != nil {
			t.Fatalf("seed document: %v", err)
		}
	}
	r, err := New(context.Background(), st)
	if err != nil {
		t.Fatalf("build retriever: %v", err)
	}
	return r, st
}

func TestSearchRanksByRelevance(t *testing.T) {
	r, _ := testRetriever(t)
	results := r.Search("patching maintenance window", 5)
	if len(results) == 0 {
		t.Fatal("expected matches")
	}
	if results[0].Doc.Title != "Patching policy" {
		t.Fatalf("expected patching runbook first, got %q", results[0].Doc.Title)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by score: %v", results)
		}
	}
}

func TestSearchHonoursLimit(t *testing.T) {
	r, _ := testRetriever(t)
	results := r.Search("the", 1)
	if len(results) > 1 {
		t.Fatalf("limit ignored, got %d results", len(results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	r, _ := testRetriever(t)
	if results := r.Search("   ", 5); results != nil {
		t.Fatalf("expected no matches for blank query, got %v", results)
	}
}

func TestSearchUnrelatedQuery(t *testing.T) {
	r, _ := testRetriever(t)
	if results := r.Search("kubernetes ingress controllers", 5); len(results) != 0 {
		t.Fatalf("expected no matches, got %v", results)
	}
}

func TestRefreshPicksUpNewDocuments(t *testing.T) {
	r, st := testRetriever(t)
	_, err := st.DB().Exec(
		`INSERT INTO documents (title, kind, content) VALUES (?, ?, ?)`,
		"Certificate rotation", "runbook", "TLS certificates rotate quarterly via automation.",
	)
	if err != nil {
		t.Fatalf("insert document: %v", err)
	}
	if err := r.Refresh(context.Background(), st); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	results := r.Search("certificate rotation", 5)
	if len(results) == 0 || results[0].Doc.Title != "Certificate rotation" {
		t.Fatalf("refreshed document not found: %v", results)
	}
}
