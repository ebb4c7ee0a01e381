package store

import (
	"context"
	"os"
	"testing"

	"github.com/dangpham/gophersearch/internal/model"
)

// openTestStore connects against GOPHERSEARCH_TEST_DSN and wipes any
// pre-existing rows so each test starts from a clean slate. Tests skip when
// the variable is unset: there is no Postgres available in this run, and
// the Store's contract is only meaningful against a real backend.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GOPHERSEARCH_TEST_DSN")
	if dsn == "" {
		t.Skip("GOPHERSEARCH_TEST_DSN not set, skipping Store integration test")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := s.WipeAll(ctx); err != nil {
		t.Fatalf("WipeAll: %v", err)
	}
	return s
}

func TestUpsertDocumentIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertDocument(ctx, "http://example.test/a", "First", "content one")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	id2, err := s.UpsertDocument(ctx, "http://example.test/a", "Second", "content two")
	if err != nil {
		t.Fatalf("UpsertDocument (update): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("doc_id changed across upsert: %d != %d", id1, id2)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Second" {
		t.Fatalf("got %+v, want one doc titled Second", docs)
	}
}

func TestUpsertPostingsAndTermsOf(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, "http://example.test/a", "A", "foo foo bar")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	freqs := []model.TermFrequency{{Term: "foo", Freq: 2}, {Term: "bar", Freq: 1}}
	if err := s.UpsertPostings(ctx, id, freqs); err != nil {
		t.Fatalf("UpsertPostings: %v", err)
	}

	got, err := s.TermsOf(ctx, id)
	if err != nil {
		t.Fatalf("TermsOf: %v", err)
	}
	if len(got) != 2 || got[0].Term != "foo" || got[0].Freq != 2 {
		t.Fatalf("TermsOf = %+v, want foo:2 first", got)
	}

	// last write wins for a repeated term in the same document
	if err := s.UpsertPostings(ctx, id, []model.TermFrequency{{Term: "foo", Freq: 5}}); err != nil {
		t.Fatalf("UpsertPostings (update): %v", err)
	}
	got, err = s.TermsOf(ctx, id)
	if err != nil {
		t.Fatalf("TermsOf: %v", err)
	}
	if got[0].Term != "foo" || got[0].Freq != 5 {
		t.Fatalf("TermsOf after update = %+v, want foo:5", got)
	}
}

func TestSearchANDSemanticsAndScoring(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, _ := s.UpsertDocument(ctx, "http://example.test/1", "One", "cat dog")
	id2, _ := s.UpsertDocument(ctx, "http://example.test/2", "Two", "cat only")

	if err := s.UpsertPostings(ctx, id1, []model.TermFrequency{{Term: "cat", Freq: 3}, {Term: "dog", Freq: 1}}); err != nil {
		t.Fatalf("UpsertPostings id1: %v", err)
	}
	if err := s.UpsertPostings(ctx, id2, []model.TermFrequency{{Term: "cat", Freq: 1}, {Term: "dog", Freq: 5}}); err != nil {
		t.Fatalf("UpsertPostings id2: %v", err)
	}

	results, err := s.Search(ctx, []string{"cat", "dog"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search returned %d results, want 2", len(results))
	}
	if results[0].Relevance != 6 || results[1].Relevance != 4 {
		t.Fatalf("relevance = [%d, %d], want [6, 4]", results[0].Relevance, results[1].Relevance)
	}
}

func TestSearchEmptyInputYieldsEmptyResult(t *testing.T) {
	s := openTestStore(t)
	results, err := s.Search(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search(nil) = %+v, want empty", results)
	}
}

func TestURLExistsAndDocIDFor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	exists, err := s.URLExists(ctx, "http://example.test/missing")
	if err != nil {
		t.Fatalf("URLExists: %v", err)
	}
	if exists {
		t.Fatal("URLExists(missing) = true")
	}

	if _, err := s.DocIDFor(ctx, "http://example.test/missing"); err != ErrNotFound {
		t.Fatalf("DocIDFor(missing) err = %v, want ErrNotFound", err)
	}

	id, err := s.UpsertDocument(ctx, "http://example.test/present", "T", "c")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	exists, err = s.URLExists(ctx, "http://example.test/present")
	if err != nil || !exists {
		t.Fatalf("URLExists(present) = %v, %v", exists, err)
	}

	got, err := s.DocIDFor(ctx, "http://example.test/present")
	if err != nil || got != id {
		t.Fatalf("DocIDFor(present) = %d, %v, want %d", got, err, id)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, "http://example.test/del", "T", "x")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if err := s.UpsertPostings(ctx, id, []model.TermFrequency{{Term: "foo", Freq: 1}}); err != nil {
		t.Fatalf("UpsertPostings: %v", err)
	}

	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	if _, err := s.DocIDFor(ctx, "http://example.test/del"); err != ErrNotFound {
		t.Fatalf("DocIDFor after delete = %v, want ErrNotFound", err)
	}
	terms, err := s.TermsOf(ctx, id)
	if err != nil {
		t.Fatalf("TermsOf after delete: %v", err)
	}
	if len(terms) != 0 {
		t.Fatalf("TermsOf after delete = %+v, want empty", terms)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, "http://example.test/s", "T", "x")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if err := s.UpsertPostings(ctx, id, []model.TermFrequency{{Term: "foo", Freq: 1}, {Term: "bar", Freq: 1}}); err != nil {
		t.Fatalf("UpsertPostings: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 1 || stats.Terms != 2 || stats.Postings != 2 {
		t.Fatalf("Stats = %+v, want {1 2 2}", stats)
	}
}

func TestWipeAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, "http://example.test/w", "T", "x")
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if err := s.UpsertPostings(ctx, id, []model.TermFrequency{{Term: "foo", Freq: 1}}); err != nil {
		t.Fatalf("UpsertPostings: %v", err)
	}

	if err := s.WipeAll(ctx); err != nil {
		t.Fatalf("WipeAll: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 0 || stats.Terms != 0 || stats.Postings != 0 {
		t.Fatalf("Stats after wipe = %+v, want all zero", stats)
	}
}
