// Package store is the concurrent-safe facade over the Postgres-backed
// term-frequency index: documents, words, and the document_words postings
// table. Every operation acquires its own pooled connection and commits (or
// rolls back) before returning, mirroring the "connection per operation,
// released on every exit path" discipline of the system this package is
// modeled on.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dangpham/gophersearch/internal/model"
)

// ErrNotFound is returned by the *For lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// Error wraps a backend failure with the operation that triggered it. The
// Store never retries; callers decide whether to log-and-abandon (crawl
// path) or surface a 500 (query path).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Store is safe for concurrent use. Reads take a shared lock, writes take an
// exclusive lock, matching the multi-reader/single-writer split the source
// implements over std::shared_mutex; here it guards nothing pgx doesn't
// already guard internally, but it preserves the externally observable
// "writers block readers, readers don't block each other" contract for
// callers that reason about it (e.g. tests asserting ensure_schema happens
// before any concurrent query).
type Store struct {
	pool *pgxpool.Pool
	mu   sync.RWMutex
}

// Open connects a pool against dsn. It does not create the schema; call
// EnsureSchema once at startup.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool. Safe to call once at shutdown.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema idempotently creates the three tables and their constraints.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return &Error{Op: "ensure_schema", Err: err}
	}
	return nil
}

// UpsertDocument inserts url/title/content, or updates title/content in
// place if url already exists, and returns the row's stable id.
func (s *Store) UpsertDocument(ctx context.Context, url, title, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (url, title, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (url) DO UPDATE SET title = $2, content = $3
		 RETURNING id`,
		url, title, content,
	).Scan(&id)
	if err != nil {
		return 0, &Error{Op: "upsert_document", Err: err}
	}
	return id, nil
}

// UpsertPostings writes one posting per (term, freq) pair for docID, in a
// single transaction: find-or-insert the term, then insert-or-update its
// posting with the new frequency. Last write wins for a repeated term.
func (s *Store) UpsertPostings(ctx context.Context, docID int64, freqs []model.TermFrequency) error {
	if len(freqs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &Error{Op: "upsert_postings", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, tf := range freqs {
		var termID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO words (word) VALUES ($1)
			 ON CONFLICT (word) DO UPDATE SET word = EXCLUDED.word
			 RETURNING id`,
			tf.Term,
		).Scan(&termID)
		if err != nil {
			return &Error{Op: "upsert_postings", Err: err}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO document_words (document_id, word_id, frequency)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (document_id, word_id) DO UPDATE SET frequency = $3`,
			docID, termID, tf.Freq,
		); err != nil {
			return &Error{Op: "upsert_postings", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &Error{Op: "upsert_postings", Err: err}
	}
	return nil
}

// URLExists reports whether a document with this url has been persisted.
func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM documents WHERE url = $1 LIMIT 1`, url,
	).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Op: "url_exists", Err: err}
	}
	return true, nil
}

// DocIDFor returns the id of the document with this url, or ErrNotFound.
func (s *Store) DocIDFor(ctx context.Context, url string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM documents WHERE url = $1`, url,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, &Error{Op: "doc_id_for", Err: err}
	}
	return id, nil
}

// TermIDFor returns the id of the word row with this text, or ErrNotFound.
func (s *Store) TermIDFor(ctx context.Context, text string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM words WHERE word = $1`, text,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, &Error{Op: "term_id_for", Err: err}
	}
	return id, nil
}

// Search returns documents containing every term in terms (AND semantics,
// deduplicated preserving first-seen order), scored by the sum of matched
// frequencies, ordered by score descending, capped at limit. Empty input
// yields an empty result without touching the backend.
func (s *Store) Search(ctx context.Context, terms []string, limit int) ([]model.SearchResult, error) {
	distinct := dedupPreserveOrder(terms)
	if len(distinct) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.pool.Query(ctx,
		`WITH search_words AS (SELECT unnest($1::text[]) AS word)
		 SELECT d.url, d.title, SUM(dw.frequency) AS relevance
		 FROM documents d
		 JOIN document_words dw ON d.id = dw.document_id
		 JOIN words w ON dw.word_id = w.id
		 JOIN search_words sw ON w.word = sw.word
		 GROUP BY d.id, d.url, d.title
		 HAVING COUNT(DISTINCT w.word) = $2
		 ORDER BY relevance DESC
		 LIMIT $3`,
		distinct, len(distinct), limit,
	)
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}
	defer rows.Close()

	var results []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(&r.URL, &r.Title, &r.Relevance); err != nil {
			return nil, &Error{Op: "search", Err: err}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "search", Err: err}
	}
	return results, nil
}

// ListDocuments returns every document ordered by id ascending.
func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.pool.Query(ctx, `SELECT id, url, title FROM documents ORDER BY id`)
	if err != nil {
		return nil, &Error{Op: "list_documents", Err: err}
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.URL, &d.Title); err != nil {
			return nil, &Error{Op: "list_documents", Err: err}
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list_documents", Err: err}
	}
	return docs, nil
}

// TermsOf returns every (term, freq) posting for docID, ordered by freq
// descending.
func (s *Store) TermsOf(ctx context.Context, docID int64) ([]model.TermFrequency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.pool.Query(ctx,
		`SELECT w.word, dw.frequency
		 FROM words w
		 JOIN document_words dw ON w.id = dw.word_id
		 WHERE dw.document_id = $1
		 ORDER BY dw.frequency DESC`,
		docID,
	)
	if err != nil {
		return nil, &Error{Op: "terms_of", Err: err}
	}
	defer rows.Close()

	var out []model.TermFrequency
	for rows.Next() {
		var tf model.TermFrequency
		if err := rows.Scan(&tf.Term, &tf.Freq); err != nil {
			return nil, &Error{Op: "terms_of", Err: err}
		}
		out = append(out, tf)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "terms_of", Err: err}
	}
	return out, nil
}

// DeleteDocument removes one document; document_words rows cascade via the
// foreign key.
func (s *Store) DeleteDocument(ctx context.Context, docID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return &Error{Op: "delete_document", Err: err}
	}
	return nil
}

// WipeAll truncates documents, words, and document_words.
func (s *Store) WipeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &Error{Op: "wipe_all", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM document_words`,
		`DELETE FROM documents`,
		`DELETE FROM words`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &Error{Op: "wipe_all", Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &Error{Op: "wipe_all", Err: err}
	}
	return nil
}

// Stats returns the current row counts across all three tables.
func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats model.StoreStats
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return model.StoreStats{}, &Error{Op: "stats", Err: err}
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM words`).Scan(&stats.Terms); err != nil {
		return model.StoreStats{}, &Error{Op: "stats", Err: err}
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_words`).Scan(&stats.Postings); err != nil {
		return model.StoreStats{}, &Error{Op: "stats", Err: err}
	}
	return stats, nil
}

func dedupPreserveOrder(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
