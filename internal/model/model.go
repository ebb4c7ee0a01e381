// Package model holds the value types shared across the crawl, store, and
// search subsystems.
package model

import "time"

// Document is a crawled page as persisted by the Store.
type Document struct {
	ID        int64
	URL       string
	Title     string
	Content   string
	CreatedAt time.Time
}

// Term is a single normalized token in the inverted index.
type Term struct {
	ID   int64
	Text string
}

// TermFrequency is one (term, occurrence count) pair produced by the Indexer
// for a single document.
type TermFrequency struct {
	Term string
	Freq int
}

// CrawlTask is a pending (url, depth) pair owned by the Scheduler's queue.
type CrawlTask struct {
	URL   string
	Depth int
}

// SearchResult is one ranked hit returned by Store.Search.
type SearchResult struct {
	URL       string
	Title     string
	Relevance int
}

// IndexResult is the output of indexing a single downloaded page.
type IndexResult struct {
	Title           string
	CleanContent    string
	TermFrequencies []TermFrequency
}

// Stats is a point-in-time snapshot of the Scheduler's counters.
type Stats struct {
	Downloaded    int64
	Indexed       int64
	ActiveWorkers int64
	QueueSize     int
}

// StoreStats is a point-in-time snapshot of the Store's row counts.
type StoreStats struct {
	Documents int64
	Terms     int64
	Postings  int64
}
