// Package scheduler drives the bounded-depth BFS crawl: a FIFO task queue,
// a set of already-processed URLs, a fixed worker pool, and the counters a
// supervisor polls for quiescence. It mirrors Spider's taskQueue_/queueCV_/
// processedUrls_ design from the program this package generalizes, trading
// the original's raw std::mutex/condition_variable pair for sync.Mutex and
// sync.Cond.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dangpham/gophersearch/internal/fetcher"
	"github.com/dangpham/gophersearch/internal/indexer"
	"github.com/dangpham/gophersearch/internal/model"
)

const defaultMinWorkers = 2

// Fetcher is the subset of *fetcher.Fetcher the Scheduler depends on.
type Fetcher interface {
	Download(ctx context.Context, url string) (string, error)
}

// Store is the subset of *store.Store the Scheduler writes through.
type Store interface {
	URLExists(ctx context.Context, url string) (bool, error)
	UpsertDocument(ctx context.Context, url, title, content string) (int64, error)
	UpsertPostings(ctx context.Context, docID int64, freqs []model.TermFrequency) error
}

// Config holds the values a Scheduler needs beyond its collaborators.
type Config struct {
	MaxDepth    int
	WorkerCount int // 0 selects host parallelism, minimum defaultMinWorkers
	UserAgent   string
}

// Scheduler owns the pending-task queue and the processed-URL set for one
// crawl run. It is not reusable across runs: Start spawns a fresh worker
// pool each time it is called.
type Scheduler struct {
	cfg     Config
	fetcher Fetcher
	store   Store
	log     *slog.Logger

	queueMu sync.Mutex
	queueCV *sync.Cond
	queue   []model.CrawlTask
	stopped bool

	processedMu sync.Mutex
	processed   map[string]bool

	downloaded    atomic.Int64
	indexed       atomic.Int64
	activeWorkers atomic.Int64

	wg sync.WaitGroup
}

// New builds a Scheduler around an already-open Store. Call Enqueue with
// the seed before Start.
func New(cfg Config, f Fetcher, s Store, log *slog.Logger) *Scheduler {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	if cfg.WorkerCount < defaultMinWorkers {
		cfg.WorkerCount = defaultMinWorkers
	}
	if log == nil {
		log = slog.Default()
	}

	sch := &Scheduler{
		cfg:       cfg,
		fetcher:   f,
		store:     s,
		log:       log,
		processed: make(map[string]bool),
	}
	sch.queueCV = sync.NewCond(&sch.queueMu)
	return sch
}

// Enqueue rejects depth beyond MaxDepth and URLs already seen in this
// process run; otherwise it appends to the queue and wakes one worker. This
// check is a cheap pre-filter, not the authoritative dedup: the same URL
// discovered from two pages concurrently can both pass it and be queued
// twice, since neither call inserts into processed. The atomic
// test-and-insert that actually prevents double processing happens in
// process, at pop time.
func (s *Scheduler) Enqueue(url string, depth int) {
	if depth > s.cfg.MaxDepth {
		return
	}

	s.processedMu.Lock()
	alreadyProcessed := s.processed[url]
	s.processedMu.Unlock()
	if alreadyProcessed {
		return
	}

	s.queueMu.Lock()
	s.queue = append(s.queue, model.CrawlTask{URL: url, Depth: depth})
	s.queueMu.Unlock()
	s.queueCV.Signal()
}

// Start spawns WorkerCount workers and returns immediately; it does not
// block until quiescence.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler starting", "workers", s.cfg.WorkerCount, "max_depth", s.cfg.MaxDepth)
	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
}

// Stop sets the shutdown flag, wakes every waiting worker, and blocks until
// all of them exit. Workers finish their current task first.
func (s *Scheduler) Stop() {
	s.queueMu.Lock()
	s.stopped = true
	s.queueMu.Unlock()
	s.queueCV.Broadcast()
	s.wg.Wait()
	s.log.Info("scheduler stopped",
		"downloaded", s.downloaded.Load(),
		"indexed", s.indexed.Load())
}

// Stats returns a snapshot of the downloaded, indexed, and active-worker
// counters plus current queue length. The shutdown flag is not included.
func (s *Scheduler) Stats() model.Stats {
	s.queueMu.Lock()
	queueSize := len(s.queue)
	s.queueMu.Unlock()

	return model.Stats{
		Downloaded:    s.downloaded.Load(),
		Indexed:       s.indexed.Load(),
		ActiveWorkers: s.activeWorkers.Load(),
		QueueSize:     queueSize,
	}
}

// Running reports whether any worker is currently processing a task.
func (s *Scheduler) Running() bool {
	return s.activeWorkers.Load() > 0
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		task, ok := s.pop()
		if !ok {
			return
		}

		s.activeWorkers.Add(1)
		s.process(ctx, task)
		s.activeWorkers.Add(-1)
	}
}

// pop blocks until the queue is non-empty or stop has been requested,
// mirroring workerFunction's queueCV_.wait predicate.
func (s *Scheduler) pop() (model.CrawlTask, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	for len(s.queue) == 0 && !s.stopped {
		s.queueCV.Wait()
	}
	if len(s.queue) == 0 {
		return model.CrawlTask{}, false
	}

	task := s.queue[0]
	s.queue = s.queue[1:]
	return task, true
}

// process implements the worker algorithm: it performs the authoritative
// atomic test-and-insert into processed (Enqueue only checks, it never
// inserts), then downloads, indexes, persists, and re-enqueues extracted
// links at depth+1. Every failure is logged and the task
// abandoned; nothing here propagates to the caller.
func (s *Scheduler) process(ctx context.Context, task model.CrawlTask) {
	log := s.log.With("url", task.URL, "depth", task.Depth)

	s.processedMu.Lock()
	if s.processed[task.URL] {
		s.processedMu.Unlock()
		log.Debug("already processed, skipping")
		return
	}
	s.processed[task.URL] = true
	s.processedMu.Unlock()

	exists, err := s.store.URLExists(ctx, task.URL)
	if err != nil {
		log.Error("url_exists check failed", "err", err)
		return
	}
	if exists {
		log.Debug("already persisted, skipping")
		return
	}

	body, err := s.fetcher.Download(ctx, task.URL)
	if err != nil {
		log.Warn("download failed", "err", err)
		return
	}
	s.downloaded.Add(1)

	result := indexer.Index(body, task.URL)
	s.indexed.Add(1)

	docID, err := s.store.UpsertDocument(ctx, task.URL, result.Title, result.CleanContent)
	if err != nil {
		log.Error("upsert_document failed", "err", err)
		return
	}

	if len(result.TermFrequencies) > 0 {
		if err := s.store.UpsertPostings(ctx, docID, result.TermFrequencies); err != nil {
			log.Error("upsert_postings failed", "err", err, "doc_id", docID)
			return
		}
	}

	if task.Depth >= s.cfg.MaxDepth {
		return
	}

	links := fetcher.ExtractLinks(body, task.URL)
	for _, link := range links {
		s.Enqueue(link, task.Depth+1)
	}
}
