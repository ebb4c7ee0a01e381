// Package supervisor wires the Store, Scheduler, and Frontend together and
// owns the whole-process lifecycle: configuration, startup ordering,
// signal-driven shutdown, and a quiescence-watching stats ticker. It
// generalizes main.cpp's top-level wiring (g_spider/g_searchServer,
// signalHandler, printStats) into one owned Go type instead of global
// pointers visible to a C-style signal handler.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dangpham/gophersearch/internal/config"
	"github.com/dangpham/gophersearch/internal/fetcher"
	"github.com/dangpham/gophersearch/internal/frontend"
	"github.com/dangpham/gophersearch/internal/scheduler"
	"github.com/dangpham/gophersearch/internal/store"
)

const statsInterval = 5 * time.Second

// Supervisor owns every long-lived component for one process run.
type Supervisor struct {
	cfg        *config.Config
	log        *slog.Logger
	store      *store.Store
	sched      *scheduler.Scheduler
	front      *frontend.Frontend
	httpServer *http.Server
}

// New loads configuration from path and opens the Store. Callers should
// call Run immediately afterward; the returned error is fatal.
func New(ctx context.Context, path string, log *slog.Logger) (*Supervisor, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s, err := store.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if cfg.Spider.WipeOnStart {
		log.Info("wiping store on start per configuration")
		if err := s.WipeAll(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("wipe store: %w", err)
		}
	}

	f := fetcher.New("")
	sched := scheduler.New(scheduler.Config{MaxDepth: cfg.Spider.MaxDepth}, f, s, log)
	front := frontend.New(s, log)

	return &Supervisor{
		cfg:   cfg,
		log:   log,
		store: s,
		sched: sched,
		front: front,
	}, nil
}

// Run starts the Frontend, conditionally starts the Scheduler, and blocks
// until SIGINT/SIGTERM arrives. It returns once every component has been
// asked to stop.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Searcher.Port),
		Handler: s.front.Router(),
	}
	go func() {
		s.log.Info("frontend listening", "port", s.cfg.Searcher.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("frontend listener failed", "err", err)
		}
	}()

	if s.cfg.Spider.RunSpider {
		s.sched.Enqueue(s.cfg.Spider.StartURL, 0)
		s.sched.Start(ctx)
		go s.watchQuiescence(ctx)
	}

	<-ctx.Done()
	s.log.Info("shutdown signal received")

	if s.cfg.Spider.RunSpider {
		s.sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("frontend shutdown error", "err", err)
	}

	s.store.Close()
	return nil
}

// watchQuiescence logs a periodic stats snapshot (generalizing printStats's
// 5s polling loop to structured logging) and, once the queue and worker
// count both observe zero across consecutive samples, logs a one-shot
// "crawl finished" line without touching the Frontend.
func (s *Supervisor) watchQuiescence(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	quietRounds := 0
	announced := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.sched.Stats()
			storeStats, err := s.store.Stats(ctx)
			if err != nil {
				s.log.Warn("stats query failed", "err", err)
				continue
			}

			s.log.Info("crawl stats",
				"active_workers", stats.ActiveWorkers,
				"queue_size", stats.QueueSize,
				"downloaded", stats.Downloaded,
				"indexed", stats.Indexed,
				"documents", storeStats.Documents,
				"terms", storeStats.Terms)

			if stats.QueueSize == 0 && stats.ActiveWorkers == 0 {
				quietRounds++
			} else {
				quietRounds = 0
			}
			if quietRounds >= 2 && !announced {
				s.log.Info("crawl finished, frontend remains available")
				announced = true
			}
		}
	}
}
