// Package scheduler drives the periodic scrape, diff, and alert cycles.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stockbot/internal/alert"
	"stockbot/internal/breaker"
	"stockbot/internal/config"
	"stockbot/internal/diff"
	"stockbot/internal/fetcher"
	"stockbot/internal/model"
	"stockbot/internal/scraper"
	"stockbot/internal/storage"
)

const maxStoredErrors = 100

// Stats is a snapshot of scheduler activity. The error log is bounded.
type Stats struct {
	TotalTicks       int
	SuccessfulCycles int
	FailedCycles     int
	SkippedCycles    int
	ProductsSeen     int
	AlertsSent       int
	AlertsSuppressed int
	LastCheckAt      time.Time
	Errors           []string
}

// Scheduler runs one fetch+parse+diff+alert cycle per retailer on a fixed
// interval, fanning retailers out concurrently each tick.
type Scheduler struct {
	cfg     *config.Config
	store   storage.Storage
	fetcher *fetcher.Fetcher
	scraper *scraper.Scraper
	engine  *diff.Engine
	gate    *alert.Gate
	log     *slog.Logger

	breakers map[string]*breaker.Breaker
	tick     time.Duration

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	stats       Stats
	lastCleanup time.Time
}

// New wires a Scheduler. The alert gate carries the notification sink, so
// the scheduler never references the delivery transport directly.
func New(cfg *config.Config, store storage.Storage, f *fetcher.Fetcher, sc *scraper.Scraper, engine *diff.Engine, gate *alert.Gate, log *slog.Logger) *Scheduler {
	breakers := make(map[string]*breaker.Breaker)
	for _, r := range cfg.Retailers {
		breakers[r.Key] = breaker.New(cfg.BreakerThreshold, cfg.RecoveryTimeout)
	}
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		fetcher:  f,
		scraper:  sc,
		engine:   engine,
		gate:     gate,
		log:      log,
		breakers: breakers,
		tick:     cfg.CheckInterval,
	}
}

// SetTickInterval overrides the configured check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Start launches the scheduler loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.log.Info("scheduler started", "interval", s.tick, "retailers", len(s.cfg.EnabledRetailers()))
	go s.run(runCtx)
}

// Stop cancels the loop and waits for in-flight cycles to wind down, so no
// fetch is left unaccounted when it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ForceCheck runs one tick immediately, out of band from the timer. It
// blocks until the tick completes.
func (s *Scheduler) ForceCheck(ctx context.Context) {
	s.log.Info("forced stock check")
	s.checkAll(ctx)
}

// Stats returns a copy of the aggregate statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Errors = append([]string(nil), s.stats.Errors...)
	return out
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

// checkAll runs one tick: every enabled retailer cycles concurrently, and
// no retailer's failure propagates past its own goroutine.
func (s *Scheduler) checkAll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	retailers := s.cfg.EnabledRetailers()

	s.mu.Lock()
	s.stats.TotalTicks++
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range retailers {
		wg.Add(1)
		go func(r model.Retailer) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error("retailer cycle panicked", "retailer", r.Key, "panic", rec)
					s.recordError(fmt.Sprintf("%s: panic: %v", r.Key, rec))
					s.bumpFailed()
				}
			}()
			s.cycleRetailer(ctx, r)
		}(r)
	}
	wg.Wait()

	s.mu.Lock()
	s.stats.LastCheckAt = time.Now().UTC()
	s.mu.Unlock()

	s.maybeCleanup(ctx)
}

// cycleRetailer runs the strictly ordered fetch -> parse -> diff -> alert
// sequence for one retailer.
func (s *Scheduler) cycleRetailer(ctx context.Context, r model.Retailer) {
	br := s.breakers[r.Key]
	if !br.CanExecute() {
		s.log.Warn("circuit open, skipping retailer", "retailer", r.Key)
		s.mu.Lock()
		s.stats.SkippedCycles++
		s.mu.Unlock()
		return
	}

	var observed []model.Product
	failed := false

	for _, url := range r.SearchURLs {
		if ctx.Err() != nil {
			return
		}

		body, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			br.RecordFailure()
			failed = true
			s.log.Error("fetch failed", "retailer", r.Key, "url", url, "error", err)
			s.recordError(fmt.Sprintf("%s: fetch: %v", r.Key, err))
			continue
		}
		br.RecordSuccess()

		products, err := s.scraper.Parse(r, body)
		if err != nil {
			failed = true
			s.log.Error("parse failed", "retailer", r.Key, "url", url, "error", err)
			s.recordError(fmt.Sprintf("%s: parse: %v", r.Key, err))
			continue
		}
		observed = append(observed, products...)
	}

	results := s.engine.Process(ctx, observed)

	sent, suppressed := 0, 0
	for _, res := range results {
		if !res.AlertEligible() {
			continue
		}
		outcome, err := s.gate.Offer(ctx, res.Product, res.Class, res.Previous)
		if err != nil {
			s.log.Error("alert gate", "retailer", r.Key, "product_id", res.Product.ID, "error", err)
			s.recordError(fmt.Sprintf("%s: alert: %v", r.Key, err))
			continue
		}
		switch outcome {
		case alert.OutcomeSent:
			sent++
		case alert.OutcomeSuppressed:
			suppressed++
		}
	}

	s.mu.Lock()
	if failed {
		s.stats.FailedCycles++
	} else {
		s.stats.SuccessfulCycles++
	}
	s.stats.ProductsSeen += len(results)
	s.stats.AlertsSent += sent
	s.stats.AlertsSuppressed += suppressed
	s.mu.Unlock()

	s.log.Info("retailer cycle complete",
		"retailer", r.Key, "products", len(results), "alerts", sent, "suppressed", suppressed)
}

// maybeCleanup purges stock history past the retention window, at most
// once per day.
func (s *Scheduler) maybeCleanup(ctx context.Context) {
	s.mu.Lock()
	due := time.Since(s.lastCleanup) >= 24*time.Hour
	if due {
		s.lastCleanup = time.Now()
	}
	s.mu.Unlock()
	if !due {
		return
	}

	cutoff := time.Now().UTC().Add(-s.cfg.HistoryRetention)
	deleted, err := s.store.CleanupHistory(ctx, cutoff)
	if err != nil {
		s.log.Error("history cleanup", "error", err)
		s.recordError(fmt.Sprintf("cleanup: %v", err))
		return
	}
	if deleted > 0 {
		s.log.Info("history cleanup", "deleted", deleted, "cutoff", cutoff)
	}
}

func (s *Scheduler) recordError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Errors = append(s.stats.Errors, fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), msg))
	if len(s.stats.Errors) > maxStoredErrors {
		s.stats.Errors = s.stats.Errors[len(s.stats.Errors)-maxStoredErrors:]
	}
}

func (s *Scheduler) bumpFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailedCycles++
}
