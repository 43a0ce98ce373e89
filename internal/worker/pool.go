package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imkarma/ideaflow/internal/store"
)

type loggerKey struct{}

// StatsSource reports the per-state item counts logged by the monitor.
type StatsSource interface {
	Stats() (store.Stats, error)
}

// Counts is the activity of one worker over a pool run.
type Counts struct {
	Worker    string
	Cycles    int
	Processed int
	Errors    int
}

// Pool runs every worker on its own goroutine and interval until the
// context is cancelled.
type Pool struct {
	workers []Worker
	stats   StatsSource
	monitor time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	counts map[string]*Counts
}

// PoolConfig holds configuration for creating a pool.
type PoolConfig struct {
	Workers         []Worker
	Stats           StatsSource // optional; no monitor without it
	MonitorInterval time.Duration
	Logger          *slog.Logger
}

// NewPool creates a pool over the given workers.
func NewPool(pc PoolConfig) *Pool {
	logger := pc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	counts := make(map[string]*Counts, len(pc.Workers))
	for _, w := range pc.Workers {
		counts[w.Name()] = &Counts{Worker: w.Name()}
	}
	return &Pool{
		workers: pc.Workers,
		stats:   pc.Stats,
		monitor: pc.MonitorInterval,
		logger:  logger,
		counts:  counts,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight cycle has finished. A cycle is never interrupted by shutdown.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			p.loop(ctx, w)
		}(w)
	}
	if p.stats != nil && p.monitor > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.monitorLoop(ctx)
		}()
	}

	p.logger.Info("pool started", "workers", len(p.workers))
	wg.Wait()
	p.logger.Info("pool stopped")
}

func (p *Pool) loop(ctx context.Context, w Worker) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		p.cycle(ctx, w)
		timer.Reset(w.Interval())
	}
}

// cycle runs one RunCycle, isolating the pool from its panics.
func (p *Pool) cycle(ctx context.Context, w Worker) {
	log := p.logger.With("worker", w.Name(), "cycle", uuid.NewString()[:8])
	cctx := context.WithValue(context.WithoutCancel(ctx), loggerKey{}, log)

	n, err := func() (n int, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return w.RunCycle(cctx)
	}()

	p.mu.Lock()
	c := p.counts[w.Name()]
	c.Cycles++
	c.Processed += n
	if err != nil {
		c.Errors++
	}
	p.mu.Unlock()

	switch {
	case err != nil:
		log.Error("cycle failed", "processed", n, "err", err)
	case n > 0:
		log.Debug("cycle done", "processed", n)
	}
}

func (p *Pool) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(p.monitor)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := p.stats.Stats()
			if err != nil {
				p.logger.Error("read stats failed", "err", err)
				continue
			}
			p.logger.Info("pipeline status",
				"pending", s.Pending, "queued", s.Queued, "in_progress", s.InProgress,
				"building", s.Building, "in_review", s.InReview,
				"completed", s.Completed, "failed", s.Failed, "blocked", s.Blocked)
		}
	}
}

// Summary returns the per-worker counts in worker order.
func (p *Pool) Summary() []Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Counts, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, *p.counts[w.Name()])
	}
	return out
}
