package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/ideaflow/internal/store"
)

type stubWorker struct {
	name      string
	processed int
	err       error
	panics    bool
	cycles    atomic.Int32
	sawLogger atomic.Bool
}

func (w *stubWorker) Name() string            { return w.name }
func (w *stubWorker) Interval() time.Duration { return 5 * time.Millisecond }

func (w *stubWorker) RunCycle(ctx context.Context) (int, error) {
	w.cycles.Add(1)
	if _, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		w.sawLogger.Store(true)
	}
	if w.panics {
		panic("boom")
	}
	return w.processed, w.err
}

type stubStats struct{ calls atomic.Int32 }

func (s *stubStats) Stats() (store.Stats, error) {
	s.calls.Add(1)
	return store.Stats{Pending: 1}, nil
}

func runPool(t *testing.T, p *Pool, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, until, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestPool_RunsUntilCancelled(t *testing.T) {
	ok := &stubWorker{name: "DEV", processed: 1}
	failing := &stubWorker{name: "QA", err: errors.New("db locked")}
	stats := &stubStats{}
	p := NewPool(PoolConfig{
		Workers:         []Worker{ok, failing},
		Stats:           stats,
		MonitorInterval: 5 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	runPool(t, p, func() bool {
		return ok.cycles.Load() >= 3 && failing.cycles.Load() >= 3 && stats.calls.Load() >= 1
	})

	sum := p.Summary()
	require.Len(t, sum, 2)
	assert.Equal(t, "DEV", sum[0].Worker)
	assert.GreaterOrEqual(t, sum[0].Cycles, 3)
	assert.Equal(t, sum[0].Cycles, sum[0].Processed)
	assert.Zero(t, sum[0].Errors)
	assert.Equal(t, "QA", sum[1].Worker)
	assert.Equal(t, sum[1].Cycles, sum[1].Errors)
	assert.True(t, ok.sawLogger.Load())
}

func TestPool_PanicDoesNotStopOtherWorkers(t *testing.T) {
	bad := &stubWorker{name: "BUILDER", panics: true}
	good := &stubWorker{name: "PM"}
	p := NewPool(PoolConfig{
		Workers: []Worker{bad, good},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	runPool(t, p, func() bool {
		return bad.cycles.Load() >= 2 && good.cycles.Load() >= 2
	})

	sum := p.Summary()
	assert.GreaterOrEqual(t, sum[0].Errors, 2)
	assert.Zero(t, sum[1].Errors)
}
