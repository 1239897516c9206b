package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultWorkerInterval = 15 * time.Minute
	DefaultWorkerBackoff  = 30 * time.Second
)

// Worker is the periodic background job. A failed cycle is retried with
// exponential backoff capped at the period.
type Worker struct {
	mon      *Monitor
	interval time.Duration
	backoff  time.Duration
	logger   *slog.Logger
	after    func(time.Duration) <-chan time.Time
	running  atomic.Bool
}

func NewWorker(mon *Monitor, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultWorkerInterval
	}
	return &Worker{
		mon:      mon,
		interval: interval,
		backoff:  DefaultWorkerBackoff,
		logger:   mon.logger.With("orchestrator", SourceWorker),
		after:    time.After,
	}
}

// Run executes a cycle immediately and then once per period until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("background worker started", "interval", w.interval)

	retry := w.backoff
	for {
		wait := w.interval
		if _, err := w.mon.PollOnce(ctx, SourceWorker); err != nil {
			wait = retry
			w.logger.Info("background cycle will be retried", "in", wait)
			retry = nextBackoff(retry, w.interval)
		} else {
			retry = w.backoff
		}

		if !sleep(ctx, w.after, wait) {
			w.logger.Info("background worker stopped")
			return nil
		}
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	next := cur * 2
	if next > limit {
		return limit
	}
	return next
}

func (w *Worker) Running() bool { return w.running.Load() }
