package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"homehub/config"
)

// Realtime is the fast poller that runs only while realtime monitoring is
// enabled. It reloads the configuration every iteration and stops itself once
// the flag is turned off.
type Realtime struct {
	mon    *Monitor
	logger *slog.Logger
	after  func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	running bool
	recheck bool
	done    chan struct{}
}

func NewRealtime(mon *Monitor) *Realtime {
	return &Realtime{
		mon:    mon,
		logger: mon.logger.With("orchestrator", SourceRealtime),
		after:  time.After,
	}
}

// Start launches the loop in the background unless it is already running.
// It reports whether a new loop was started. A call that finds the loop
// running makes it reload the configuration once more before it exits, so an
// enable racing with the loop's own shutdown is never lost.
func (r *Realtime) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.recheck = true
		return false
	}
	r.running = true
	r.recheck = false
	r.done = make(chan struct{})

	go r.loop(ctx, r.done)
	return true
}

func (r *Realtime) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		r.Run(ctx)

		r.mu.Lock()
		if r.recheck && ctx.Err() == nil {
			r.recheck = false
			r.mu.Unlock()
			continue
		}
		r.running = false
		r.recheck = false
		r.mu.Unlock()
		return
	}
}

// Wait blocks until the loop started by Start has exited.
func (r *Realtime) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Run polls while realtime monitoring is enabled and ctx is live.
func (r *Realtime) Run(ctx context.Context) error {
	r.logger.Info("realtime monitor started")
	defer r.logger.Info("realtime monitor stopped")

	for {
		interval := time.Duration(config.MinRealtimeIntervalSec) * time.Second
		cfg, err := r.mon.LoadConfig()
		switch {
		case err != nil:
			r.mon.fail(SourceRealtime, err)
		case !cfg.Polling.RealtimeEnabled:
			return nil
		default:
			interval = cfg.RealtimeInterval()
			r.mon.Poll(ctx, SourceRealtime, cfg)
		}

		if !sleep(ctx, r.after, interval) {
			return nil
		}
	}
}

func (r *Realtime) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
