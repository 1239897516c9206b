package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"homehub/config"
)

// EmptyPollThreshold is how many consecutive polls with no module must pass
// before the "no modules reachable" warning is raised.
const EmptyPollThreshold = 3

// Dashboard is the foreground poller that keeps the live status fresh.
type Dashboard struct {
	mon    *Monitor
	logger *slog.Logger
	after  func(time.Duration) <-chan time.Time

	mu          sync.RWMutex
	running     bool
	emptyStreak int
	warning     bool
}

func NewDashboard(mon *Monitor) *Dashboard {
	return &Dashboard{
		mon:    mon,
		logger: mon.logger.With("orchestrator", SourceDashboard),
		after:  time.After,
	}
}

// Run polls until ctx is done. The interval is re-read from the
// configuration before every wait.
func (d *Dashboard) Run(ctx context.Context) error {
	d.setRunning(true)
	defer d.setRunning(false)
	d.logger.Info("dashboard poller started")

	for {
		interval := time.Duration(config.MinPollIntervalSec) * time.Second
		cfg, err := d.mon.LoadConfig()
		if err != nil {
			d.mon.fail(SourceDashboard, err)
		} else {
			interval = cfg.PollInterval()
			c, _ := d.mon.Poll(ctx, SourceDashboard, cfg)
			d.observe(c.Status.Empty())
		}

		if !sleep(ctx, d.after, interval) {
			d.logger.Info("dashboard poller stopped")
			return nil
		}
	}
}

func (d *Dashboard) observe(empty bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !empty {
		if d.warning {
			d.logger.Info("modules reachable again")
		}
		d.emptyStreak = 0
		d.warning = false
		return
	}

	d.emptyStreak++
	if d.emptyStreak >= EmptyPollThreshold && !d.warning {
		d.warning = true
		d.logger.Warn("no modules reachable", "consecutive_empty_polls", d.emptyStreak)
	}
}

// Warning reports whether the "no modules reachable" warning is raised.
func (d *Dashboard) Warning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.warning
}

func (d *Dashboard) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Dashboard) setRunning(v bool) {
	d.mu.Lock()
	d.running = v
	d.mu.Unlock()
}
