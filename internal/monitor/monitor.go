package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"homehub/config"
	"homehub/internal/events"
	"homehub/internal/logging"
	"homehub/internal/status"
)

// Poll sources.
const (
	SourceDashboard = "dashboard"
	SourceWorker    = "worker"
	SourceRealtime  = "realtime"
	SourceManual    = "manual"
)

// ConfigLoader reads the current configuration. It is called at the start of
// every cycle.
type ConfigLoader interface {
	Load() (*config.Config, error)
}

type Aggregator interface {
	FetchUnified(ctx context.Context, cfg *config.Config) status.Unified
}

// Baseline is the shared snapshot store.
type Baseline interface {
	Advance(ctx context.Context, current events.Snapshot, fn func(prev *events.Snapshot) error) error
}

// Cycle is the outcome of one poll.
type Cycle struct {
	Source   string
	At       time.Time
	Duration time.Duration
	Status   status.Unified
	Events   []events.Event
	Config   *config.Config
}

// Sink consumes completed cycles.
type Sink interface {
	HandleCycle(ctx context.Context, c Cycle)
}

type SinkFunc func(ctx context.Context, c Cycle)

func (f SinkFunc) HandleCycle(ctx context.Context, c Cycle) { f(ctx, c) }

type Config struct {
	Configs    ConfigLoader
	Aggregator Aggregator
	Baseline   Baseline
	Sinks      []Sink
	// OnError, when set, is told about failed cycles.
	OnError func(source string, err error)
	Logger  *slog.Logger
}

// Monitor runs aggregate, detect and publish cycles for every orchestrator.
type Monitor struct {
	configs  ConfigLoader
	agg      Aggregator
	baseline Baseline
	sinks    []Sink
	onError  func(string, error)
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	latest   *status.Unified
	lastPoll time.Time
	polls    map[string]int64
}

func New(cfg Config) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	return &Monitor{
		configs:  cfg.Configs,
		agg:      cfg.Aggregator,
		baseline: cfg.Baseline,
		sinks:    cfg.Sinks,
		onError:  cfg.OnError,
		logger:   logger.With("component", "monitor"),
		now:      time.Now,
		polls:    make(map[string]int64),
	}
}

// AddSink registers s for subsequent cycles.
func (m *Monitor) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// LoadConfig reads the configuration from disk.
func (m *Monitor) LoadConfig() (*config.Config, error) {
	cfg, err := m.configs.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// PollOnce loads the configuration and runs one cycle.
func (m *Monitor) PollOnce(ctx context.Context, source string) (Cycle, error) {
	cfg, err := m.LoadConfig()
	if err != nil {
		m.fail(source, err)
		return Cycle{}, err
	}
	return m.Poll(ctx, source, cfg)
}

// Poll runs one cycle with cfg. Events are detected against the shared
// baseline, which is advanced even when no event fires. Sinks only run once
// the baseline is committed.
func (m *Monitor) Poll(ctx context.Context, source string, cfg *config.Config) (Cycle, error) {
	ctx = logging.With(ctx, m.logger.With("source", source))
	start := m.now()

	u := m.agg.FetchUnified(ctx, cfg)
	c := Cycle{Source: source, At: start, Status: u, Config: cfg}

	m.mu.Lock()
	m.latest = &u
	m.lastPoll = start
	m.polls[source]++
	sinks := append([]Sink(nil), m.sinks...)
	m.mu.Unlock()

	current := events.FromUnified(u)
	err := m.baseline.Advance(ctx, current, func(prev *events.Snapshot) error {
		c.Events = events.Detect(prev, current, cfg)
		return nil
	})
	if err != nil {
		err = fmt.Errorf("advance baseline: %w", err)
		m.fail(source, err)
		return c, err
	}
	c.Duration = m.now().Sub(start)

	logging.Ctx(ctx).Debug("poll cycle",
		"modules", u.Present(),
		"from_multicast", u.FromMulticast,
		"events", len(c.Events),
		"duration", c.Duration)

	for _, s := range sinks {
		s.HandleCycle(ctx, c)
	}
	return c, nil
}

func (m *Monitor) fail(source string, err error) {
	m.logger.Warn("poll cycle failed", "source", source, "error", err)
	if m.onError != nil {
		m.onError(source, err)
	}
}

// Latest returns the most recent status, or nil before the first cycle.
func (m *Monitor) Latest() *status.Unified {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// LastPoll returns when the last cycle started.
func (m *Monitor) LastPoll() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPoll
}

// PollCounts returns the number of cycles started per source.
func (m *Monitor) PollCounts() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.polls))
	for k, v := range m.polls {
		out[k] = v
	}
	return out
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, after func(time.Duration) <-chan time.Time, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-after(d):
		return true
	}
}
