package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"homehub/config"
	"homehub/internal/logging"
	"homehub/internal/multicast"
	"homehub/internal/status"

	"golang.org/x/sync/errgroup"
)

// MulticastSource is the opportunistic broadcast path.
type MulticastSource interface {
	PollWindow(ctx context.Context, window time.Duration) bool
	Unified(now time.Time, enabled func(status.Module) bool) status.Unified
}

// ModuleFetcher is the direct HTTP path, one call per module.
type ModuleFetcher interface {
	FetchInverter(ctx context.Context, cfg *config.Config) (*status.InverterStatus, error)
	FetchLoadController(ctx context.Context, cfg *config.Config) (*status.LoadControllerStatus, error)
	FetchGarage(ctx context.Context, cfg *config.Config) (*status.GarageStatus, error)
}

// Aggregator merges the three modules into one status per cycle.
type Aggregator struct {
	multicast MulticastSource
	fetcher   ModuleFetcher
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an Aggregator. mc may be nil to disable the multicast path.
func New(mc MulticastSource, fetcher ModuleFetcher, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	return &Aggregator{
		multicast: mc,
		fetcher:   fetcher,
		logger:    logger.With("component", "aggregator"),
		now:       time.Now,
	}
}

// FetchUnified never fails. Disabled, unreachable or broken modules are nil in
// the result, and a panic inside a fetcher is recovered into an absent module.
func (a *Aggregator) FetchUnified(ctx context.Context, cfg *config.Config) (u status.Unified) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("aggregation panicked", "panic", r)
			u = status.Unified{UpdatedAtMs: a.now().UnixMilli()}
		}
	}()

	if cfg == nil {
		return status.Unified{UpdatedAtMs: a.now().UnixMilli()}
	}

	if mc, ok := a.fromMulticast(ctx, cfg); ok {
		return mc
	}
	return a.fromHTTP(ctx, cfg)
}

// fromMulticast reports false on any failure, a panic included, so the caller
// falls back to HTTP.
func (a *Aggregator) fromMulticast(ctx context.Context, cfg *config.Config) (u status.Unified, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("multicast read panicked", "panic", fmt.Sprint(r))
			u, ok = status.Unified{}, false
		}
	}()

	if a.multicast == nil || !cfg.Multicast.Enabled {
		return status.Unified{}, false
	}
	window := cfg.Multicast.Window
	if window <= 0 {
		window = multicast.DefaultWindow
	}
	a.multicast.PollWindow(ctx, window)

	u = a.multicast.Unified(a.now(), cfg.Enabled)
	if u.Empty() {
		return status.Unified{}, false
	}
	u.FromMulticast = true
	a.logger.Debug("status from multicast", "modules", u.Present())
	return u, true
}

func (a *Aggregator) fromHTTP(ctx context.Context, cfg *config.Config) status.Unified {
	var (
		u status.Unified
		g errgroup.Group
	)

	// Each task swallows its own failure so one module never cancels another.
	if cfg.Enabled(status.ModuleInverter) {
		g.Go(func() error {
			u.Inverter = fetchModule(a, ctx, cfg, status.ModuleInverter, a.fetcher.FetchInverter)
			return nil
		})
	}
	if cfg.Enabled(status.ModuleLoadController) {
		g.Go(func() error {
			u.LoadController = fetchModule(a, ctx, cfg, status.ModuleLoadController, a.fetcher.FetchLoadController)
			return nil
		})
	}
	if cfg.Enabled(status.ModuleGarage) {
		g.Go(func() error {
			u.Garage = fetchModule(a, ctx, cfg, status.ModuleGarage, a.fetcher.FetchGarage)
			return nil
		})
	}
	_ = g.Wait()

	u.UpdatedAtMs = a.now().UnixMilli()
	return u
}

func fetchModule[T any](a *Aggregator, ctx context.Context, cfg *config.Config, m status.Module,
	fetch func(context.Context, *config.Config) (*T, error)) (out *T) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("module fetch panicked", "module", m, "panic", fmt.Sprint(r))
			out = nil
		}
	}()

	v, err := fetch(ctx, cfg)
	if err != nil {
		a.logger.Debug("module unavailable", "module", m, "error", err)
		return nil
	}
	return v
}
