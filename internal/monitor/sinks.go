package monitor

import (
	"context"
	"time"

	"homehub/internal/events"
	"homehub/internal/logging"
	"homehub/internal/metrics"
	"homehub/internal/status"
	"homehub/internal/storage"
)

// JournalSink appends every detected event to j.
func JournalSink(j *storage.Journal) Sink {
	return SinkFunc(func(ctx context.Context, c Cycle) {
		if err := j.Append(ctx, c.Events, c.At); err != nil {
			logging.Ctx(ctx).Error("failed to append events to journal", "error", err)
		}
	})
}

// ReadingSink stores one telemetry row per cycle.
func ReadingSink(db *storage.Database) Sink {
	return SinkFunc(func(ctx context.Context, c Cycle) {
		if err := db.SaveReading(ctx, c.Status, c.At); err != nil {
			logging.Ctx(ctx).Error("failed to save reading", "error", err)
		}
	})
}

// LogSink logs every event at info level.
func LogSink() Sink {
	return SinkFunc(func(ctx context.Context, c Cycle) {
		for _, e := range c.Events {
			logging.Ctx(ctx).Info("event", "kind", e.Kind, "module", e.Module, "title", e.Title, "body", e.Body)
		}
	})
}

func MetricsSink(m *metrics.Metrics) Sink {
	return SinkFunc(func(_ context.Context, c Cycle) {
		m.ObserveCycle(c.Source, c.Status, c.Events, c.At, c.Duration)
	})
}

// StatusPublisher pushes cycles to an external bus such as MQTT.
type StatusPublisher interface {
	PublishStatus(u status.Unified) error
	PublishEvents(evs []events.Event, at time.Time) error
}

// PublisherSink publishes the status of every cycle that saw at least one
// module, and every event.
func PublisherSink(p StatusPublisher) Sink {
	return SinkFunc(func(ctx context.Context, c Cycle) {
		if !c.Status.Empty() {
			if err := p.PublishStatus(c.Status); err != nil {
				logging.Ctx(ctx).Warn("failed to publish status", "error", err)
			}
		}
		if len(c.Events) > 0 {
			if err := p.PublishEvents(c.Events, c.At); err != nil {
				logging.Ctx(ctx).Warn("failed to publish events", "error", err)
			}
		}
	})
}
