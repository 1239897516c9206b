package device

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"homehub/config"
	"homehub/internal/status"
)

// HistoryKind selects one of the devices' aggregate endpoints.
type HistoryKind string

const (
	HistoryDaily   HistoryKind = "daily"
	HistoryMonthly HistoryKind = "monthly"
	HistoryYearly  HistoryKind = "yearly"
	// HistoryLoad is the load controller's per-minute on/off timeline.
	HistoryLoad HistoryKind = "history"
)

// FetchHistory returns the raw aggregate for kind. param is the date
// (YYYY-MM-DD) for daily and the month (YYYY-MM) for monthly; it is ignored
// otherwise. A blank param lets the device pick today or this month.
func (c *Controller) FetchHistory(ctx context.Context, cfg *config.Config, kind HistoryKind, param string) (status.Fields, error) {
	param = strings.TrimSpace(param)
	module := status.ModuleInverter
	query := url.Values{}

	switch kind {
	case HistoryDaily:
		if param != "" {
			if _, err := time.Parse("2006-01-02", param); err != nil {
				return nil, fmt.Errorf("%w: date %q", ErrInvalidHistory, param)
			}
		}
		query.Set("date", param)
	case HistoryMonthly:
		if param != "" {
			if _, err := time.Parse("2006-01", param); err != nil {
				return nil, fmt.Errorf("%w: month %q", ErrInvalidHistory, param)
			}
		}
		query.Set("month", param)
	case HistoryYearly:
	case HistoryLoad:
		module = status.ModuleLoadController
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidHistory, kind)
	}

	ep, err := endpointFor(cfg, module)
	if err != nil {
		return nil, err
	}
	fields, err := c.client.GetJSON(ctx, ep, "/api/"+string(kind), query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", kind, err)
	}
	return fields, nil
}

// Timeline flag bits of the load controller history.
const (
	FlagBoiler = 1 << iota
	FlagPump
	FlagGrid
	FlagPV
)

// TimelineSample is one decoded history row.
type TimelineSample struct {
	At       time.Time `json:"at"`
	BoilerOn bool      `json:"boilerOn"`
	PumpOn   bool      `json:"pumpOn"`
	GridOn   bool      `json:"gridOn"`
	PvOn     bool      `json:"pvOn"`
}

// Timeline is the decoded load controller history for one day.
type Timeline struct {
	Date    string           `json:"date"`
	Samples []TimelineSample `json:"samples"`
}

// DecodeTimeline turns {date, samples:[{m, f}]} into samples placed at
// midnight of date plus m minutes, in loc. Rows without a numeric minute are
// skipped; a missing or invalid date is an error.
func DecodeTimeline(f status.Fields, loc *time.Location) (Timeline, error) {
	if loc == nil {
		loc = time.Local
	}
	date := f.String("", "date")
	if date == "" {
		return Timeline{}, fmt.Errorf("%w: history payload has no date", ErrInvalidHistory)
	}
	dayStart, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return Timeline{}, fmt.Errorf("%w: invalid timeline date %q", ErrInvalidHistory, date)
	}

	out := Timeline{Date: date, Samples: []TimelineSample{}}
	rows, _ := f["samples"].([]any)
	for _, raw := range rows {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		row := status.Fields(obj)
		minute := row.NullableFloat("m")
		if minute == nil {
			continue
		}
		flags := row.Int("f", 0)
		out.Samples = append(out.Samples, TimelineSample{
			At:       dayStart.Add(time.Duration(*minute * float64(time.Minute))),
			BoilerOn: flags&FlagBoiler != 0,
			PumpOn:   flags&FlagPump != 0,
			GridOn:   flags&FlagGrid != 0,
			PvOn:     flags&FlagPV != 0,
		})
	}

	sort.SliceStable(out.Samples, func(i, j int) bool {
		return out.Samples[i].At.Before(out.Samples[j].At)
	})
	return out, nil
}
