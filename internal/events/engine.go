package events

import (
	"strings"

	"homehub/config"
	"homehub/internal/status"
)

// Kind is a stable machine identifier of an event trigger.
type Kind string

const (
	KindPvGeneration Kind = "pv_generation"
	KindGridRelay    Kind = "grid_relay"
	KindGridPresence Kind = "grid_presence"
	KindGridMode     Kind = "grid_mode"
	KindLoadMode     Kind = "load_mode"
	KindBoiler1Mode  Kind = "boiler1_mode"
	KindPumpMode     Kind = "pump_mode"
	KindBoiler2Mode  Kind = "boiler2_mode"
	KindGateState    Kind = "gate_state"
)

// Event is one detected transition.
type Event struct {
	Kind   Kind          `json:"kind"`
	Module status.Module `json:"module"`
	Title  string        `json:"title"`
	Body   string        `json:"body"`
	// Reason is the normalized device reason, empty for PV and presence events.
	Reason string `json:"reason,omitempty"`
}

type modeTrigger struct {
	kind    Kind
	module  status.Module
	enabled func(config.NotifyConfig) bool
	title   messageKey
	field   func(*Snapshot) (mode, reason *string)
}

var modeTriggers = []modeTrigger{
	{
		kind: KindGridMode, module: status.ModuleInverter, title: msgGridModeChanged,
		enabled: func(n config.NotifyConfig) bool { return n.GridMode },
		field:   func(s *Snapshot) (*string, *string) { return s.GridMode, s.GridModeReason },
	},
	{
		kind: KindLoadMode, module: status.ModuleInverter, title: msgLoadModeChanged,
		enabled: func(n config.NotifyConfig) bool { return n.LoadMode },
		field:   func(s *Snapshot) (*string, *string) { return s.LoadMode, s.LoadModeReason },
	},
	{
		kind: KindBoiler1Mode, module: status.ModuleLoadController, title: msgBoiler1ModeChanged,
		enabled: func(n config.NotifyConfig) bool { return n.Boiler1Mode },
		field:   func(s *Snapshot) (*string, *string) { return s.Boiler1Mode, s.Boiler1ModeReason },
	},
	{
		kind: KindPumpMode, module: status.ModuleLoadController, title: msgPumpModeChanged,
		enabled: func(n config.NotifyConfig) bool { return n.PumpMode },
		field:   func(s *Snapshot) (*string, *string) { return s.PumpMode, s.PumpModeReason },
	},
	{
		kind: KindBoiler2Mode, module: status.ModuleGarage, title: msgBoiler2ModeChanged,
		enabled: func(n config.NotifyConfig) bool { return n.Boiler2Mode },
		field:   func(s *Snapshot) (*string, *string) { return s.Boiler2Mode, s.Boiler2ModeReason },
	},
}

func flipped(prev, cur *bool) bool {
	return prev != nil && cur != nil && *prev != *cur
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func changed(prev, cur *string) bool {
	return !blank(prev) && !blank(cur) && *prev != *cur
}

func intOrZero(v *float64) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

// Detect compares two snapshots and returns the enabled transitions in a fixed
// order: PV, grid relay, grid presence, the mode triggers, then the gate.
// A nil prev means there is no baseline and nothing is reported.
func Detect(prev *Snapshot, cur Snapshot, cfg *config.Config) []Event {
	if prev == nil || cfg == nil {
		return nil
	}
	var out []Event
	l := localizerFor(cfg.Notify.Language)
	notify := cfg.Notify
	inverter := cfg.Enabled(status.ModuleInverter)

	if inverter && notify.PvGeneration && flipped(prev.PvActive, cur.PvActive) {
		title := l.text(msgPvStopped)
		if *cur.PvActive {
			title = l.text(msgPvStarted)
		}
		out = append(out, Event{
			Kind:   KindPvGeneration,
			Module: status.ModuleInverter,
			Title:  title,
			Body:   l.text(msgPvBody, intOrZero(cur.PvW), int(PVActiveThresholdW)),
		})
	}

	if inverter && notify.GridRelay && flipped(prev.GridRelayOn, cur.GridRelayOn) {
		title := l.text(msgGridRelayOff)
		if *cur.GridRelayOn {
			title = l.text(msgGridRelayOn)
		}
		reason := normalizePtr(cur.GridRelayReason)
		out = append(out, Event{
			Kind:   KindGridRelay,
			Module: status.ModuleInverter,
			Title:  title,
			Body:   l.text(msgReasonBody, l.reason(reason)),
			Reason: reason,
		})
	}

	if inverter && notify.GridPresence && flipped(prev.GridPresent, cur.GridPresent) {
		title := l.text(msgGridDisappeared)
		if *cur.GridPresent {
			title = l.text(msgGridAppeared)
		}
		out = append(out, Event{
			Kind:   KindGridPresence,
			Module: status.ModuleInverter,
			Title:  title,
			Body:   l.text(msgGridVoltageBody, intOrZero(cur.GridVoltage)),
		})
	}

	for _, t := range modeTriggers {
		if !cfg.Enabled(t.module) || !t.enabled(notify) {
			continue
		}
		prevMode, _ := t.field(prev)
		curMode, curReason := t.field(&cur)
		if !changed(prevMode, curMode) {
			continue
		}
		reason := normalizePtr(curReason)
		out = append(out, Event{
			Kind:   t.kind,
			Module: t.module,
			Title:  l.text(t.title),
			Body:   l.text(msgModeBody, *prevMode, *curMode, l.reason(reason)),
			Reason: reason,
		})
	}

	if cfg.Enabled(status.ModuleGarage) && notify.GateState && changed(prev.GateState, cur.GateState) {
		reason := normalizePtr(cur.GateReason)
		out = append(out, Event{
			Kind:   KindGateState,
			Module: status.ModuleGarage,
			Title:  l.text(msgGateChanged),
			Body:   l.text(msgGateBody, *prev.GateState, *cur.GateState, l.reason(reason)),
			Reason: reason,
		})
	}

	return out
}
