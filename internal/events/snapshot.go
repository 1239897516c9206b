package events

import (
	"encoding/json"
	"fmt"

	"homehub/internal/status"
)

// PVActiveThresholdW is the PV power at which generation counts as active.
const PVActiveThresholdW = 80.0

// Snapshot is the part of a unified status that event detection compares.
// A nil field was not reported and never takes part in a comparison.
type Snapshot struct {
	PvActive          *bool    `json:"pvActive"`
	PvW               *float64 `json:"pvW"`
	GridRelayOn       *bool    `json:"gridRelayOn"`
	GridPresent       *bool    `json:"gridPresent"`
	GridVoltage       *float64 `json:"gridVoltage"`
	GridRelayReason   *string  `json:"gridRelayReason"`
	GridMode          *string  `json:"gridMode"`
	GridModeReason    *string  `json:"gridModeReason"`
	LoadMode          *string  `json:"loadMode"`
	LoadModeReason    *string  `json:"loadModeReason"`
	Boiler1Mode       *string  `json:"boiler1Mode"`
	Boiler1ModeReason *string  `json:"boiler1ModeReason"`
	PumpMode          *string  `json:"pumpMode"`
	PumpModeReason    *string  `json:"pumpModeReason"`
	Boiler2Mode       *string  `json:"boiler2Mode"`
	Boiler2ModeReason *string  `json:"boiler2ModeReason"`
	GateState         *string  `json:"gateState"`
	GateReason        *string  `json:"gateReason"`
}

func ptr[T any](v T) *T { return &v }

// FromUnified projects u. Fields of absent modules stay nil.
func FromUnified(u status.Unified) Snapshot {
	var s Snapshot
	if inv := u.Inverter; inv != nil {
		s.PvActive = ptr(inv.PvW >= PVActiveThresholdW)
		s.PvW = ptr(inv.PvW)
		s.GridRelayOn = ptr(inv.GridRelayOn)
		s.GridPresent = ptr(inv.GridPresent)
		s.GridVoltage = ptr(inv.LineVoltage)
		s.GridRelayReason = ptr(inv.GridRelayReason)
		s.GridMode = ptr(inv.Mode)
		s.GridModeReason = ptr(inv.ModeReason)
		s.LoadMode = ptr(inv.LoadMode)
		s.LoadModeReason = ptr(inv.LoadModeReason)
	}
	if lc := u.LoadController; lc != nil {
		s.Boiler1Mode = ptr(lc.Boiler1Mode)
		s.Boiler1ModeReason = ptr(lc.Boiler1ModeReason)
		s.PumpMode = ptr(lc.PumpMode)
		s.PumpModeReason = ptr(lc.PumpModeReason)
	}
	if g := u.Garage; g != nil {
		s.Boiler2Mode = ptr(g.Boiler2Mode)
		s.Boiler2ModeReason = ptr(g.Boiler2ModeReason)
		s.GateState = ptr(g.GateState)
		s.GateReason = ptr(g.GateReason)
	}
	return s
}

// MarshalSnapshot encodes s for storage.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// UnmarshalSnapshot decodes a stored snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
