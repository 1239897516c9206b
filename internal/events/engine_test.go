package events

import (
	"testing"

	"homehub/config"
	"homehub/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allOn() *config.Config {
	return &config.Config{
		Devices: config.DevicesConfig{
			Inverter:       config.DeviceConfig{Enabled: true},
			LoadController: config.DeviceConfig{Enabled: true},
			Garage:         config.DeviceConfig{Enabled: true},
		},
		Notify: config.NotifyConfig{
			PvGeneration: true,
			GridRelay:    true,
			GridPresence: true,
			GridMode:     true,
			LoadMode:     true,
			Boiler1Mode:  true,
			PumpMode:     true,
			Boiler2Mode:  true,
			GateState:    true,
			Language:     "en",
		},
	}
}

func fullSnapshot() Snapshot {
	return Snapshot{
		PvActive:          ptr(true),
		PvW:               ptr(450.0),
		GridRelayOn:       ptr(true),
		GridPresent:       ptr(true),
		GridVoltage:       ptr(229.0),
		GridRelayReason:   ptr("schedule"),
		GridMode:          ptr("AUTO"),
		GridModeReason:    ptr("manual"),
		LoadMode:          ptr("AUTO"),
		LoadModeReason:    ptr("manual"),
		Boiler1Mode:       ptr("AUTO"),
		Boiler1ModeReason: ptr("manual"),
		PumpMode:          ptr("OFF"),
		PumpModeReason:    ptr("manual"),
		Boiler2Mode:       ptr("AUTO"),
		Boiler2ModeReason: ptr("manual"),
		GateState:         ptr("closed"),
		GateReason:        ptr("sensor"),
	}
}

func titles(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

func TestDetectWithoutBaseline(t *testing.T) {
	assert.Empty(t, Detect(nil, fullSnapshot(), allOn()))
	assert.Empty(t, Detect(&Snapshot{}, fullSnapshot(), allOn()))
}

func TestDetectNoChange(t *testing.T) {
	prev := fullSnapshot()
	assert.Empty(t, Detect(&prev, fullSnapshot(), allOn()))
}

func TestDetectRelayAndPV(t *testing.T) {
	prev := Snapshot{GridRelayOn: ptr(false), PvW: ptr(0.0), PvActive: ptr(false)}
	cur := Snapshot{GridRelayOn: ptr(true), PvW: ptr(120.0), PvActive: ptr(true)}

	events := Detect(&prev, cur, allOn())
	require.Len(t, events, 2)

	assert.Equal(t, KindPvGeneration, events[0].Kind)
	assert.Equal(t, "PV generation started", events[0].Title)
	assert.Contains(t, events[0].Body, "120")
	assert.Contains(t, events[0].Body, "80")

	assert.Equal(t, "GRID relay turned ON", events[1].Title)
	assert.Equal(t, "Reason: Manual change", events[1].Body)
}

func TestDetectGateTransition(t *testing.T) {
	prev := Snapshot{GateState: ptr("closed")}
	cur := Snapshot{GateState: ptr("open"), GateReason: ptr("remote_button")}

	events := Detect(&prev, cur, allOn())
	require.Len(t, events, 1)
	assert.Equal(t, status.ModuleGarage, events[0].Module)
	assert.Equal(t, "Gate state changed", events[0].Title)
	assert.Contains(t, events[0].Body, "closed -> open")
	assert.Equal(t, "State: closed -> open. Reason: remote_button", events[0].Body)
}

func TestDetectGating(t *testing.T) {
	prev := Snapshot{Boiler1Mode: ptr("AUTO")}
	cur := Snapshot{Boiler1Mode: ptr("ON")}

	cfg := allOn()
	require.Len(t, Detect(&prev, cur, cfg), 1)

	cfg.Notify.Boiler1Mode = false
	assert.Empty(t, Detect(&prev, cur, cfg))

	cfg = allOn()
	cfg.Devices.LoadController.Enabled = false
	assert.Empty(t, Detect(&prev, cur, cfg))

	cfg = allOn()
	cfg.Devices.Inverter.Enabled = false
	assert.Len(t, Detect(&prev, cur, cfg), 1)
}

func TestDetectIgnoresMissingValues(t *testing.T) {
	prev := fullSnapshot()
	cur := fullSnapshot()
	cur.GridRelayOn = nil
	cur.PvActive = nil
	cur.GridMode = ptr("  ")
	cur.GateState = nil
	prev.PumpMode = ptr("")
	cur.PumpMode = ptr("ON")

	assert.Empty(t, Detect(&prev, cur, allOn()))
}

func TestDetectOrder(t *testing.T) {
	prev := fullSnapshot()
	cur := Snapshot{
		PvActive:          ptr(false),
		PvW:               ptr(12.0),
		GridRelayOn:       ptr(false),
		GridRelayReason:   ptr("overcurrent"),
		GridPresent:       ptr(false),
		GridVoltage:       ptr(0.0),
		GridMode:          ptr("ON"),
		GridModeReason:    ptr("UNKNOWN"),
		LoadMode:          ptr("OFF"),
		Boiler1Mode:       ptr("ON"),
		PumpMode:          ptr("AUTO"),
		PumpModeReason:    ptr("pulse"),
		Boiler2Mode:       ptr("OFF"),
		Boiler2ModeReason: ptr("temperature"),
		GateState:         ptr("open"),
	}

	events := Detect(&prev, cur, allOn())
	assert.Equal(t, []string{
		"PV generation stopped",
		"GRID relay turned OFF",
		"GRID disappeared",
		"GRID mode changed",
		"LOAD mode changed",
		"BOILER1 mode changed",
		"PUMP mode changed",
		"BOILER2 mode changed",
		"Gate state changed",
	}, titles(events))

	assert.Equal(t, "Reason: PV=12W, threshold 80W", events[0].Body)
	assert.Equal(t, "Reason: overcurrent", events[1].Body)
	assert.Equal(t, "Line voltage: 0V", events[2].Body)
	assert.Equal(t, "AUTO -> ON. Reason: Manual change", events[3].Body)
	assert.Equal(t, "OFF -> AUTO. Reason: Manual pulse", events[6].Body)
	assert.Equal(t, "AUTO -> OFF. Reason: temperature", events[7].Body)
}

func TestDetectIsPure(t *testing.T) {
	prev := fullSnapshot()
	cur := fullSnapshot()
	cur.GridMode = ptr("OFF")

	first := Detect(&prev, cur, allOn())
	second := Detect(&prev, cur, allOn())
	assert.Equal(t, first, second)
	assert.Equal(t, "AUTO", *prev.GridMode)
}

func TestDetectLocalized(t *testing.T) {
	cfg := allOn()
	cfg.Notify.Language = "uk"
	prev := Snapshot{GridRelayOn: ptr(false)}
	cur := Snapshot{GridRelayOn: ptr(true), GridRelayReason: ptr("---")}

	events := Detect(&prev, cur, cfg)
	require.Len(t, events, 1)
	assert.Equal(t, "Реле GRID увімкнено", events[0].Title)
	assert.Equal(t, "Причина: Ручна зміна", events[0].Body)
	assert.Equal(t, ReasonManualChange, events[0].Reason)

	cfg.Notify.Language = "fr"
	events = Detect(&prev, cur, cfg)
	require.Len(t, events, 1)
	assert.Equal(t, "GRID relay turned ON", events[0].Title)
}

func TestNormalizeReason(t *testing.T) {
	manual := []string{"", "   ", "unknown", "---", "UNKNOWN", "manual_change", "Manual", "uncnov", "none", "NULL", "n/a", "NA", "reason-unknown", "_-_"}
	for _, in := range manual {
		assert.Equal(t, ReasonManualChange, NormalizeReason(in), "input %q", in)
	}
	assert.Equal(t, ReasonManualPulse, NormalizeReason("PULSE"))
	assert.Equal(t, ReasonManualChange, NormalizeReason("manual-pulse"))
	assert.Equal(t, "overcurrent", NormalizeReason("overcurrent"))
	assert.Equal(t, "Low_Battery", NormalizeReason(" Low_Battery "))
}

func TestFromUnified(t *testing.T) {
	u := status.Unified{
		Inverter: &status.InverterStatus{
			Common:      status.Common{PvW: 80, LineVoltage: 231},
			Mode:        "AUTO",
			GridRelayOn: true,
			GridPresent: true,
		},
		Garage: &status.GarageStatus{GateState: "open", GateReason: "manual"},
	}

	s := FromUnified(u)
	require.NotNil(t, s.PvActive)
	assert.True(t, *s.PvActive)
	assert.Equal(t, 231.0, *s.GridVoltage)
	assert.Equal(t, "AUTO", *s.GridMode)
	assert.Equal(t, "open", *s.GateState)
	assert.Nil(t, s.Boiler1Mode)
	assert.Nil(t, s.PumpMode)

	assert.Equal(t, Snapshot{}, FromUnified(status.Unified{}))
}

func TestSnapshotEncoding(t *testing.T) {
	data, err := MarshalSnapshot(Snapshot{GateState: ptr("open"), PvActive: ptr(false)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gateState":"open"`)
	assert.Contains(t, string(data), `"pumpMode":null`)

	s, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "open", *s.GateState)

	_, err = UnmarshalSnapshot([]byte("{corrupt"))
	assert.Error(t, err)
}
