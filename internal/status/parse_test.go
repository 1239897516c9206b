package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inverterPayload = `{
	"pv": 1250.5, "ac_in": "310", "ac_out": 880, "gridVolt": 231.4,
	"battery": 76, "battery_power": -120, "mode": "AUTO", "mode_reason": "schedule",
	"load_mode": "ON", "pin34_state": "on", "pin34_reason": "low_battery",
	"pinLoad_state": 1, "rtc_time": "12:01:02", "rtc_date": "2026-10-15",
	"bme_temp": 21.5, "wifi_strength": -61
}`

func TestParseInverter(t *testing.T) {
	f, err := Decode([]byte(inverterPayload))
	require.NoError(t, err)

	s := ParseInverter(f)
	assert.Equal(t, 1250.5, s.PvW)
	assert.Equal(t, 310.0, s.GridW, "string numbers are accepted")
	assert.Equal(t, 880.0, s.LoadW)
	assert.Equal(t, "AUTO", s.Mode)
	assert.Equal(t, "schedule", s.ModeReason)
	assert.Equal(t, "manual", s.LoadModeReason)
	assert.True(t, s.GridRelayOn)
	assert.True(t, s.LoadRelayOn)
	assert.True(t, s.GridPresent, "derived from line voltage")
	assert.True(t, s.Climate.Available)
	require.NotNil(t, s.Climate.Temp)
	assert.Equal(t, 21.5, *s.Climate.Temp)
	assert.Nil(t, s.Climate.Hum)
	assert.False(t, s.ClimateExt.Available)
	assert.Equal(t, "12:01:02", s.LastUpdate)
}

func TestParseIsIdempotent(t *testing.T) {
	f1, err := Decode([]byte(inverterPayload))
	require.NoError(t, err)
	f2, err := Decode([]byte(inverterPayload))
	require.NoError(t, err)

	assert.Equal(t, ParseInverter(f1), ParseInverter(f2))
	assert.Equal(t, ParseLoadController(f1), ParseLoadController(f1))
	assert.Equal(t, ParseGarage(f2), ParseGarage(f2))
}

func TestParseMissingFieldsFallBack(t *testing.T) {
	f, err := Decode([]byte(`{}`))
	require.NoError(t, err)

	inv := ParseInverter(f)
	assert.Zero(t, inv.PvW)
	assert.Equal(t, PlaceholderMode, inv.Mode)
	assert.Equal(t, PlaceholderReason, inv.GridRelayReason)
	assert.Equal(t, PlaceholderTime, inv.RTCTime)
	assert.Equal(t, PlaceholderDate, inv.RTCDate)
	assert.False(t, inv.GridPresent)

	load := ParseLoadController(f)
	assert.Equal(t, PlaceholderLock, load.BoilerLock)
	assert.Equal(t, PlaceholderLock, load.PumpLock)
	assert.Equal(t, PlaceholderMode, load.PumpMode)

	garage := ParseGarage(f)
	assert.Equal(t, PlaceholderGate, garage.GateState)
	assert.Equal(t, -1, garage.GateOpenPin)
	assert.Equal(t, -1, garage.GateClosedPin)
}

func TestParseMistypedFields(t *testing.T) {
	f, err := Decode([]byte(`{"pv": {"x": 1}, "mode": null, "load_mode": "  ", "pin34_state": "maybe", "door": "open", "grid_present": "no", "gridVolt": 230}`))
	require.NoError(t, err)

	inv := ParseInverter(f)
	assert.Zero(t, inv.PvW)
	assert.Equal(t, PlaceholderMode, inv.Mode)
	assert.Equal(t, PlaceholderMode, inv.LoadMode)
	assert.False(t, inv.GridRelayOn)
	assert.False(t, inv.GridPresent, "explicit flag wins over voltage")

	assert.Equal(t, "open", ParseGarage(f).GateState, "door is an alias of door_state")
}

func TestFieldsBool(t *testing.T) {
	f, err := Decode([]byte(`{"a": true, "b": "YES", "c": " On ", "d": 0, "e": "off", "f": 2}`))
	require.NoError(t, err)

	assert.True(t, f.Bool("a"))
	assert.True(t, f.Bool("b"))
	assert.True(t, f.Bool("c"))
	assert.False(t, f.Bool("d"))
	assert.False(t, f.Bool("e"))
	assert.True(t, f.Bool("f"))
	assert.False(t, f.Bool("missing"))
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	_, err := Decode([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = Decode([]byte(`null`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestUnifiedPresent(t *testing.T) {
	u := Unified{Garage: &GarageStatus{}}
	assert.False(t, u.Empty())
	assert.Equal(t, []Module{ModuleGarage}, u.Present())
	assert.True(t, Unified{}.Empty())
}
