package multicast

import (
	"context"
	"testing"
	"time"

	"homehub/internal/logging"
	"homehub/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(t *testing.T, raw string) status.Fields {
	t.Helper()
	f, err := status.Decode([]byte(raw))
	require.NoError(t, err)
	return f
}

func allEnabled(status.Module) bool { return true }

func TestClassifyExplicitTag(t *testing.T) {
	tests := map[string]status.Module{
		`{"module": "inverter"}`:        status.ModuleInverter,
		`{"module": "Invertor-Bast"}`:   status.ModuleInverter,
		`{"module": "LOAD"}`:            status.ModuleLoadController,
		`{"module": "loadcontroller"}`:  status.ModuleLoadController,
		`{"module": "load_controller"}`: status.ModuleLoadController,
		`{"module": " garage ", "pump_on": true}`: status.ModuleGarage,
	}
	for raw, want := range tests {
		m, inferred := Classify(fields(t, raw))
		assert.Equal(t, want, m, raw)
		assert.False(t, inferred, raw)
	}
}

func TestClassifyInferred(t *testing.T) {
	tests := map[string]status.Module{
		`{"door_state": "open"}`:                     status.ModuleGarage,
		`{"door_reason": "sensor", "pump_on": true}`: status.ModuleGarage,
		`{"pump_on": false}`:                         status.ModuleLoadController,
		`{"boiler_lock": "NONE", "pump_lock": "ON"}`: status.ModuleLoadController,
		`{"boiler_lock": "NONE"}`:                    status.ModuleInverter,
		`{"module": "toaster", "pv": 10}`:            status.ModuleInverter,
		`{}`:                                         status.ModuleInverter,
	}
	for raw, want := range tests {
		m, inferred := Classify(fields(t, raw))
		assert.Equal(t, want, m, raw)
		assert.True(t, inferred, raw)
	}
}

func TestHandlePacketDropsMalformed(t *testing.T) {
	l := NewListener(Config{}, logging.Discard())
	now := time.Now()

	for _, raw := range []string{"", "not json", "[1,2]", "null"} {
		_, ok := l.HandlePacket([]byte(raw), "10.0.0.9:5005", now)
		assert.False(t, ok, raw)
	}
	assert.True(t, l.Unified(now, allEnabled).Empty())
}

func TestHandlePacketUpdatesCache(t *testing.T) {
	l := NewListener(Config{}, logging.Discard())
	var seen []Packet
	l.OnPacket = func(p Packet) { seen = append(seen, p) }

	now := time.Now()
	p, ok := l.HandlePacket([]byte(`{"module": "garage", "door_state": "closed"}`), "10.0.0.4:5005", now)
	require.True(t, ok)
	assert.Equal(t, status.ModuleGarage, p.Module)
	assert.False(t, p.Inferred)
	require.Len(t, seen, 1)

	u := l.Unified(now.Add(time.Second), allEnabled)
	require.NotNil(t, u.Garage)
	assert.Equal(t, "closed", u.Garage.GateState)
	assert.True(t, u.FromMulticast)
	assert.Equal(t, now.UnixMilli(), u.UpdatedAtMs)
}

func TestCacheTTL(t *testing.T) {
	c := NewCache()
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	c.Put(status.ModuleInverter, fields(t, `{"pv": 300}`), base)
	c.Put(status.ModuleLoadController, fields(t, `{"pump_on": 1}`), base.Add(15*time.Second))

	u := c.Unified(base.Add(19*time.Second), DefaultTTL, allEnabled)
	require.NotNil(t, u.Inverter)
	require.NotNil(t, u.LoadController)
	assert.Equal(t, base.Add(15*time.Second).UnixMilli(), u.UpdatedAtMs)

	u = c.Unified(base.Add(20*time.Second), DefaultTTL, allEnabled)
	assert.Nil(t, u.Inverter)
	require.NotNil(t, u.LoadController)

	now := base.Add(time.Hour)
	u = c.Unified(now, DefaultTTL, allEnabled)
	assert.True(t, u.Empty())
	assert.Equal(t, now.UnixMilli(), u.UpdatedAtMs)
}

func TestCacheSkipsDisabledModules(t *testing.T) {
	c := NewCache()
	now := time.Now()
	c.Put(status.ModuleInverter, fields(t, `{"pv": 300}`), now)

	u := c.Unified(now, DefaultTTL, func(m status.Module) bool { return m != status.ModuleInverter })
	assert.True(t, u.Empty())
}

func TestPollWindowBadGroup(t *testing.T) {
	l := NewListener(Config{Group: "not-an-address"}, logging.Discard())
	start := time.Now()
	assert.False(t, l.PollWindow(context.Background(), 200*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
}

func TestListenersShareGroupPort(t *testing.T) {
	cfg := Config{Group: "239.255.0.77:45005"}
	first, err := NewListener(cfg, logging.Discard()).open()
	if err != nil {
		t.Skipf("multicast not available: %v", err)
	}
	defer first.Close()

	second, err := NewListener(cfg, logging.Discard()).open()
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestPollWindowWhilePortHeld(t *testing.T) {
	cfg := Config{Group: "239.255.0.78:45006"}
	held, err := NewListener(cfg, logging.Discard()).open()
	if err != nil {
		t.Skipf("multicast not available: %v", err)
	}
	defer held.Close()

	l := NewListener(cfg, logging.Discard())
	conn, err := l.open()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.False(t, l.PollWindow(context.Background(), 50*time.Millisecond))
}
