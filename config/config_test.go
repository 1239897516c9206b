package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"homehub/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))

	cfg, err := store.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Enabled(status.ModuleInverter))
	assert.Equal(t, "http://192.168.1.3", cfg.Device(status.ModuleLoadController).BaseURL)
	assert.Equal(t, 5, cfg.Polling.IntervalSec)
	assert.False(t, cfg.Polling.RealtimeEnabled)
	assert.True(t, cfg.Notify.GateState)
	assert.Equal(t, "en", cfg.Notify.Language)
	assert.Equal(t, 1500*time.Millisecond, cfg.Multicast.Window)
	assert.Equal(t, 20*time.Second, cfg.Multicast.TTL)
}

func TestLoadClampsIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
polling:
  interval_sec: 1
  realtime_interval_sec: 600
devices:
  garage:
    base_url: "  10.0.0.9  "
`), 0o600))

	cfg, err := NewStore(path).Load()
	require.NoError(t, err)

	assert.Equal(t, MinPollIntervalSec, cfg.Polling.IntervalSec)
	assert.Equal(t, MaxRealtimeIntervalSec, cfg.Polling.RealtimeIntervalSec)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 60*time.Second, cfg.RealtimeInterval())
	assert.Equal(t, "10.0.0.9", cfg.Devices.Garage.BaseURL)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 2, ClampPollInterval(0))
	assert.Equal(t, 30, ClampPollInterval(30))
	assert.Equal(t, 60, ClampPollInterval(61))
	assert.Equal(t, 3, ClampRealtimeInterval(2))
	assert.Equal(t, 60, ClampRealtimeInterval(1000))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "config.yaml"))

	cfg, err := store.Load()
	require.NoError(t, err)

	cfg.Devices.Garage.Enabled = false
	cfg.Devices.Inverter.BaseURL = " 192.168.7.7 "
	cfg.Polling.RealtimeEnabled = true
	cfg.Polling.RealtimeIntervalSec = 1
	cfg.Notify.Boiler1Mode = false
	cfg.Notify.Language = "UK"
	require.NoError(t, store.Save(cfg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.False(t, loaded.Devices.Garage.Enabled)
	assert.Equal(t, "192.168.7.7", loaded.Devices.Inverter.BaseURL)
	assert.True(t, loaded.Polling.RealtimeEnabled)
	assert.Equal(t, 3, loaded.Polling.RealtimeIntervalSec)
	assert.False(t, loaded.Notify.Boiler1Mode)
	assert.Equal(t, "uk", loaded.Notify.Language)
	assert.Equal(t, cfg.Multicast.TTL, loaded.Multicast.TTL)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveFailureLeavesFileUntouched(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing-dir", "config.yaml"))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Error(t, store.Save(cfg))
}

func TestSetSingleKey(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))

	require.NoError(t, store.Set("polling.interval_sec", "30"))
	require.NoError(t, store.Set("Notify.Gate_State", "false"))
	require.NoError(t, store.Set("worker.interval", "5m"))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Polling.IntervalSec)
	assert.False(t, cfg.Notify.GateState)
	assert.True(t, cfg.Notify.GridRelay)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))

	err := store.Set("polling.turbo", "1")
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSetRejectsBadValue(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))

	assert.Error(t, store.Set("polling.interval_sec", "often"))
}

func TestSaveWritesToSearchedFile(t *testing.T) {
	cwd, etc := t.TempDir(), t.TempDir()
	found := filepath.Join(etc, "config.yaml")
	require.NoError(t, os.WriteFile(found, []byte("polling:\n  interval_sec: 20\n"), 0o644))

	store := &Store{dirs: []string{cwd, etc}}
	assert.Equal(t, found, store.Path())

	require.NoError(t, store.Set("notify.gate_state", "false"))
	_, err := os.Stat(filepath.Join(cwd, "config.yaml"))
	assert.True(t, os.IsNotExist(err))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Polling.IntervalSec)
	assert.False(t, cfg.Notify.GateState)
}

func TestPathDefaultsToFirstSearchDir(t *testing.T) {
	cwd := t.TempDir()
	store := &Store{dirs: []string{cwd, t.TempDir()}}
	assert.Equal(t, filepath.Join(cwd, "config.yaml"), store.Path())

	cfg, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg))
	_, err = os.Stat(filepath.Join(cwd, "config.yaml"))
	assert.NoError(t, err)
}

func TestSaveKeepsEnvironmentOverridesOffDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  inverter:\n    password: from-file\n"), 0o600))
	t.Setenv("HOMEHUB_DEVICES_INVERTER_PASSWORD", "from-env")
	t.Setenv("HOMEHUB_MQTT_PASSWORD", "broker-secret")

	store := NewStore(path)
	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Devices.Inverter.Password)
	assert.Equal(t, "broker-secret", cfg.MQTT.Password)

	cfg.Polling.IntervalSec = 30
	require.NoError(t, store.Save(cfg))
	assert.Equal(t, "from-env", cfg.Devices.Inverter.Password)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "from-env")
	assert.NotContains(t, string(raw), "broker-secret")
	assert.Contains(t, string(raw), "from-file")

	onDisk, err := NewStore(path).read(false)
	require.NoError(t, err)
	assert.Equal(t, 30, onDisk.GetInt("polling.interval_sec"))
	assert.Equal(t, "from-file", onDisk.GetString("devices.inverter.password"))
	assert.Empty(t, onDisk.GetString("mqtt.password"))
}

func TestSetRejectsEnvironmentOverriddenKey(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv("HOMEHUB_POLLING_INTERVAL_SEC", "10")

	assert.ErrorIs(t, store.Set("polling.interval_sec", "30"), ErrEnvOverride)
}
