package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"homehub/config"
	"homehub/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPost struct {
	path string
	form url.Values
}

type fakeDevice struct {
	mu    sync.Mutex
	posts []recordedPost
	ts    *httptest.Server
}

func newFakeDevice(t *testing.T, statusBody string) *fakeDevice {
	d := &fakeDevice{}
	d.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			d.mu.Lock()
			d.posts = append(d.posts, recordedPost{path: r.URL.Path, form: r.PostForm})
			d.mu.Unlock()
			return
		}
		switch r.URL.Path {
		case "/api/status":
			w.Write([]byte(statusBody))
		case "/api/daily":
			w.Write([]byte(`{"date": "` + r.URL.Query().Get("date") + `", "pv": [1, 2]}`))
		case "/api/monthly":
			w.Write([]byte(`{"month": "` + r.URL.Query().Get("month") + `"}`))
		case "/api/history":
			w.Write([]byte(`{"date": "2026-10-15", "samples": [{"m": 90, "f": 3}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(d.ts.Close)
	return d
}

func (d *fakeDevice) lastPost() recordedPost {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.posts) == 0 {
		return recordedPost{}
	}
	return d.posts[len(d.posts)-1]
}

func testConfig(inv, load, garage string) *config.Config {
	return &config.Config{Devices: config.DevicesConfig{
		Inverter:       config.DeviceConfig{Enabled: inv != "", BaseURL: inv},
		LoadController: config.DeviceConfig{Enabled: load != "", BaseURL: load},
		Garage:         config.DeviceConfig{Enabled: garage != "", BaseURL: garage},
	}}
}

func TestControllerFetchModules(t *testing.T) {
	inv := newFakeDevice(t, `{"pv": 500, "mode": "AUTO"}`)
	garage := newFakeDevice(t, `{"door_state": "closed", "door_reason": "sensor"}`)
	c := NewController(newTestClient())
	cfg := testConfig(inv.ts.URL, "", garage.ts.URL)

	s, err := c.FetchInverter(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 500.0, s.PvW)

	g, err := c.FetchGarage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "closed", g.GateState)

	_, err = c.FetchLoadController(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrModuleDisabled)
}

func TestControllerRecordsLastError(t *testing.T) {
	c := NewController(newTestClient())
	cfg := testConfig("http://127.0.0.1:1", "", "")

	_, err := c.FetchInverter(context.Background(), cfg)
	require.Error(t, err)
	assert.NotEmpty(t, c.LastError(status.ModuleInverter))
}

func TestControllerCommands(t *testing.T) {
	inv := newFakeDevice(t, `{}`)
	load := newFakeDevice(t, `{}`)
	garage := newFakeDevice(t, `{}`)
	c := NewController(newTestClient())
	cfg := testConfig(inv.ts.URL, load.ts.URL, garage.ts.URL)
	ctx := context.Background()

	require.NoError(t, c.SetMode(ctx, cfg, "grid", "auto"))
	assert.Equal(t, "/api/mode", inv.lastPost().path)
	assert.Equal(t, "AUTO", inv.lastPost().form.Get("mode"))

	require.NoError(t, c.SetMode(ctx, cfg, "pump", "on"))
	assert.Equal(t, "/api/loadmode", load.lastPost().path)

	require.NoError(t, c.SetLock(ctx, cfg, "boiler1", "off"))
	assert.Equal(t, "/api/boilerlock", load.lastPost().path)
	assert.Equal(t, "OFF", load.lastPost().form.Get("lock"))

	require.NoError(t, c.SetLock(ctx, cfg, "load", "ON"))
	assert.Equal(t, "/api/loadlock", inv.lastPost().path)
	assert.Equal(t, "1", inv.lastPost().form.Get("locked"))

	require.NoError(t, c.SetLock(ctx, cfg, "boiler2", "none"))
	assert.Equal(t, "NONE", garage.lastPost().form.Get("lock"))

	require.NoError(t, c.TriggerGate(ctx, cfg))
	assert.Equal(t, "/api/door", garage.lastPost().path)
	assert.Equal(t, "pulse", garage.lastPost().form.Get("action"))
}

func TestControllerCommandValidation(t *testing.T) {
	c := NewController(newTestClient())
	cfg := testConfig("http://127.0.0.1:1", "", "")
	ctx := context.Background()

	assert.ErrorIs(t, c.SetMode(ctx, cfg, "grid", "turbo"), ErrInvalidMode)
	assert.ErrorIs(t, c.SetLock(ctx, cfg, "pump", "maybe"), ErrInvalidLock)
	assert.ErrorIs(t, c.SetLock(ctx, cfg, "grid", "ON"), ErrUnknownTarget)
	assert.ErrorIs(t, c.SetMode(ctx, cfg, "sauna", "ON"), ErrUnknownTarget)
	assert.ErrorIs(t, c.SetMode(ctx, cfg, "boiler1", "ON"), ErrModuleDisabled)
	assert.ErrorIs(t, c.TriggerGate(ctx, cfg), ErrModuleDisabled)
}

func TestControllerHistory(t *testing.T) {
	inv := newFakeDevice(t, `{}`)
	load := newFakeDevice(t, `{}`)
	c := NewController(newTestClient())
	cfg := testConfig(inv.ts.URL, load.ts.URL, "")
	ctx := context.Background()

	f, err := c.FetchHistory(ctx, cfg, HistoryDaily, "2026-10-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", f.String("", "date"))

	f, err = c.FetchHistory(ctx, cfg, HistoryMonthly, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, "2026-09", f.String("", "month"))

	_, err = c.FetchHistory(ctx, cfg, HistoryDaily, "10/01/2026")
	assert.ErrorIs(t, err, ErrInvalidHistory)
	_, err = c.FetchHistory(ctx, cfg, HistoryKind("weekly"), "")
	assert.ErrorIs(t, err, ErrInvalidHistory)

	f, err = c.FetchHistory(ctx, cfg, HistoryLoad, "")
	require.NoError(t, err)
	tl, err := DecodeTimeline(f, time.UTC)
	require.NoError(t, err)
	require.Len(t, tl.Samples, 1)
}

func TestDecodeTimeline(t *testing.T) {
	f, err := status.Decode([]byte(`{"date": "2026-10-15", "samples": [
		{"m": 600, "f": 12},
		{"m": 90, "f": 3},
		{"m": "x", "f": 1},
		"garbage"
	]}`))
	require.NoError(t, err)

	tl, err := DecodeTimeline(f, time.UTC)
	require.NoError(t, err)
	require.Len(t, tl.Samples, 2)

	dayStart := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	first := tl.Samples[0]
	assert.Equal(t, dayStart.Add(90*time.Minute), first.At)
	assert.True(t, first.BoilerOn)
	assert.True(t, first.PumpOn)
	assert.False(t, first.GridOn)
	assert.False(t, first.PvOn)

	second := tl.Samples[1]
	assert.Equal(t, dayStart.Add(10*time.Hour), second.At)
	assert.False(t, second.BoilerOn)
	assert.True(t, second.GridOn)
	assert.True(t, second.PvOn)
}

func TestDecodeTimelineKeepsFractionalMinutes(t *testing.T) {
	f, err := status.Decode([]byte(`{"date": "2026-10-15", "samples": [{"m": 90.5, "f": 1}]}`))
	require.NoError(t, err)

	tl, err := DecodeTimeline(f, time.UTC)
	require.NoError(t, err)
	require.Len(t, tl.Samples, 1)

	dayStart := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, dayStart.Add(90*time.Minute+30*time.Second), tl.Samples[0].At)
}

func TestDecodeTimelineRequiresDate(t *testing.T) {
	f, err := status.Decode([]byte(`{"samples": []}`))
	require.NoError(t, err)
	_, err = DecodeTimeline(f, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidHistory)

	f, err = status.Decode([]byte(`{"date": "yesterday"}`))
	require.NoError(t, err)
	_, err = DecodeTimeline(f, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidHistory)
}
