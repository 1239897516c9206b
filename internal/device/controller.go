package device

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"homehub/config"
	"homehub/internal/status"
)

// Target is a controllable load and the device paths that drive it.
type Target struct {
	Name     string
	Module   status.Module
	ModePath string
	LockPath string
	// BinaryLock targets take locked=0|1 instead of lock=NONE|ON|OFF.
	BinaryLock bool
}

var targets = map[string]Target{
	"grid":    {Name: "grid", Module: status.ModuleInverter, ModePath: "/api/mode"},
	"load":    {Name: "load", Module: status.ModuleInverter, ModePath: "/api/loadmode", LockPath: "/api/loadlock", BinaryLock: true},
	"boiler1": {Name: "boiler1", Module: status.ModuleLoadController, ModePath: "/api/mode", LockPath: "/api/boilerlock"},
	"pump":    {Name: "pump", Module: status.ModuleLoadController, ModePath: "/api/loadmode", LockPath: "/api/pumplock"},
	"boiler2": {Name: "boiler2", Module: status.ModuleGarage, ModePath: "/api/mode", LockPath: "/api/boilerlock"},
}

// LookupTarget resolves a target name such as "boiler1".
func LookupTarget(name string) (Target, error) {
	t, ok := targets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// Controller runs module level reads and commands against the configured devices.
// The config is passed per call because it is reloaded at every entry point.
type Controller struct {
	client *Client

	mu      sync.Mutex
	lastErr map[status.Module]string
}

func NewController(client *Client) *Controller {
	return &Controller{
		client:  client,
		lastErr: make(map[status.Module]string),
	}
}

func endpointFor(cfg *config.Config, m status.Module) (Endpoint, error) {
	d := cfg.Device(m)
	if !d.Enabled {
		return Endpoint{}, fmt.Errorf("%s: %w", m, ErrModuleDisabled)
	}
	return Endpoint{BaseURL: d.BaseURL, Password: d.Password}, nil
}

func (c *Controller) record(m status.Module, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr[m] = err.Error()
	} else {
		delete(c.lastErr, m)
	}
}

// LastError returns the most recent fetch error for m, or "".
func (c *Controller) LastError(m status.Module) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr[m]
}

func (c *Controller) fetchFields(ctx context.Context, cfg *config.Config, m status.Module) (status.Fields, error) {
	ep, err := endpointFor(cfg, m)
	if err != nil {
		return nil, err
	}
	fields, err := c.client.FetchStatus(ctx, ep)
	c.record(m, err)
	if err != nil {
		return nil, fmt.Errorf("fetch %s status: %w", m, err)
	}
	return fields, nil
}

func (c *Controller) FetchInverter(ctx context.Context, cfg *config.Config) (*status.InverterStatus, error) {
	f, err := c.fetchFields(ctx, cfg, status.ModuleInverter)
	if err != nil {
		return nil, err
	}
	return status.ParseInverter(f), nil
}

func (c *Controller) FetchLoadController(ctx context.Context, cfg *config.Config) (*status.LoadControllerStatus, error) {
	f, err := c.fetchFields(ctx, cfg, status.ModuleLoadController)
	if err != nil {
		return nil, err
	}
	return status.ParseLoadController(f), nil
}

func (c *Controller) FetchGarage(ctx context.Context, cfg *config.Config) (*status.GarageStatus, error) {
	f, err := c.fetchFields(ctx, cfg, status.ModuleGarage)
	if err != nil {
		return nil, err
	}
	return status.ParseGarage(f), nil
}

// NormalizeMode upper-cases mode and checks it is AUTO, OFF or ON.
func NormalizeMode(mode string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(mode))
	switch m {
	case status.ModeAuto, status.ModeOff, status.ModeOn:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

// NormalizeLock upper-cases lock and checks it is NONE, ON or OFF.
func NormalizeLock(lock string) (string, error) {
	l := strings.ToUpper(strings.TrimSpace(lock))
	switch l {
	case status.LockNone, status.LockOn, status.LockOff:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLock, lock)
}

func (c *Controller) post(ctx context.Context, cfg *config.Config, m status.Module, path string, form url.Values) error {
	ep, err := endpointFor(cfg, m)
	if err != nil {
		return err
	}
	if err := c.client.Post(ctx, ep, path, form); err != nil {
		return fmt.Errorf("%s %s: %w", m, path, err)
	}
	return nil
}

// SetMode sets the operating mode of a target.
func (c *Controller) SetMode(ctx context.Context, cfg *config.Config, target, mode string) error {
	t, err := LookupTarget(target)
	if err != nil {
		return err
	}
	m, err := NormalizeMode(mode)
	if err != nil {
		return err
	}
	return c.post(ctx, cfg, t.Module, t.ModePath, url.Values{"mode": {m}})
}

// SetLock pins a target. For the inverter load, ON locks it and NONE/OFF unlock it.
func (c *Controller) SetLock(ctx context.Context, cfg *config.Config, target, lock string) error {
	t, err := LookupTarget(target)
	if err != nil {
		return err
	}
	if t.LockPath == "" {
		return fmt.Errorf("%w: %s has no lock", ErrUnknownTarget, t.Name)
	}
	l, err := NormalizeLock(lock)
	if err != nil {
		return err
	}
	if t.BinaryLock {
		return c.SetLoadLock(ctx, cfg, l == status.LockOn)
	}
	return c.post(ctx, cfg, t.Module, t.LockPath, url.Values{"lock": {l}})
}

// SetLoadLock locks or unlocks the inverter-controlled load.
func (c *Controller) SetLoadLock(ctx context.Context, cfg *config.Config, locked bool) error {
	v := "0"
	if locked {
		v = "1"
	}
	return c.post(ctx, cfg, status.ModuleInverter, "/api/loadlock", url.Values{"locked": {v}})
}

// TriggerGate pulses the gate relay.
func (c *Controller) TriggerGate(ctx context.Context, cfg *config.Config) error {
	return c.post(ctx, cfg, status.ModuleGarage, "/api/door", url.Values{"action": {"pulse"}})
}

// ProbeResult is the reachability of one module.
type ProbeResult struct {
	Module     status.Module `json:"module"`
	Enabled    bool          `json:"enabled"`
	Configured bool          `json:"configured"`
	OK         bool          `json:"ok"`
	LastError  string        `json:"lastError,omitempty"`
	Mode       string        `json:"mode,omitempty"`
}

// Probe fetches every enabled module once, sequentially.
func (c *Controller) Probe(ctx context.Context, cfg *config.Config) []ProbeResult {
	out := make([]ProbeResult, 0, len(status.Modules))
	for _, m := range status.Modules {
		d := cfg.Device(m)
		r := ProbeResult{
			Module:     m,
			Enabled:    d.Enabled,
			Configured: NormalizeBaseURL(d.BaseURL) != "",
		}
		if d.Enabled {
			f, err := c.fetchFields(ctx, cfg, m)
			if err != nil {
				r.LastError = err.Error()
			} else {
				r.OK = true
				r.Mode = f.String(status.PlaceholderMode, "mode")
			}
		}
		out = append(out, r)
	}
	return out
}
