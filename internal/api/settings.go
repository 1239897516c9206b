package api

import (
	"fmt"
	"net/http"
	"slices"

	"homehub/config"
	"homehub/internal/events"
	"homehub/internal/logging"

	"github.com/gin-gonic/gin"
)

// DeviceSettings is one module's endpoint as seen by the UI. Passwords are
// write-only: a nil Password keeps the stored one.
type DeviceSettings struct {
	Enabled     bool    `json:"enabled"`
	BaseURL     string  `json:"base_url"`
	Password    *string `json:"password,omitempty"`
	PasswordSet bool    `json:"password_set"`
}

type DevicesSettings struct {
	Inverter       DeviceSettings `json:"inverter"`
	LoadController DeviceSettings `json:"load_controller"`
	Garage         DeviceSettings `json:"garage"`
}

// Settings is the application configuration editable over the API.
type Settings struct {
	Devices DevicesSettings      `json:"devices"`
	Polling config.PollingConfig `json:"polling"`
	Notify  config.NotifyConfig  `json:"notify"`
}

func deviceView(d config.DeviceConfig) DeviceSettings {
	return DeviceSettings{
		Enabled:     d.Enabled,
		BaseURL:     d.BaseURL,
		PasswordSet: d.Password != "",
	}
}

func settingsFrom(cfg *config.Config) Settings {
	return Settings{
		Devices: DevicesSettings{
			Inverter:       deviceView(cfg.Devices.Inverter),
			LoadController: deviceView(cfg.Devices.LoadController),
			Garage:         deviceView(cfg.Devices.Garage),
		},
		Polling: cfg.Polling,
		Notify:  cfg.Notify,
	}
}

func applyDevice(dst *config.DeviceConfig, src DeviceSettings) {
	dst.Enabled = src.Enabled
	dst.BaseURL = src.BaseURL
	if src.Password != nil {
		dst.Password = *src.Password
	}
}

// apply copies s onto cfg, leaving service sections untouched.
func (s Settings) apply(cfg *config.Config) {
	applyDevice(&cfg.Devices.Inverter, s.Devices.Inverter)
	applyDevice(&cfg.Devices.LoadController, s.Devices.LoadController)
	applyDevice(&cfg.Devices.Garage, s.Devices.Garage)
	cfg.Polling = s.Polling
	cfg.Notify = s.Notify
	cfg.Normalize()
}

func (s *Server) getConfigHandler(c *gin.Context) {
	cfg, err := s.configs.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"config": settingsFrom(cfg), "languages": events.Languages()})
}

// updateConfigHandler persists new settings. The change takes effect on the
// next cycle of every orchestrator since they reload the file each time.
// Turning realtime on starts the realtime poller.
func (s *Server) updateConfigHandler(c *gin.Context) {
	var req Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	cfg, err := s.configs.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	req.apply(cfg)
	if !slices.Contains(events.Languages(), cfg.Notify.Language) {
		respondError(c, http.StatusBadRequest, fmt.Errorf("unsupported language %q", cfg.Notify.Language))
		return
	}

	if err := s.configs.Save(cfg); err != nil {
		logging.Ctx(c.Request.Context()).Error("failed to save config", "error", err)
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime := false
	if cfg.Polling.RealtimeEnabled && s.realtime != nil {
		s.realtime.Start(s.baseCtx)
		realtime = true
	}
	logging.Ctx(c.Request.Context()).Info("configuration updated", "realtime", realtime)

	respond(c, http.StatusOK, gin.H{"ok": true, "config": settingsFrom(cfg)})
}
