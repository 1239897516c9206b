package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"homehub/internal/status"

	"github.com/spf13/viper"
)

var (
	ErrUnknownKey  = errors.New("unknown config key")
	ErrEnvOverride = errors.New("config key is set by environment")
)

const envPrefix = "HOMEHUB"

// Poll interval bounds, in seconds.
const (
	MinPollIntervalSec     = 2
	MaxPollIntervalSec     = 60
	MinRealtimeIntervalSec = 3
	MaxRealtimeIntervalSec = 60
)

type Config struct {
	Devices   DevicesConfig   `mapstructure:"devices"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Multicast MulticastConfig `mapstructure:"multicast"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	API       APIConfig       `mapstructure:"api"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type DevicesConfig struct {
	Inverter       DeviceConfig `mapstructure:"inverter"`
	LoadController DeviceConfig `mapstructure:"load_controller"`
	Garage         DeviceConfig `mapstructure:"garage"`
}

type DeviceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	Password string `mapstructure:"password"`
}

type PollingConfig struct {
	IntervalSec         int  `mapstructure:"interval_sec" json:"interval_sec"`
	RealtimeEnabled     bool `mapstructure:"realtime_enabled" json:"realtime_enabled"`
	RealtimeIntervalSec int  `mapstructure:"realtime_interval_sec" json:"realtime_interval_sec"`
}

// NotifyConfig holds one independent toggle per event trigger.
type NotifyConfig struct {
	PvGeneration bool   `mapstructure:"pv_generation" json:"pv_generation"`
	GridRelay    bool   `mapstructure:"grid_relay" json:"grid_relay"`
	GridPresence bool   `mapstructure:"grid_presence" json:"grid_presence"`
	GridMode     bool   `mapstructure:"grid_mode" json:"grid_mode"`
	LoadMode     bool   `mapstructure:"load_mode" json:"load_mode"`
	Boiler1Mode  bool   `mapstructure:"boiler1_mode" json:"boiler1_mode"`
	PumpMode     bool   `mapstructure:"pump_mode" json:"pump_mode"`
	Boiler2Mode  bool   `mapstructure:"boiler2_mode" json:"boiler2_mode"`
	GateState    bool   `mapstructure:"gate_state" json:"gate_state"`
	Language     string `mapstructure:"language" json:"language"`
}

type MulticastConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Group     string        `mapstructure:"group"`
	Interface string        `mapstructure:"interface"`
	Window    time.Duration `mapstructure:"window"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type WorkerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type APIConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Device returns the settings of one module.
func (c *Config) Device(m status.Module) DeviceConfig {
	switch m {
	case status.ModuleInverter:
		return c.Devices.Inverter
	case status.ModuleLoadController:
		return c.Devices.LoadController
	case status.ModuleGarage:
		return c.Devices.Garage
	}
	return DeviceConfig{}
}

// Enabled reports whether module m is enabled.
func (c *Config) Enabled(m status.Module) bool {
	return c.Device(m).Enabled
}

// PollInterval is the dashboard poll interval, clamped.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(ClampPollInterval(c.Polling.IntervalSec)) * time.Second
}

// RealtimeInterval is the realtime service poll interval, clamped.
func (c *Config) RealtimeInterval() time.Duration {
	return time.Duration(ClampRealtimeInterval(c.Polling.RealtimeIntervalSec)) * time.Second
}

func ClampPollInterval(sec int) int {
	return clamp(sec, MinPollIntervalSec, MaxPollIntervalSec)
}

func ClampRealtimeInterval(sec int) int {
	return clamp(sec, MinRealtimeIntervalSec, MaxRealtimeIntervalSec)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize trims endpoints and clamps intervals in place.
func (c *Config) Normalize() {
	for _, d := range []*DeviceConfig{&c.Devices.Inverter, &c.Devices.LoadController, &c.Devices.Garage} {
		d.BaseURL = strings.TrimSpace(d.BaseURL)
	}
	c.Polling.IntervalSec = ClampPollInterval(c.Polling.IntervalSec)
	c.Polling.RealtimeIntervalSec = ClampRealtimeInterval(c.Polling.RealtimeIntervalSec)
	c.Notify.Language = strings.ToLower(strings.TrimSpace(c.Notify.Language))
	if c.Notify.Language == "" {
		c.Notify.Language = "en"
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("devices.inverter.enabled", true)
	v.SetDefault("devices.inverter.base_url", "http://192.168.1.2")
	v.SetDefault("devices.inverter.password", "admin")
	v.SetDefault("devices.load_controller.enabled", true)
	v.SetDefault("devices.load_controller.base_url", "http://192.168.1.3")
	v.SetDefault("devices.load_controller.password", "admin")
	v.SetDefault("devices.garage.enabled", true)
	v.SetDefault("devices.garage.base_url", "http://192.168.1.4")
	v.SetDefault("devices.garage.password", "admin")
	v.SetDefault("polling.interval_sec", 5)
	v.SetDefault("polling.realtime_enabled", false)
	v.SetDefault("polling.realtime_interval_sec", 5)
	v.SetDefault("notify.pv_generation", true)
	v.SetDefault("notify.grid_relay", true)
	v.SetDefault("notify.grid_presence", true)
	v.SetDefault("notify.grid_mode", true)
	v.SetDefault("notify.load_mode", true)
	v.SetDefault("notify.boiler1_mode", true)
	v.SetDefault("notify.pump_mode", true)
	v.SetDefault("notify.boiler2_mode", true)
	v.SetDefault("notify.gate_state", true)
	v.SetDefault("notify.language", "en")
	v.SetDefault("multicast.enabled", true)
	v.SetDefault("multicast.group", "239.255.0.1:5005")
	v.SetDefault("multicast.interface", "")
	v.SetDefault("multicast.window", "1500ms")
	v.SetDefault("multicast.ttl", "20s")
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.interval", "15m")
	v.SetDefault("api.port", 8046)
	v.SetDefault("api.enabled", true)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "homehub")
	v.SetDefault("mqtt.client_id", "homehub")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("database.path", "./homehub.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

// Store reads and writes the configuration file. Every Load reads the file
// again so edits made by Save or by hand are picked up on the next poll.
type Store struct {
	path string
	// dirs are searched for config.yaml when path is empty.
	dirs []string
	mu   sync.Mutex
}

// NewStore returns a Store for path. An empty path searches ./config.yaml and
// /etc/homehub/config.yaml.
func NewStore(path string) *Store {
	return &Store{path: path, dirs: []string{".", "/etc/homehub"}}
}

// Path is the file Save writes to: the explicit path, else the file the
// search finds, else config.yaml in the first search directory.
func (s *Store) Path() string {
	if s.path != "" {
		return s.path
	}
	v := s.newViper(false)
	_ = v.ReadInConfig()
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(s.dirs[0], "config.yaml")
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (s *Store) newViper(env bool) *viper.Viper {
	v := viper.New()
	if s.path != "" {
		v.SetConfigFile(s.path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range s.dirs {
			v.AddConfigPath(dir)
		}
	}
	if env {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	setDefaults(v)
	return v
}

// read returns a viper loaded from the config file, with environment
// overrides when env is set. A missing file is not an error; defaults apply.
func (s *Store) read(env bool) (*viper.Viper, error) {
	v := s.newViper(env)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(s.path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration from disk.
func (s *Store) Load() (*Config, error) {
	v, err := s.read(true)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

type setting struct {
	key   string
	value any
}

// settings lists every persisted key with its value in c.
func (c *Config) settings() []setting {
	return []setting{
		{"devices.inverter.enabled", c.Devices.Inverter.Enabled},
		{"devices.inverter.base_url", c.Devices.Inverter.BaseURL},
		{"devices.inverter.password", c.Devices.Inverter.Password},
		{"devices.load_controller.enabled", c.Devices.LoadController.Enabled},
		{"devices.load_controller.base_url", c.Devices.LoadController.BaseURL},
		{"devices.load_controller.password", c.Devices.LoadController.Password},
		{"devices.garage.enabled", c.Devices.Garage.Enabled},
		{"devices.garage.base_url", c.Devices.Garage.BaseURL},
		{"devices.garage.password", c.Devices.Garage.Password},
		{"polling.interval_sec", c.Polling.IntervalSec},
		{"polling.realtime_enabled", c.Polling.RealtimeEnabled},
		{"polling.realtime_interval_sec", c.Polling.RealtimeIntervalSec},
		{"notify.pv_generation", c.Notify.PvGeneration},
		{"notify.grid_relay", c.Notify.GridRelay},
		{"notify.grid_presence", c.Notify.GridPresence},
		{"notify.grid_mode", c.Notify.GridMode},
		{"notify.load_mode", c.Notify.LoadMode},
		{"notify.boiler1_mode", c.Notify.Boiler1Mode},
		{"notify.pump_mode", c.Notify.PumpMode},
		{"notify.boiler2_mode", c.Notify.Boiler2Mode},
		{"notify.gate_state", c.Notify.GateState},
		{"notify.language", c.Notify.Language},
		{"multicast.enabled", c.Multicast.Enabled},
		{"multicast.group", c.Multicast.Group},
		{"multicast.interface", c.Multicast.Interface},
		{"multicast.window", c.Multicast.Window.String()},
		{"multicast.ttl", c.Multicast.TTL.String()},
		{"worker.enabled", c.Worker.Enabled},
		{"worker.interval", c.Worker.Interval.String()},
		{"api.port", c.API.Port},
		{"api.enabled", c.API.Enabled},
		{"mqtt.enabled", c.MQTT.Enabled},
		{"mqtt.broker", c.MQTT.Broker},
		{"mqtt.topic_prefix", c.MQTT.TopicPrefix},
		{"mqtt.client_id", c.MQTT.ClientID},
		{"mqtt.username", c.MQTT.Username},
		{"mqtt.password", c.MQTT.Password},
		{"database.path", c.Database.Path},
		{"logging.level", c.Logging.Level},
		{"logging.format", c.Logging.Format},
		{"logging.output", c.Logging.Output},
	}
}

// Save writes cfg as a whole. The file is written to a temporary sibling and
// renamed over the target, so readers never see a partially written config.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cfg
	c.Normalize()

	// Keys overridden from the environment keep their on-disk value so
	// secrets injected that way are never written out.
	var file *viper.Viper
	v := viper.New()
	for _, st := range c.settings() {
		if _, ok := os.LookupEnv(envName(st.key)); ok {
			if file == nil {
				var err error
				if file, err = s.read(false); err != nil {
					return err
				}
			}
			st.value = file.Get(st.key)
		}
		v.Set(st.key, st.value)
	}

	target := s.Path()
	ext := filepath.Ext(target)
	if !slices.Contains(viper.SupportedExts, strings.TrimPrefix(ext, ".")) {
		ext = ".yaml"
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".homehub-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	if err := v.WriteConfigAs(tmpName); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}

	*cfg = c
	return nil
}

// Set changes one dotted key, such as "polling.interval_sec", and saves the
// whole file.
func (s *Store) Set(key, value string) error {
	v, err := s.read(true)
	if err != nil {
		return err
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if !v.IsSet(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if _, ok := os.LookupEnv(envName(key)); ok {
		return fmt.Errorf("%w: %s via %s", ErrEnvOverride, key, envName(key))
	}
	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return s.Save(&cfg)
}
