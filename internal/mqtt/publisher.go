package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"homehub/internal/events"
	"homehub/internal/logging"
	"homehub/internal/status"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type Publisher struct {
	client  mqtt.Client
	topics  Topics
	enabled bool
	logger  *slog.Logger
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
	Logger      *slog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	logger = logger.With("component", "mqtt")
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	topics := Topics{Prefix: strings.TrimRight(cfg.TopicPrefix, "/")}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.Availability(), "offline", 1, true).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "error", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("MQTT connected", "broker", cfg.Broker)
			c.Publish(topics.Availability(), 1, true, "online")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(client, topics, logger), nil
}

func newPublisher(client mqtt.Client, topics Topics, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, topics: topics, enabled: true, logger: logger}
}

func (p *Publisher) publish(topic string, payload any, retained bool) error {
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func fieldValues(u status.Unified) map[string]map[string]any {
	out := make(map[string]map[string]any)
	if inv := u.Inverter; inv != nil {
		out[string(status.ModuleInverter)] = map[string]any{
			"pv_power":      inv.PvW,
			"grid_power":    inv.GridW,
			"load_power":    inv.LoadW,
			"battery_soc":   inv.BatterySoc,
			"battery_power": inv.BatteryPower,
			"line_voltage":  inv.LineVoltage,
			"inverter_temp": inv.InverterTemp,
			"daily_pv":      inv.DailyPV,
			"grid_relay":    onOff(inv.GridRelayOn),
			"grid_present":  onOff(inv.GridPresent),
			"grid_mode":     inv.Mode,
			"load_mode":     inv.LoadMode,
		}
	}
	if lc := u.LoadController; lc != nil {
		out[string(status.ModuleLoadController)] = map[string]any{
			"boiler1":       onOff(lc.Boiler1On),
			"boiler1_mode":  lc.Boiler1Mode,
			"boiler1_power": lc.BoilerPower,
			"pump":          onOff(lc.PumpOn),
			"pump_mode":     lc.PumpMode,
			"pump_power":    lc.PumpPower,
		}
	}
	if g := u.Garage; g != nil {
		out[string(status.ModuleGarage)] = map[string]any{
			"boiler2":       onOff(g.Boiler2On),
			"boiler2_mode":  g.Boiler2Mode,
			"boiler2_power": g.BoilerPower,
			"gate":          g.GateState,
		}
	}
	return out
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// PublishStatus publishes one retained scalar per field and the full status as JSON.
func (p *Publisher) PublishStatus(u status.Unified) error {
	if !p.enabled {
		return nil
	}

	for module, fields := range fieldValues(u) {
		for name, value := range fields {
			topic := p.topics.Field(module, name)
			if err := p.publish(topic, fmt.Sprintf("%v", value), true); err != nil {
				p.logger.Warn("failed to publish field", "topic", topic, "error", err)
			}
		}
	}

	statusJSON, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	return p.publish(p.topics.Status(), statusJSON, true)
}

type eventMessage struct {
	events.Event
	AtMs int64 `json:"atMs"`
}

// PublishEvents sends each event as its own non-retained message.
func (p *Publisher) PublishEvents(evs []events.Event, at time.Time) error {
	if !p.enabled {
		return nil
	}
	var errs []error
	for _, e := range evs {
		payload, err := json.Marshal(eventMessage{Event: e, AtMs: at.UnixMilli()})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.publish(p.topics.Events(), payload, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discoveryEntity struct {
	Component   string
	Module      status.Module
	Field       string
	Name        string
	Unit        string
	DeviceClass string
}

var discoveryEntities = []discoveryEntity{
	{"sensor", status.ModuleInverter, "pv_power", "PV Power", "W", "power"},
	{"sensor", status.ModuleInverter, "grid_power", "Grid Power", "W", "power"},
	{"sensor", status.ModuleInverter, "load_power", "Load Power", "W", "power"},
	{"sensor", status.ModuleInverter, "battery_soc", "Battery", "%", "battery"},
	{"sensor", status.ModuleInverter, "line_voltage", "Line Voltage", "V", "voltage"},
	{"sensor", status.ModuleInverter, "inverter_temp", "Inverter Temperature", "°C", "temperature"},
	{"sensor", status.ModuleInverter, "daily_pv", "Daily PV", "kWh", "energy"},
	{"binary_sensor", status.ModuleInverter, "grid_relay", "Grid Relay", "", "power"},
	{"binary_sensor", status.ModuleInverter, "grid_present", "Grid Present", "", "power"},
	{"sensor", status.ModuleInverter, "grid_mode", "Grid Mode", "", ""},
	{"binary_sensor", status.ModuleLoadController, "boiler1", "Boiler 1", "", "power"},
	{"sensor", status.ModuleLoadController, "boiler1_power", "Boiler 1 Power", "W", "power"},
	{"binary_sensor", status.ModuleLoadController, "pump", "Pump", "", "running"},
	{"sensor", status.ModuleLoadController, "pump_power", "Pump Power", "W", "power"},
	{"binary_sensor", status.ModuleGarage, "boiler2", "Boiler 2", "", "power"},
	{"sensor", status.ModuleGarage, "gate", "Gate", "", ""},
}

func (p *Publisher) PublishHomeAssistantDiscovery() error {
	if !p.enabled {
		return nil
	}

	for _, e := range discoveryEntities {
		id := fmt.Sprintf("%s_%s", e.Module, e.Field)
		config := map[string]any{
			"name":               e.Name,
			"unique_id":          fmt.Sprintf("%s_%s", p.topics.Prefix, id),
			"state_topic":        p.topics.Field(string(e.Module), e.Field),
			"availability_topic": p.topics.Availability(),
			"device": map[string]any{
				"identifiers":  []string{fmt.Sprintf("%s_%s", p.topics.Prefix, e.Module)},
				"name":         fmt.Sprintf("Home Hub %s", e.Module),
				"manufacturer": "homehub",
			},
		}
		if e.Unit != "" {
			config["unit_of_measurement"] = e.Unit
		}
		if e.DeviceClass != "" {
			config["device_class"] = e.DeviceClass
		}

		payload, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("marshal discovery for %s: %w", id, err)
		}
		if err := p.publish(p.topics.Discovery(e.Component, id), payload, true); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.publish(p.topics.Availability(), "offline", true)
		p.client.Disconnect(1000)
	}
}
