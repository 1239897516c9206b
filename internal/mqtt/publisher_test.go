package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"homehub/internal/events"
	"homehub/internal/logging"
	"homehub/internal/status"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mqtt.Client

	mu       sync.Mutex
	messages []message
	failOn   string
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	c.messages = append(c.messages, message{topic: topic, retained: retained, payload: body})
	if c.failOn != "" && strings.HasSuffix(topic, c.failOn) {
		return doneToken{err: errors.New("broker said no")}
	}
	return doneToken{}
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) Disconnect(uint) {}

func (c *fakeClient) byTopic() map[string]message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]message, len(c.messages))
	for _, m := range c.messages {
		out[m.topic] = m
	}
	return out
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false, Logger: logging.Discard()})
	require.NoError(t, err)
	assert.NoError(t, p.PublishStatus(status.Unified{}))
	assert.NoError(t, p.PublishEvents([]events.Event{{Title: "x"}}, time.Now()))
	assert.NoError(t, p.PublishHomeAssistantDiscovery())
	assert.False(t, p.IsConnected())
	p.Close()
}

func TestPublishStatus(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, Topics{Prefix: "home"}, logging.Discard())

	u := status.Unified{
		Inverter: &status.InverterStatus{Common: status.Common{PvW: 640}, GridRelayOn: true, Mode: "AUTO"},
		Garage:   &status.GarageStatus{GateState: "open"},
	}
	require.NoError(t, p.PublishStatus(u))

	got := client.byTopic()
	assert.Equal(t, "640", got["home/inverter/pv_power"].payload)
	assert.Equal(t, "ON", got["home/inverter/grid_relay"].payload)
	assert.Equal(t, "open", got["home/garage/gate"].payload)
	assert.NotContains(t, got, "home/load_controller/pump")

	statusMsg := got["home/status"]
	assert.True(t, statusMsg.retained)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(statusMsg.payload), &decoded))
	assert.Nil(t, decoded["loadController"])
}

func TestPublishEvents(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, Topics{Prefix: "home"}, logging.Discard())
	at := time.UnixMilli(1760000000123)

	evs := []events.Event{
		{Kind: events.KindGateState, Module: status.ModuleGarage, Title: "Gate state changed", Body: "State: closed -> open. Reason: Manual change"},
		{Kind: events.KindPvGeneration, Module: status.ModuleInverter, Title: "PV generation started"},
	}
	require.NoError(t, p.PublishEvents(evs, at))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.messages, 2)
	assert.Equal(t, "home/events", client.messages[0].topic)
	assert.False(t, client.messages[0].retained)
	assert.Contains(t, client.messages[0].payload, `"kind":"gate_state"`)
	assert.Contains(t, client.messages[0].payload, `"atMs":1760000000123`)
}

func TestPublishEventsReportsFailures(t *testing.T) {
	client := &fakeClient{failOn: "/events"}
	p := newPublisher(client, Topics{Prefix: "home"}, logging.Discard())
	err := p.PublishEvents([]events.Event{{Title: "a"}, {Title: "b"}}, time.Now())
	assert.Error(t, err)
}

func TestPublishDiscovery(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, Topics{Prefix: "home"}, logging.Discard())
	require.NoError(t, p.PublishHomeAssistantDiscovery())

	got := client.byTopic()
	assert.Len(t, got, len(discoveryEntities))
	msg, ok := got["homeassistant/sensor/home/inverter_pv_power/config"]
	require.True(t, ok)
	assert.True(t, msg.retained)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.payload), &cfg))
	assert.Equal(t, "home/inverter/pv_power", cfg["state_topic"])
	assert.Equal(t, "W", cfg["unit_of_measurement"])
	assert.Equal(t, "home/availability", cfg["availability_topic"])

	_, ok = got["homeassistant/binary_sensor/home/load_controller_pump/config"]
	assert.True(t, ok)
}
