package mqtt

import "fmt"

// Topics builds the topic tree under one prefix:
//
//	<prefix>/status                 retained JSON of the last unified status
//	<prefix>/<module>/<field>       retained scalar telemetry
//	<prefix>/events                 one JSON message per detected event
//	<prefix>/availability           online/offline
type Topics struct {
	Prefix string
}

func (t Topics) Status() string { return t.Prefix + "/status" }

func (t Topics) Events() string { return t.Prefix + "/events" }

func (t Topics) Availability() string { return t.Prefix + "/availability" }

func (t Topics) Field(module, field string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, module, field)
}

// Discovery returns the Home Assistant discovery topic of one entity.
func (t Topics) Discovery(component, id string) string {
	return fmt.Sprintf("homeassistant/%s/%s/%s/config", component, t.Prefix, id)
}
