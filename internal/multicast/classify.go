package multicast

import (
	"strings"

	"homehub/internal/status"
)

var moduleAliases = map[string]status.Module{
	"inverter":        status.ModuleInverter,
	"invertor":        status.ModuleInverter,
	"invertor-bast":   status.ModuleInverter,
	"load_controller": status.ModuleLoadController,
	"load":            status.ModuleLoadController,
	"loadcontroller":  status.ModuleLoadController,
	"garage":          status.ModuleGarage,
}

// Classify returns the module a broadcast came from. An explicit "module"
// field wins. Otherwise the module is guessed from distinctive keys and
// inferred is true.
func Classify(f status.Fields) (m status.Module, inferred bool) {
	if tag := strings.ToLower(f.String("", "module")); tag != "" {
		if m, ok := moduleAliases[tag]; ok {
			return m, false
		}
	}

	switch {
	case f.Has("door_state") || f.Has("door_reason"):
		return status.ModuleGarage, true
	case f.Has("pump_on") || (f.Has("boiler_lock") && f.Has("pump_lock")):
		return status.ModuleLoadController, true
	default:
		return status.ModuleInverter, true
	}
}
