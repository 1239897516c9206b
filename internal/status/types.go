package status

import "time"

// Module identifies one of the three embedded devices.
type Module string

const (
	ModuleInverter       Module = "inverter"
	ModuleLoadController Module = "load_controller"
	ModuleGarage         Module = "garage"
)

// Modules lists every module in display order.
var Modules = []Module{ModuleInverter, ModuleLoadController, ModuleGarage}

// Lock modes accepted by the controllable loads.
const (
	LockNone = "NONE"
	LockOn   = "ON"
	LockOff  = "OFF"
)

// Operating modes accepted by /api/mode and /api/loadmode.
const (
	ModeAuto = "AUTO"
	ModeOff  = "OFF"
	ModeOn   = "ON"
)

// Climate is an optional BME sensor reading.
type Climate struct {
	Available bool     `json:"available"`
	Temp      *float64 `json:"temp"`
	Hum       *float64 `json:"hum"`
	Press     *float64 `json:"press"`
}

// Common holds the telemetry every module reports.
type Common struct {
	LineVoltage  float64 `json:"lineVoltage"`
	PvW          float64 `json:"pvW"`
	GridW        float64 `json:"gridW"`
	LoadW        float64 `json:"loadW"`
	BatterySoc   float64 `json:"batterySoc"`
	BatteryPower float64 `json:"batteryPower"`
	WifiStrength float64 `json:"wifiStrength"`
	RTCTime      string  `json:"rtcTime"`
	RTCDate      string  `json:"rtcDate"`
	Climate      Climate `json:"climate"`
}

// InverterStatus is the inverter's /api/status projection.
type InverterStatus struct {
	Common

	PvVoltage       float64 `json:"pvVoltage"`
	BatteryVoltage  float64 `json:"batteryVoltage"`
	GridFrequency   float64 `json:"gridFrequency"`
	OutputVoltage   float64 `json:"outputVoltage"`
	OutputFrequency float64 `json:"outputFrequency"`
	InverterTemp    float64 `json:"inverterTemp"`
	DailyPV         float64 `json:"dailyPV"`
	DailyHome       float64 `json:"dailyHome"`
	DailyGrid       float64 `json:"dailyGrid"`
	LastUpdate      string  `json:"lastUpdate"`

	Mode            string `json:"mode"`
	ModeReason      string `json:"modeReason"`
	LoadMode        string `json:"loadMode"`
	LoadModeReason  string `json:"loadModeReason"`
	LoadOnLocked    bool   `json:"loadOnLocked"`
	GridRelayOn     bool   `json:"gridRelayOn"`
	GridRelayReason string `json:"gridRelayReason"`
	GridPresent     bool   `json:"gridPresent"`
	LoadRelayOn     bool   `json:"loadRelayOn"`
	LoadRelayReason string `json:"loadRelayReason"`

	ClimateExt Climate `json:"climateExt"`
}

// LoadControllerStatus covers boiler 1 and the pump.
type LoadControllerStatus struct {
	Common

	Boiler1Mode        string  `json:"boiler1Mode"`
	Boiler1ModeReason  string  `json:"boiler1ModeReason"`
	Boiler1On          bool    `json:"boiler1On"`
	Boiler1StateReason string  `json:"boiler1StateReason"`
	PumpMode           string  `json:"pumpMode"`
	PumpModeReason     string  `json:"pumpModeReason"`
	PumpOn             bool    `json:"pumpOn"`
	PumpStateReason    string  `json:"pumpStateReason"`
	BoilerLock         string  `json:"boilerLock"`
	PumpLock           string  `json:"pumpLock"`
	BoilerCurrent      float64 `json:"boilerCurrent"`
	BoilerPower        float64 `json:"boilerPower"`
	DailyBoiler        float64 `json:"dailyBoiler"`
	PumpCurrent        float64 `json:"pumpCurrent"`
	PumpPower          float64 `json:"pumpPower"`
	DailyPump          float64 `json:"dailyPump"`
}

// GarageStatus covers boiler 2 and the gate.
type GarageStatus struct {
	Common

	Boiler2Mode        string  `json:"boiler2Mode"`
	Boiler2ModeReason  string  `json:"boiler2ModeReason"`
	Boiler2On          bool    `json:"boiler2On"`
	Boiler2StateReason string  `json:"boiler2StateReason"`
	BoilerLock         string  `json:"boilerLock"`
	BoilerCurrent      float64 `json:"boilerCurrent"`
	BoilerPower        float64 `json:"boilerPower"`
	DailyBoiler        float64 `json:"dailyBoiler"`
	GateState          string  `json:"gateState"`
	GateReason         string  `json:"gateReason"`
	GateOpenPin        int     `json:"gateOpenPin"`
	GateClosedPin      int     `json:"gateClosedPin"`
}

// Unified is the merged result of one aggregation cycle. A nil module
// was disabled or unreachable.
type Unified struct {
	Inverter       *InverterStatus       `json:"inverter"`
	LoadController *LoadControllerStatus `json:"loadController"`
	Garage         *GarageStatus         `json:"garage"`
	UpdatedAtMs    int64                 `json:"updatedAtMs"`
	FromMulticast  bool                  `json:"fromMulticast"`
}

// Empty reports whether no module is present.
func (u Unified) Empty() bool {
	return u.Inverter == nil && u.LoadController == nil && u.Garage == nil
}

// Present lists the modules that are present, in display order.
func (u Unified) Present() []Module {
	var out []Module
	if u.Inverter != nil {
		out = append(out, ModuleInverter)
	}
	if u.LoadController != nil {
		out = append(out, ModuleLoadController)
	}
	if u.Garage != nil {
		out = append(out, ModuleGarage)
	}
	return out
}

// UpdatedAt returns UpdatedAtMs as a time.
func (u Unified) UpdatedAt() time.Time {
	return time.UnixMilli(u.UpdatedAtMs)
}
