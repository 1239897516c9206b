package storage

import (
	"time"

	"gorm.io/gorm"
)

// Reading is one poll cycle's telemetry.
type Reading struct {
	gorm.Model
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
	FromMulticast bool      `json:"from_multicast"`

	// Modules present in the cycle
	InverterPresent       bool `json:"inverter_present"`
	LoadControllerPresent bool `json:"load_controller_present"`
	GaragePresent         bool `json:"garage_present"`

	// Inverter
	PvW          float64 `json:"pv_w"`
	GridW        float64 `json:"grid_w"`
	LoadW        float64 `json:"load_w"`
	BatterySoc   float64 `json:"battery_soc"`
	BatteryPower float64 `json:"battery_power_w"`
	LineVoltage  float64 `json:"line_voltage_v"`
	InverterTemp float64 `json:"inverter_temp_c"`
	GridRelayOn  bool    `json:"grid_relay_on"`
	GridPresent  bool    `json:"grid_present"`
	GridMode     string  `json:"grid_mode"`

	// Loads
	Boiler1On    bool    `json:"boiler1_on"`
	Boiler1Power float64 `json:"boiler1_power_w"`
	PumpOn       bool    `json:"pump_on"`
	PumpPower    float64 `json:"pump_power_w"`
	Boiler2On    bool    `json:"boiler2_on"`
	Boiler2Power float64 `json:"boiler2_power_w"`
	GateState    string  `json:"gate_state"`
}

// SnapshotRecord is the single stored event baseline.
type SnapshotRecord struct {
	ID        uint `gorm:"primaryKey"`
	Data      string
	UpdatedAt time.Time
}

// JournalEntry is one stored event.
type JournalEntry struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	AtMs   int64  `gorm:"index" json:"atMs"`
	Kind   string `json:"kind"`
	Module string `json:"module"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Reason string `json:"reason,omitempty"`
}

type DailyStats struct {
	Date           time.Time `json:"date"`
	MaxPvW         float64   `json:"max_pv_w"`
	AvgLineVoltage float64   `json:"avg_line_voltage_v"`
	GridOnlineRate float64   `json:"grid_online_rate"`
	ReadingsCount  int64     `json:"readings_count"`
}
