package status

// GridPresentMinVoltage is the line voltage at or above which the grid is
// considered present when the inverter does not report it explicitly.
const GridPresentMinVoltage = 100.0

// Candidate keys per field, highest priority first.
var (
	keysPvW          = []string{"pv"}
	keysGridW        = []string{"ac_in", "grid"}
	keysLoadW        = []string{"ac_out", "load"}
	keysLineVoltage  = []string{"gridVolt"}
	keysBattery      = []string{"battery"}
	keysBatteryPower = []string{"battery_power"}
	keysWifi         = []string{"wifi_strength"}
	keysRTCTime      = []string{"rtc_time", "time"}
	keysRTCDate      = []string{"rtc_date", "date"}
	keysDailyPV      = []string{"dailyPV", "daily_pv"}
	keysDailyHome    = []string{"dailyHome", "daily_home"}
	keysDailyGrid    = []string{"dailyGrid", "daily_grid"}
	keysGridPresent  = []string{"grid_present", "gridPresent"}

	keysGarageMode       = []string{"mode", "boiler_mode"}
	keysGarageModeReason = []string{"boiler_mode_reason", "mode_reason"}
	keysGateState        = []string{"door_state", "door"}
)

func parseCommon(f Fields) Common {
	return Common{
		LineVoltage:  f.Float(keysLineVoltage...),
		PvW:          f.Float(keysPvW...),
		GridW:        f.Float(keysGridW...),
		LoadW:        f.Float(keysLoadW...),
		BatterySoc:   f.Float(keysBattery...),
		BatteryPower: f.Float(keysBatteryPower...),
		WifiStrength: f.Float(keysWifi...),
		RTCTime:      f.String(PlaceholderTime, keysRTCTime...),
		RTCDate:      f.String(PlaceholderDate, keysRTCDate...),
		Climate:      parseClimate(f, "bme_available", "bme_temp", "bme_hum", "bme_press"),
	}
}

func parseClimate(f Fields, availableKey, tempKey, humKey, pressKey string) Climate {
	c := Climate{
		Temp:  f.NullableFloat(tempKey),
		Hum:   f.NullableFloat(humKey),
		Press: f.NullableFloat(pressKey),
	}
	c.Available = f.Bool(availableKey) || c.Temp != nil || c.Hum != nil || c.Press != nil
	return c
}

// ParseInverter maps an inverter payload. It never fails.
func ParseInverter(f Fields) *InverterStatus {
	common := parseCommon(f)
	s := &InverterStatus{
		Common:          common,
		PvVoltage:       f.Float("pvVolt"),
		BatteryVoltage:  f.Float("batVolt"),
		GridFrequency:   f.Float("gridFreq"),
		OutputVoltage:   f.Float("outputVolt"),
		OutputFrequency: f.Float("outputFreq"),
		InverterTemp:    f.Float("inverterTemp"),
		DailyPV:         f.Float(keysDailyPV...),
		DailyHome:       f.Float(keysDailyHome...),
		DailyGrid:       f.Float(keysDailyGrid...),
		LastUpdate:      f.String(common.RTCTime, "last_update", "time"),
		Mode:            f.String(PlaceholderMode, "mode"),
		ModeReason:      f.String(PlaceholderReason, "mode_reason"),
		LoadMode:        f.String(PlaceholderMode, "load_mode"),
		LoadModeReason:  f.String(PlaceholderReason, "load_mode_reason"),
		LoadOnLocked:    f.Bool("load_on_locked"),
		GridRelayOn:     f.Bool("pin34_state"),
		GridRelayReason: f.String(PlaceholderReason, "pin34_reason"),
		LoadRelayOn:     f.Bool("pinLoad_state"),
		LoadRelayReason: f.String(PlaceholderReason, "pinLoad_reason"),
		ClimateExt:      parseClimate(f, "bme_ext_available", "bme_ext_temp", "bme_ext_hum", "bme_ext_press"),
	}

	s.GridPresent = common.LineVoltage >= GridPresentMinVoltage
	for _, key := range keysGridPresent {
		if b := f.NullableBool(key); b != nil {
			s.GridPresent = *b
			break
		}
	}
	return s
}

// ParseLoadController maps a load controller payload. It never fails.
func ParseLoadController(f Fields) *LoadControllerStatus {
	return &LoadControllerStatus{
		Common:             parseCommon(f),
		Boiler1Mode:        f.String(PlaceholderMode, "mode"),
		Boiler1ModeReason:  f.String(PlaceholderReason, "boiler_mode_reason"),
		Boiler1On:          f.Bool("boiler_on"),
		Boiler1StateReason: f.String(PlaceholderReason, "boiler_state_reason"),
		PumpMode:           f.String(PlaceholderMode, "load_mode"),
		PumpModeReason:     f.String(PlaceholderReason, "pump_mode_reason"),
		PumpOn:             f.Bool("pump_on"),
		PumpStateReason:    f.String(PlaceholderReason, "pump_state_reason"),
		BoilerLock:         f.String(PlaceholderLock, "boiler_lock"),
		PumpLock:           f.String(PlaceholderLock, "pump_lock"),
		BoilerCurrent:      f.Float("boiler_current"),
		BoilerPower:        f.Float("boiler_power"),
		DailyBoiler:        f.Float("daily_boiler"),
		PumpCurrent:        f.Float("pump_current"),
		PumpPower:          f.Float("pump_power"),
		DailyPump:          f.Float("daily_pump"),
	}
}

// ParseGarage maps a garage controller payload. It never fails.
func ParseGarage(f Fields) *GarageStatus {
	return &GarageStatus{
		Common:             parseCommon(f),
		Boiler2Mode:        f.String(PlaceholderMode, keysGarageMode...),
		Boiler2ModeReason:  f.String(PlaceholderReason, keysGarageModeReason...),
		Boiler2On:          f.Bool("boiler_on"),
		Boiler2StateReason: f.String(PlaceholderReason, "boiler_state_reason"),
		BoilerLock:         f.String(PlaceholderLock, "boiler_lock"),
		BoilerCurrent:      f.Float("boiler_current"),
		BoilerPower:        f.Float("boiler_power"),
		DailyBoiler:        f.Float("daily_boiler"),
		GateState:          f.String(PlaceholderGate, keysGateState...),
		GateReason:         f.String(PlaceholderReason, "door_reason"),
		GateOpenPin:        f.Int("door_open_pin", -1),
		GateClosedPin:      f.Int("door_closed_pin", -1),
	}
}
