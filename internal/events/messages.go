package events

import (
	"fmt"
	"strings"
)

type messageKey int

const (
	msgPvStarted messageKey = iota
	msgPvStopped
	msgPvBody
	msgGridRelayOn
	msgGridRelayOff
	msgReasonBody
	msgGridAppeared
	msgGridDisappeared
	msgGridVoltageBody
	msgGridModeChanged
	msgLoadModeChanged
	msgBoiler1ModeChanged
	msgPumpModeChanged
	msgBoiler2ModeChanged
	msgModeBody
	msgGateChanged
	msgGateBody
	msgManualChange
	msgManualPulse
)

var catalogs = map[string]map[messageKey]string{
	"en": {
		msgPvStarted:          "PV generation started",
		msgPvStopped:          "PV generation stopped",
		msgPvBody:             "Reason: PV=%dW, threshold %dW",
		msgGridRelayOn:        "GRID relay turned ON",
		msgGridRelayOff:       "GRID relay turned OFF",
		msgReasonBody:         "Reason: %s",
		msgGridAppeared:       "GRID appeared",
		msgGridDisappeared:    "GRID disappeared",
		msgGridVoltageBody:    "Line voltage: %dV",
		msgGridModeChanged:    "GRID mode changed",
		msgLoadModeChanged:    "LOAD mode changed",
		msgBoiler1ModeChanged: "BOILER1 mode changed",
		msgPumpModeChanged:    "PUMP mode changed",
		msgBoiler2ModeChanged: "BOILER2 mode changed",
		msgModeBody:           "%s -> %s. Reason: %s",
		msgGateChanged:        "Gate state changed",
		msgGateBody:           "State: %s -> %s. Reason: %s",
		msgManualChange:       ReasonManualChange,
		msgManualPulse:        ReasonManualPulse,
	},
	"uk": {
		msgPvStarted:          "Почалася генерація PV",
		msgPvStopped:          "Генерація PV зупинилася",
		msgPvBody:             "Причина: PV=%dВт, поріг %dВт",
		msgGridRelayOn:        "Реле GRID увімкнено",
		msgGridRelayOff:       "Реле GRID вимкнено",
		msgReasonBody:         "Причина: %s",
		msgGridAppeared:       "Мережа з'явилася",
		msgGridDisappeared:    "Мережа зникла",
		msgGridVoltageBody:    "Напруга мережі: %dВ",
		msgGridModeChanged:    "Змінено режим GRID",
		msgLoadModeChanged:    "Змінено режим LOAD",
		msgBoiler1ModeChanged: "Змінено режим BOILER1",
		msgPumpModeChanged:    "Змінено режим PUMP",
		msgBoiler2ModeChanged: "Змінено режим BOILER2",
		msgModeBody:           "%s -> %s. Причина: %s",
		msgGateChanged:        "Змінено стан воріт",
		msgGateBody:           "Стан: %s -> %s. Причина: %s",
		msgManualChange:       "Ручна зміна",
		msgManualPulse:        "Ручний імпульс",
	},
}

// Languages lists the supported message catalogs.
func Languages() []string { return []string{"en", "uk"} }

type localizer map[messageKey]string

func localizerFor(lang string) localizer {
	if c, ok := catalogs[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return c
	}
	return catalogs["en"]
}

func (l localizer) text(key messageKey, args ...any) string {
	if len(args) == 0 {
		return l[key]
	}
	return fmt.Sprintf(l[key], args...)
}

// reason translates the canonical reasons and passes device text through.
func (l localizer) reason(normalized string) string {
	switch normalized {
	case ReasonManualChange:
		return l[msgManualChange]
	case ReasonManualPulse:
		return l[msgManualPulse]
	}
	return normalized
}
