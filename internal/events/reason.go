package events

import "strings"

// Canonical reasons that replace placeholder device reasons.
const (
	ReasonManualChange = "Manual change"
	ReasonManualPulse  = "Manual pulse"
)

var placeholderReasons = map[string]bool{
	"unknown": true,
	"uncnov":  true,
	"---":     true,
	"none":    true,
	"null":    true,
	"n/a":     true,
	"na":      true,
}

// NormalizeReason collapses blank, manual and unknown-like device reasons into
// ReasonManualChange and a bare pulse into ReasonManualPulse. Matching ignores
// case, underscores and hyphens. Any other reason is returned as is.
func NormalizeReason(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ReasonManualChange
	}

	norm := strings.ToLower(value)
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	norm = strings.TrimSpace(norm)

	switch {
	case norm == "":
		return ReasonManualChange
	case strings.Contains(norm, "manual"):
		return ReasonManualChange
	case norm == "pulse":
		return ReasonManualPulse
	case placeholderReasons[norm], strings.Contains(norm, "unknown"), strings.Contains(norm, "uncnov"):
		return ReasonManualChange
	}
	return value
}

func normalizePtr(raw *string) string {
	if raw == nil {
		return NormalizeReason("")
	}
	return NormalizeReason(*raw)
}
