package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Placeholders used when a device omits a string field.
const (
	PlaceholderMode   = "---"
	PlaceholderReason = "manual"
	PlaceholderLock   = "NONE"
	PlaceholderGate   = "unknown"
	PlaceholderDate   = "---"
	PlaceholderTime   = "--:--:--"
)

// Fields is a decoded device JSON object with tolerant typed getters.
// Missing, null or mistyped values never fail; they fall back instead.
type Fields map[string]any

// Decode parses a device payload. Only a payload that is not a JSON object is an error.
func Decode(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode device payload: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("decode device payload: not a JSON object")
	}
	return Fields(out), nil
}

// Has reports whether key is present and not null.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// NullableFloat returns the numeric value of key, or nil when absent or not numeric.
func (f Fields) NullableFloat(key string) *float64 {
	v, ok := f[key]
	if !ok || v == nil {
		return nil
	}
	var n float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		n = parsed
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

// Float returns the first numeric value among keys, in priority order, or 0.
func (f Fields) Float(keys ...string) float64 {
	for _, key := range keys {
		if v := f.NullableFloat(key); v != nil {
			return *v
		}
	}
	return 0
}

// Int returns the integer value of key or fallback.
func (f Fields) Int(key string, fallback int) int {
	v := f.NullableFloat(key)
	if v == nil {
		return fallback
	}
	return int(*v)
}

// String returns the first non-blank value among keys, trimmed, or fallback.
func (f Fields) String(fallback string, keys ...string) string {
	for _, key := range keys {
		v, ok := f[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return fallback
}

// Bool treats true, non-zero numbers and "true"/"1"/"on"/"yes" as true.
func (f Fields) Bool(key string) bool {
	b := f.NullableBool(key)
	return b != nil && *b
}

// NullableBool returns nil when key is absent or its value is not recognisable.
func (f Fields) NullableBool(key string) *bool {
	v, ok := f[key]
	if !ok || v == nil {
		return nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		b = n != 0
	case float64:
		b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "on", "yes":
			b = true
		case "false", "0", "off", "no", "":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}
