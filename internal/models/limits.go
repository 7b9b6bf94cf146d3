package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownLimitKind is returned when a limit name cannot be parsed
var ErrUnknownLimitKind = errors.New("unknown limit kind")

// LimitKind names one of the four thresholds
type LimitKind int

const (
	TempMin LimitKind = iota
	TempMax
	HumidMin
	HumidMax
)

func (k LimitKind) String() string {
	switch k {
	case TempMin:
		return "temp_min"
	case TempMax:
		return "temp_max"
	case HumidMin:
		return "humid_min"
	case HumidMax:
		return "humid_max"
	default:
		return "unknown"
	}
}

// IsTemperature reports whether the limit bounds the temperature signal
func (k LimitKind) IsTemperature() bool {
	return k == TempMin || k == TempMax
}

// MarshalText encodes the kind by name so JSON keys and values stay readable
func (k LimitKind) MarshalText() ([]byte, error) {
	if k < TempMin || k > HumidMax {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLimitKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText
func (k *LimitKind) UnmarshalText(text []byte) error {
	parsed, err := ParseLimitKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseLimitKind accepts the names returned by LimitKind.String,
// case-insensitively and with '-' in place of '_'.
func ParseLimitKind(s string) (LimitKind, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "temp_min":
		return TempMin, nil
	case "temp_max":
		return TempMax, nil
	case "humid_min":
		return HumidMin, nil
	case "humid_max":
		return HumidMax, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLimitKind, s)
}

// Limits is the set of thresholds a reading is evaluated against.
// Temperatures are in Fahrenheit, humidity in percent.
type Limits struct {
	TempMin  float64 `json:"temp_min" yaml:"temp_min"`
	TempMax  float64 `json:"temp_max" yaml:"temp_max"`
	HumidMin float64 `json:"humid_min" yaml:"humid_min"`
	HumidMax float64 `json:"humid_max" yaml:"humid_max"`
}

// DefaultLimits returns the limits a session starts with
func DefaultLimits() Limits {
	return Limits{
		TempMin:  30,
		TempMax:  80,
		HumidMin: 30,
		HumidMax: 70,
	}
}

// Get returns the value of the named limit
func (l Limits) Get(kind LimitKind) float64 {
	switch kind {
	case TempMin:
		return l.TempMin
	case TempMax:
		return l.TempMax
	case HumidMin:
		return l.HumidMin
	default:
		return l.HumidMax
	}
}

// With returns a copy of l with the named limit replaced
func (l Limits) With(kind LimitKind, value float64) Limits {
	switch kind {
	case TempMin:
		l.TempMin = value
	case TempMax:
		l.TempMax = value
	case HumidMin:
		l.HumidMin = value
	case HumidMax:
		l.HumidMax = value
	}
	return l
}

// Alarm describes the first limit a reading violated
type Alarm struct {
	Kind    LimitKind `json:"kind"`
	Limit   float64   `json:"limit"`
	Value   float64   `json:"value"`
	Message string    `json:"message"`
}

// NewAlarm builds an alarm with a human-readable message naming the limit,
// its value and the offending reading.
func NewAlarm(kind LimitKind, limit, value float64) *Alarm {
	// Exact values, so a reading just past a limit never prints equal to it
	v, l := formatExact(value), formatExact(limit)

	var msg string
	switch kind {
	case TempMax:
		msg = fmt.Sprintf("temperature %s°F exceeds %s limit %s°F", v, kind, l)
	case TempMin:
		msg = fmt.Sprintf("temperature %s°F is below %s limit %s°F", v, kind, l)
	case HumidMax:
		msg = fmt.Sprintf("humidity %s%% exceeds %s limit %s%%", v, kind, l)
	default:
		msg = fmt.Sprintf("humidity %s%% is below %s limit %s%%", v, kind, l)
	}
	return &Alarm{
		Kind:    kind,
		Limit:   limit,
		Value:   value,
		Message: msg,
	}
}

func formatExact(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
