package models

import (
	"fmt"
	"time"
)

// TemperatureRecord is one persisted temperature observation.
// ValueC is derived from ValueF once, when the record is created.
type TemperatureRecord struct {
	ID     int64     `json:"id"`
	ValueF float64   `json:"value_f"`
	ValueC float64   `json:"value_c"`
	Time   time.Time `json:"time"`
}

// HumidityRecord is one persisted relative humidity observation (percent).
type HumidityRecord struct {
	ID    int64     `json:"id"`
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// Series is a signal's history projected into parallel value and time slices.
// Values[i] was recorded at Times[i].
type Series struct {
	Values []float64   `json:"values"`
	Times  []time.Time `json:"times"`
}

// Len returns the number of points in the series
func (s Series) Len() int {
	return len(s.Values)
}

// SampleOutcome is what a single sampling cycle hands back to its caller.
// It is never persisted.
type SampleOutcome struct {
	TemperatureF float64   `json:"temperature_f"`
	TemperatureC float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity"`
	Time         time.Time `json:"time"`
	Alarm        *Alarm    `json:"alarm,omitempty"`
}

// HasAlarm reports whether the sample violated a limit
func (o *SampleOutcome) HasAlarm() bool {
	return o.Alarm != nil
}

// String returns the outcome as a single log-friendly line
func (o *SampleOutcome) String() string {
	s := fmt.Sprintf("Time: %s, Temperature: %.1f°F (%.1f°C), Humidity: %.1f%%",
		o.Time.Format(time.RFC3339),
		o.TemperatureF,
		o.TemperatureC,
		o.Humidity)
	if o.Alarm != nil {
		s += ", Alarm: " + o.Alarm.Message
	}
	return s
}

// SummaryMetrics holds aggregate statistics over the full stored history.
type SummaryMetrics struct {
	Count    int     `json:"count"`
	MinTemp  float64 `json:"min_temp"`
	MaxTemp  float64 `json:"max_temp"`
	AvgTemp  float64 `json:"avg_temp"`
	MinHumid float64 `json:"min_humid"`
	MaxHumid float64 `json:"max_humid"`
	AvgHumid float64 `json:"avg_humid"`
}
