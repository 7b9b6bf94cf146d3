// internal/models/reading_test.go
package models

import (
	"strings"
	"testing"
	"time"
)

func TestSampleOutcome_String(t *testing.T) {
	outcome := SampleOutcome{
		TemperatureF: 72.5,
		TemperatureC: 22.5,
		Humidity:     45.0,
		Time:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	s := outcome.String()
	if !strings.Contains(s, "72.5°F") {
		t.Errorf("String() = %q, want Fahrenheit value", s)
	}
	if strings.Contains(s, "Alarm") {
		t.Errorf("String() = %q, should not mention an alarm", s)
	}
	if outcome.HasAlarm() {
		t.Error("HasAlarm() = true, want false")
	}

	outcome.Alarm = NewAlarm(HumidMin, 30, 12)
	s = outcome.String()
	if !strings.Contains(s, "Alarm: humidity 12% is below humid_min limit 30%") {
		t.Errorf("String() = %q, want alarm message", s)
	}
}

func TestSeries_Len(t *testing.T) {
	var empty Series
	if empty.Len() != 0 {
		t.Errorf("Len() = %d, want 0", empty.Len())
	}

	s := Series{
		Values: []float64{1, 2, 3},
		Times:  []time.Time{time.Now(), time.Now(), time.Now()},
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}
