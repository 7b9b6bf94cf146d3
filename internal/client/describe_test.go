package client

import (
	"strings"
	"testing"
	"time"

	"github.com/afroash/env-monitor/internal/models"
)

func TestDescribe(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		msgType  models.MessageType
		payload  interface{}
		contains []string
	}{
		{
			name:     "outcome",
			msgType:  models.MessageTypeOutcome,
			payload:  models.SampleOutcome{TemperatureF: 85, TemperatureC: 29.4, Humidity: 50, Time: ts, Alarm: models.NewAlarm(models.TempMax, 80, 85)},
			contains: []string{"85.0°F", "29.4°C", "50.0%", "Alarm:"},
		},
		{
			name:     "metrics",
			msgType:  models.MessageTypeMetrics,
			payload:  models.SummaryMetrics{Count: 3, MinTemp: 70, MaxTemp: 80, AvgTemp: 75, MinHumid: 40, MaxHumid: 50, AvgHumid: 45},
			contains: []string{"3 samples", "avg 75.0°F", "avg 45.0%"},
		},
		{
			name:     "limits",
			msgType:  models.MessageTypeLimits,
			payload:  models.DefaultLimits(),
			contains: []string{"30.0-80.0°F", "30.0-70.0%"},
		},
		{
			name:     "error",
			msgType:  models.MessageTypeError,
			payload:  models.ErrorMessage{Code: "empty_history", Message: "no readings recorded yet"},
			contains: []string{"[empty_history]", "no readings recorded yet"},
		},
		{
			name:     "unknown type",
			msgType:  models.MessageType("other"),
			payload:  map[string]int{"x": 1},
			contains: []string{"other:", `"x":1`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := models.NewMessage(tt.msgType, tt.payload)
			if err != nil {
				t.Fatalf("NewMessage failed: %v", err)
			}
			got := Describe(*msg)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Describe() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestDescribe_BadPayload(t *testing.T) {
	msg := models.Message{Type: models.MessageTypeOutcome, Payload: []byte(`"not an object"`)}
	if got := Describe(msg); !strings.Contains(got, "undecodable") {
		t.Errorf("Describe() = %q, want undecodable note", got)
	}
}
