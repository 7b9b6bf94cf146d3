package client

import (
	"fmt"

	"github.com/afroash/env-monitor/internal/models"
)

// Describe renders a stream message as one human-readable line
func Describe(msg models.Message) string {
	switch msg.Type {
	case models.MessageTypeOutcome:
		var o models.SampleOutcome
		if err := msg.UnmarshalPayload(&o); err != nil {
			return fmt.Sprintf("outcome: undecodable payload: %v", err)
		}
		return o.String()
	case models.MessageTypeMetrics:
		var m models.SummaryMetrics
		if err := msg.UnmarshalPayload(&m); err != nil {
			return fmt.Sprintf("metrics: undecodable payload: %v", err)
		}
		return fmt.Sprintf("Metrics (%d samples): Temperature min %.1f°F max %.1f°F avg %.1f°F, Humidity min %.1f%% max %.1f%% avg %.1f%%",
			m.Count, m.MinTemp, m.MaxTemp, m.AvgTemp, m.MinHumid, m.MaxHumid, m.AvgHumid)
	case models.MessageTypeLimits:
		var l models.Limits
		if err := msg.UnmarshalPayload(&l); err != nil {
			return fmt.Sprintf("limits: undecodable payload: %v", err)
		}
		return fmt.Sprintf("Limits: temperature %.1f-%.1f°F, humidity %.1f-%.1f%%",
			l.TempMin, l.TempMax, l.HumidMin, l.HumidMax)
	case models.MessageTypeError:
		var e models.ErrorMessage
		if err := msg.UnmarshalPayload(&e); err != nil {
			return fmt.Sprintf("error: undecodable payload: %v", err)
		}
		return fmt.Sprintf("Error [%s]: %s", e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: %s", msg.Type, string(msg.Payload))
	}
}
