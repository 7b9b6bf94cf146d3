package server

import (
	"sync"

	"github.com/afroash/env-monitor/internal/models"
)

// OutcomeLog is an in-memory ring buffer of the most recent sample outcomes.
// It backs the "current values" view without touching the database.
type OutcomeLog struct {
	capacity      int
	outcomes      []models.SampleOutcome
	mutex         sync.RWMutex
	totalOutcomes int64
	totalAlarms   int64
}

// OutcomeLogStats contains counters since startup
type OutcomeLogStats struct {
	TotalOutcomes int64 `json:"total_outcomes"`
	TotalAlarms   int64 `json:"total_alarms"`
	Buffered      int   `json:"buffered"`
}

// NewOutcomeLog creates a log holding at most capacity outcomes
func NewOutcomeLog(capacity int) *OutcomeLog {
	if capacity < 1 {
		capacity = 1
	}
	return &OutcomeLog{
		capacity: capacity,
		outcomes: make([]models.SampleOutcome, 0, capacity),
	}
}

// Add records an outcome, dropping the oldest when full
func (l *OutcomeLog) Add(outcome models.SampleOutcome) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if len(l.outcomes) >= l.capacity {
		copy(l.outcomes, l.outcomes[1:])
		l.outcomes = l.outcomes[:len(l.outcomes)-1]
	}
	l.outcomes = append(l.outcomes, copyOutcome(outcome))
	l.totalOutcomes++
	if outcome.Alarm != nil {
		l.totalAlarms++
	}
}

// Latest returns the most recent outcome, or nil if none
func (l *OutcomeLog) Latest() *models.SampleOutcome {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if len(l.outcomes) == 0 {
		return nil
	}
	o := copyOutcome(l.outcomes[len(l.outcomes)-1])
	return &o
}

// Recent returns up to n outcomes, newest first
func (l *OutcomeLog) Recent(n int) []models.SampleOutcome {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	start := len(l.outcomes) - n
	if start < 0 {
		start = 0
	}

	result := make([]models.SampleOutcome, 0, len(l.outcomes)-start)
	for i := len(l.outcomes) - 1; i >= start; i-- {
		result = append(result, copyOutcome(l.outcomes[i]))
	}
	return result
}

// Stats returns counters since startup
func (l *OutcomeLog) Stats() OutcomeLogStats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return OutcomeLogStats{
		TotalOutcomes: l.totalOutcomes,
		TotalAlarms:   l.totalAlarms,
		Buffered:      len(l.outcomes),
	}
}

// copyOutcome detaches the alarm pointer so callers cannot mutate the log
func copyOutcome(o models.SampleOutcome) models.SampleOutcome {
	if o.Alarm != nil {
		alarm := *o.Alarm
		o.Alarm = &alarm
	}
	return o
}
