package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroash/env-monitor/internal/models"
)

func outcome(tempF float64, alarm bool) models.SampleOutcome {
	o := models.SampleOutcome{TemperatureF: tempF, Humidity: 50, Time: time.Now()}
	if alarm {
		o.Alarm = models.NewAlarm(models.TempMax, 80, tempF)
	}
	return o
}

func TestOutcomeLog_Empty(t *testing.T) {
	l := NewOutcomeLog(3)

	assert.Nil(t, l.Latest())
	assert.Empty(t, l.Recent(5))
	assert.Equal(t, OutcomeLogStats{}, l.Stats())
}

func TestOutcomeLog_RingBuffer(t *testing.T) {
	l := NewOutcomeLog(3)
	for i := 1; i <= 5; i++ {
		l.Add(outcome(float64(i), false))
	}

	latest := l.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 5.0, latest.TemperatureF)

	recent := l.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, 5.0, recent[0].TemperatureF)
	assert.Equal(t, 4.0, recent[1].TemperatureF)
	assert.Equal(t, 3.0, recent[2].TemperatureF)

	assert.Len(t, l.Recent(2), 2)

	stats := l.Stats()
	assert.Equal(t, int64(5), stats.TotalOutcomes)
	assert.Equal(t, 3, stats.Buffered)
}

func TestOutcomeLog_CountsAlarms(t *testing.T) {
	l := NewOutcomeLog(10)
	l.Add(outcome(70, false))
	l.Add(outcome(85, true))
	l.Add(outcome(90, true))

	assert.Equal(t, int64(2), l.Stats().TotalAlarms)
}

func TestOutcomeLog_ReturnsCopies(t *testing.T) {
	l := NewOutcomeLog(2)
	l.Add(outcome(85, true))

	latest := l.Latest()
	require.NotNil(t, latest.Alarm)
	latest.Alarm.Message = "changed"
	latest.TemperatureF = 0

	again := l.Latest()
	assert.Equal(t, 85.0, again.TemperatureF)
	assert.NotEqual(t, "changed", again.Alarm.Message)
}

func TestOutcomeLog_MinimumCapacity(t *testing.T) {
	l := NewOutcomeLog(0)
	l.Add(outcome(1, false))
	l.Add(outcome(2, false))

	assert.Len(t, l.Recent(5), 1)
}
