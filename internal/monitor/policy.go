package monitor

import (
	"fmt"
	"math"
	"sync"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/sensor"
)

// ThresholdPolicy holds the four limits and evaluates readings against them.
// SetLimit and Evaluate are serialized, so an evaluation never sees a
// half-applied update.
type ThresholdPolicy struct {
	mu       sync.RWMutex
	limits   models.Limits
	defaults models.Limits
}

// NewThresholdPolicy creates a policy starting at the given limits
func NewThresholdPolicy(defaults models.Limits) *ThresholdPolicy {
	return &ThresholdPolicy{
		limits:   defaults,
		defaults: defaults,
	}
}

// Limits returns a snapshot of the current limits
func (p *ThresholdPolicy) Limits() models.Limits {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limits
}

// Reset restores the limits the policy was created with
func (p *ThresholdPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limits = p.defaults
}

// SetLimit replaces one limit. Non-finite values, values outside the
// signal's plausible range and values that would invert the min/max pair
// are rejected with *InvalidLimitError.
func (p *ThresholdPolicy) SetLimit(kind models.LimitKind, value float64) error {
	if kind < models.TempMin || kind > models.HumidMax {
		return &InvalidLimitError{Kind: kind, Value: value, Reason: models.ErrUnknownLimitKind.Error()}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &InvalidLimitError{Kind: kind, Value: value, Reason: "value is not a finite number"}
	}
	if err := checkRange(kind, value); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := checkOrder(p.limits, kind, value); err != nil {
		return err
	}
	p.limits = p.limits.With(kind, value)
	return nil
}

// Evaluate checks a reading against the limits in fixed order (temperature
// above max, temperature below min, humidity above max, humidity below min)
// and returns the first violation, or nil.
func (p *ThresholdPolicy) Evaluate(temperatureF, humidity float64) *models.Alarm {
	p.mu.RLock()
	l := p.limits
	p.mu.RUnlock()

	switch {
	case temperatureF > l.TempMax:
		return models.NewAlarm(models.TempMax, l.TempMax, temperatureF)
	case temperatureF < l.TempMin:
		return models.NewAlarm(models.TempMin, l.TempMin, temperatureF)
	case humidity > l.HumidMax:
		return models.NewAlarm(models.HumidMax, l.HumidMax, humidity)
	case humidity < l.HumidMin:
		return models.NewAlarm(models.HumidMin, l.HumidMin, humidity)
	}
	return nil
}

func checkRange(kind models.LimitKind, value float64) error {
	lo, hi := sensor.MinHumidity, sensor.MaxHumidity
	if kind.IsTemperature() {
		lo, hi = sensor.MinTemperatureF, sensor.MaxTemperatureF
	}
	if value < lo || value > hi {
		return &InvalidLimitError{
			Kind:   kind,
			Value:  value,
			Reason: fmt.Sprintf("must be between %v and %v", lo, hi),
		}
	}
	return nil
}

// checkOrder rejects a value that would put a min above its max
func checkOrder(l models.Limits, kind models.LimitKind, value float64) error {
	var other models.LimitKind
	var inverted bool
	switch kind {
	case models.TempMin:
		other, inverted = models.TempMax, value > l.TempMax
	case models.TempMax:
		other, inverted = models.TempMin, value < l.TempMin
	case models.HumidMin:
		other, inverted = models.HumidMax, value > l.HumidMax
	case models.HumidMax:
		other, inverted = models.HumidMin, value < l.HumidMin
	}
	if inverted {
		return &InvalidLimitError{
			Kind:   kind,
			Value:  value,
			Reason: fmt.Sprintf("would invert range with %s %v", other, l.Get(other)),
		}
	}
	return nil
}

// ValidateLimits checks a complete set of limits, as loaded from config
func ValidateLimits(l models.Limits) error {
	for _, kind := range []models.LimitKind{models.TempMin, models.TempMax, models.HumidMin, models.HumidMax} {
		v := l.Get(kind)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidLimitError{Kind: kind, Value: v, Reason: "value is not a finite number"}
		}
		if err := checkRange(kind, v); err != nil {
			return err
		}
	}
	if err := checkOrder(l, models.TempMin, l.TempMin); err != nil {
		return err
	}
	return checkOrder(l, models.HumidMin, l.HumidMin)
}
