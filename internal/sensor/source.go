package sensor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// ReadingSource produces one temperature/humidity pair per call, standing
// in for a hardware sensor.
type ReadingSource interface {
	// Generate returns relative humidity (%) and temperature (°F)
	Generate() (humidity float64, temperatureF float64)
}

// Plausible physical bounds for generated values
const (
	MinTemperatureF = -50.0
	MaxTemperatureF = 150.0
	MinHumidity     = 0.0
	MaxHumidity     = 100.0
)

// PseudoSensorConfig tunes the simulated signal
type PseudoSensorConfig struct {
	BaseTemperatureF float64 // value the temperature drifts around (default: 68)
	BaseHumidity     float64 // value the humidity drifts around (default: 45)
	TemperatureStep  float64 // std deviation of one temperature step (default: 2)
	HumidityStep     float64 // std deviation of one humidity step (default: 3)
}

// DefaultPseudoSensorConfig returns an indoor-room profile
func DefaultPseudoSensorConfig() PseudoSensorConfig {
	return PseudoSensorConfig{
		BaseTemperatureF: 68,
		BaseHumidity:     45,
		TemperatureStep:  2,
		HumidityStep:     3,
	}
}

// PseudoSensor is a ReadingSource that random-walks around a base value,
// pulled back toward it on every step and clamped to plausible bounds.
type PseudoSensor struct {
	config PseudoSensorConfig
	mu     sync.Mutex
	rng    *rand.Rand
	temp   float64
	humid  float64
}

// Compile-time interface check
var _ ReadingSource = (*PseudoSensor)(nil)

// NewPseudoSensor creates a simulated sensor. A nil rng seeds from the clock.
func NewPseudoSensor(config PseudoSensorConfig, rng *rand.Rand) *PseudoSensor {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &PseudoSensor{
		config: config,
		rng:    rng,
		temp:   clamp(config.BaseTemperatureF, MinTemperatureF, MaxTemperatureF),
		humid:  clamp(config.BaseHumidity, MinHumidity, MaxHumidity),
	}
}

// Generate advances the walk one step and returns the new values
func (p *PseudoSensor) Generate() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.temp = p.step(p.temp, p.config.BaseTemperatureF, p.config.TemperatureStep)
	p.temp = clamp(p.temp, MinTemperatureF, MaxTemperatureF)

	p.humid = p.step(p.humid, p.config.BaseHumidity, p.config.HumidityStep)
	p.humid = clamp(p.humid, MinHumidity, MaxHumidity)

	return p.humid, p.temp
}

// step moves current by a gaussian delta and a 10% pull toward base
func (p *PseudoSensor) step(current, base, stddev float64) float64 {
	next := current + p.rng.NormFloat64()*stddev
	return next + (base-next)*0.1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
