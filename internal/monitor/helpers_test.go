package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/storage"
)

// memoryStore is an in-memory ReadingStore with switchable failures
type memoryStore struct {
	mu          sync.Mutex
	temps       []models.TemperatureRecord
	humids      []models.HumidityRecord
	failTemp    error
	failHumid   error
	failHumidAt int // fail the humidity append with this 1-based index (0 = never)
	readErr     error
}

func (m *memoryStore) AppendTemperature(ctx context.Context, valueF, valueC float64, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTemp != nil {
		return 0, &storage.StorageError{Op: "append temperature", Err: m.failTemp}
	}
	id := int64(len(m.temps) + 1)
	m.temps = append(m.temps, models.TemperatureRecord{ID: id, ValueF: valueF, ValueC: valueC, Time: t})
	return id, nil
}

func (m *memoryStore) AppendHumidity(ctx context.Context, value float64, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failHumid != nil {
		return 0, &storage.StorageError{Op: "append humidity", Err: m.failHumid}
	}
	if m.failHumidAt > 0 && len(m.humids)+1 == m.failHumidAt {
		return 0, &storage.StorageError{Op: "append humidity", Err: errors.New("database is locked")}
	}
	id := int64(len(m.humids) + 1)
	m.humids = append(m.humids, models.HumidityRecord{ID: id, Value: value, Time: t})
	return id, nil
}

func (m *memoryStore) AllTemperatures(ctx context.Context, unit storage.Unit) (models.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return models.Series{}, &storage.StorageError{Op: "read temperatures", Err: m.readErr}
	}
	if unit != storage.Fahrenheit && unit != storage.Celsius {
		return models.Series{}, fmt.Errorf("%w: %q", storage.ErrInvalidUnit, unit)
	}
	s := models.Series{Values: []float64{}, Times: []time.Time{}}
	for _, r := range m.temps {
		v := r.ValueF
		if unit == storage.Celsius {
			v = r.ValueC
		}
		s.Values = append(s.Values, v)
		s.Times = append(s.Times, r.Time)
	}
	return s, nil
}

func (m *memoryStore) AllHumidities(ctx context.Context) (models.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return models.Series{}, &storage.StorageError{Op: "read humidities", Err: m.readErr}
	}
	s := models.Series{Values: []float64{}, Times: []time.Time{}}
	for _, r := range m.humids {
		s.Values = append(s.Values, r.Value)
		s.Times = append(s.Times, r.Time)
	}
	return s, nil
}

// seed appends readings directly, bypassing a session
func (m *memoryStore) seed(temps, humids []float64) {
	now := time.Now()
	for _, f := range temps {
		m.AppendTemperature(context.Background(), f, (f-32)*5/9, now)
	}
	for _, h := range humids {
		m.AppendHumidity(context.Background(), h, now)
	}
}

// scriptedSource replays fixed readings, repeating the last one
type scriptedSource struct {
	mu       sync.Mutex
	readings [][2]float64 // {humidity, temperatureF}
	calls    int
}

func (s *scriptedSource) Generate() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.readings) {
		i = len(s.readings) - 1
	}
	s.calls++
	return s.readings[i][0], s.readings[i][1]
}
