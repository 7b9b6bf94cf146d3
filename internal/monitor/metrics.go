package monitor

import (
	"context"
	"fmt"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/storage"
)

// HistoryReader is the read side of the reading store
type HistoryReader interface {
	AllTemperatures(ctx context.Context, unit storage.Unit) (models.Series, error)
	AllHumidities(ctx context.Context) (models.Series, error)
}

// MetricsCalculator folds the full stored history into summary statistics.
// Nothing is cached; every call rereads both tables.
type MetricsCalculator struct {
	store HistoryReader
}

// NewMetricsCalculator creates a calculator over the given history
func NewMetricsCalculator(store HistoryReader) *MetricsCalculator {
	return &MetricsCalculator{store: store}
}

// Compute returns count, min, max and average for both signals.
// ErrEmptyHistory is returned when either signal has no records.
func (m *MetricsCalculator) Compute(ctx context.Context) (models.SummaryMetrics, error) {
	temps, err := m.store.AllTemperatures(ctx, storage.Fahrenheit)
	if err != nil {
		return models.SummaryMetrics{}, fmt.Errorf("failed to read temperature history: %w", err)
	}
	humids, err := m.store.AllHumidities(ctx)
	if err != nil {
		return models.SummaryMetrics{}, fmt.Errorf("failed to read humidity history: %w", err)
	}

	if temps.Len() == 0 || humids.Len() == 0 {
		return models.SummaryMetrics{}, ErrEmptyHistory
	}

	minT, maxT, avgT := summarize(temps.Values)
	minH, maxH, avgH := summarize(humids.Values)

	return models.SummaryMetrics{
		Count:    temps.Len(),
		MinTemp:  minT,
		MaxTemp:  maxT,
		AvgTemp:  avgT,
		MinHumid: minH,
		MaxHumid: maxH,
		AvgHumid: avgH,
	}, nil
}

// summarize requires a non-empty slice
func summarize(values []float64) (lo, hi, avg float64) {
	lo, hi = values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	return lo, hi, sum / float64(len(values))
}
