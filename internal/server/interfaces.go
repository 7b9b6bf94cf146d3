package server

import (
	"context"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/storage"
)

// Monitor is the set of core entry points the display layer may call.
// monitor.Session implements it.
type Monitor interface {
	// Sample runs one sampling cycle
	Sample(ctx context.Context) (models.SampleOutcome, error)

	// SampleMany runs n cycles sequentially, returning partial results on error
	SampleMany(ctx context.Context, n int) ([]models.SampleOutcome, error)

	// SetLimit replaces one threshold
	SetLimit(kind models.LimitKind, value float64) error

	// Limits returns the current thresholds
	Limits() models.Limits

	// ResetLimits restores the startup thresholds
	ResetLimits()

	// ComputeMetrics summarizes the full history
	ComputeMetrics(ctx context.Context) (models.SummaryMetrics, error)

	// TemperatureHistory returns all temperatures in the given unit
	TemperatureHistory(ctx context.Context, unit storage.Unit) (models.Series, error)

	// HumidityHistory returns all humidity values
	HumidityHistory(ctx context.Context) (models.Series, error)
}

// AdminStore exposes administrative persistence operations.
// storage.SQLiteStore implements this interface.
type AdminStore interface {
	// Dump returns every row of both tables
	Dump(ctx context.Context) (*storage.Dump, error)

	// Stats returns database statistics
	Stats(ctx context.Context) (*storage.StorageStats, error)

	// DeleteTemperature removes one temperature record
	DeleteTemperature(ctx context.Context, id int64) error

	// DeleteHumidity removes one humidity record
	DeleteHumidity(ctx context.Context, id int64) error
}

// RetentionReporter reports the retention cleaner's counters.
// storage.RetentionCleaner implements it.
type RetentionReporter interface {
	Stats() storage.RetentionCleanerStats
}

// MetricsSource is what the hub needs to push fresh metrics after a sample
type MetricsSource interface {
	ComputeMetrics(ctx context.Context) (models.SummaryMetrics, error)
}
