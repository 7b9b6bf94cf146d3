package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RetentionStore is the part of the store the cleaner needs
type RetentionStore interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error)
}

// PurgeResult reports how many records one retention pass removed per table
type PurgeResult struct {
	Cutoff       time.Time `json:"cutoff"`
	Temperatures int64     `json:"temperatures"`
	Humidities   int64     `json:"humidities"`
}

// Total returns the number of records removed across both tables
func (r PurgeResult) Total() int64 {
	return r.Temperatures + r.Humidities
}

// RetentionCleanerConfig holds configuration for the cleaner
type RetentionCleanerConfig struct {
	RetentionDays int           // Records older than this many days are purged (default: 30)
	CleanupPeriod time.Duration // Time between passes (default: 1 hour)
	PassTimeout   time.Duration // Deadline for a single pass (0 = none)
}

// DefaultRetentionCleanerConfig returns sensible defaults
func DefaultRetentionCleanerConfig() RetentionCleanerConfig {
	return RetentionCleanerConfig{
		RetentionDays: 30,
		CleanupPeriod: time.Hour,
		PassTimeout:   time.Minute,
	}
}

// RetentionCleanerStats is a snapshot of the cleaner's counters
type RetentionCleanerStats struct {
	Passes              int64       `json:"passes"`
	Failures            int64       `json:"failures"`
	TemperaturesDeleted int64       `json:"temperatures_deleted"`
	HumiditiesDeleted   int64       `json:"humidities_deleted"`
	LastPass            time.Time   `json:"last_pass,omitempty"`
	LastResult          PurgeResult `json:"last_result"`
	RetentionDays       int         `json:"retention_days"`
}

// TotalDeleted returns the records removed across both tables since start
func (s RetentionCleanerStats) TotalDeleted() int64 {
	return s.TemperaturesDeleted + s.HumiditiesDeleted
}

// RetentionCleaner is the administrative deletion path. It purges records
// older than the retention window on a fixed period; sampling never deletes.
type RetentionCleaner struct {
	store    RetentionStore
	logger   zerolog.Logger
	config   RetentionCleanerConfig
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	passMu   sync.Mutex // one pass at a time
	statsMu  sync.RWMutex
	stats    RetentionCleanerStats
}

// NewRetentionCleaner creates a cleaner and starts its loop. The first pass
// runs immediately.
func NewRetentionCleaner(store RetentionStore, config RetentionCleanerConfig, logger zerolog.Logger) *RetentionCleaner {
	// time.NewTicker panics on non-positive durations
	if config.CleanupPeriod <= 0 {
		logger.Warn().
			Dur("provided_period", config.CleanupPeriod).
			Msg("Invalid cleanup period, using 1h")
		config.CleanupPeriod = time.Hour
	}

	c := &RetentionCleaner{
		store:    store,
		logger:   logger.With().Str("component", "retention").Logger(),
		config:   config,
		now:      time.Now,
		stopChan: make(chan struct{}),
		stats:    RetentionCleanerStats{RetentionDays: config.RetentionDays},
	}

	c.wg.Add(1)
	go c.loop()

	c.logger.Info().
		Int("retention_days", config.RetentionDays).
		Dur("cleanup_period", config.CleanupPeriod).
		Msg("Retention cleaner started")

	return c
}

func (c *RetentionCleaner) loop() {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.RunNow(ctx)

	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow performs one pass immediately and records its outcome
func (c *RetentionCleaner) RunNow(ctx context.Context) (PurgeResult, error) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if c.config.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.PassTimeout)
		defer cancel()
	}

	cutoff := c.now().AddDate(0, 0, -c.config.RetentionDays)
	result, err := c.store.DeleteBefore(ctx, cutoff)

	c.statsMu.Lock()
	c.stats.Passes++
	c.stats.LastPass = c.now()
	if err != nil {
		c.stats.Failures++
	} else {
		c.stats.TemperaturesDeleted += result.Temperatures
		c.stats.HumiditiesDeleted += result.Humidities
		c.stats.LastResult = result
	}
	c.statsMu.Unlock()

	if err != nil {
		c.logger.Error().Err(err).Time("cutoff", cutoff).Msg("Retention pass failed")
		return PurgeResult{}, err
	}

	if result.Total() > 0 {
		c.logger.Info().
			Int64("temperatures", result.Temperatures).
			Int64("humidities", result.Humidities).
			Time("cutoff", cutoff).
			Msg("Retention pass removed old records")
	} else {
		c.logger.Debug().Time("cutoff", cutoff).Msg("Retention pass found nothing to remove")
	}
	return result, nil
}

// Stop ends the loop and waits for an in-flight pass. Safe to call more than once.
func (c *RetentionCleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
		c.logger.Info().Msg("Retention cleaner stopped")
	})
}

// Stats returns a snapshot of the counters
func (c *RetentionCleaner) Stats() RetentionCleanerStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}
