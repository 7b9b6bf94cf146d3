package monitor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/sensor"
	"github.com/afroash/env-monitor/internal/storage"
)

// ReadingStore is what a session needs from persistence
type ReadingStore interface {
	HistoryReader
	AppendTemperature(ctx context.Context, valueF, valueC float64, t time.Time) (int64, error)
	AppendHumidity(ctx context.Context, value float64, t time.Time) (int64, error)
}

// Config holds everything Open needs to build a session
type Config struct {
	DBPath         string
	OpTimeout      time.Duration
	Limits         models.Limits
	SampleInterval time.Duration
	Source         sensor.PseudoSensorConfig
}

// Option customizes a Session built with New
type Option func(*Session)

// WithSampleInterval sets the pause SampleMany inserts between samples
func WithSampleInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

// WithClock replaces time.Now for record timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithCloser registers a resource released by Close
func WithCloser(c io.Closer) Option {
	return func(s *Session) { s.closer = c }
}

// Session owns the store handle, the sensor and the threshold policy for the
// lifetime of a running monitor. Sampling is serialized: one sample runs to
// completion before the next starts.
type Session struct {
	id       string
	store    ReadingStore
	source   sensor.ReadingSource
	policy   *ThresholdPolicy
	metrics  *MetricsCalculator
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
	closer   io.Closer

	mu       sync.Mutex // serializes sampling
	lastTime time.Time

	obsMu     sync.RWMutex
	observers map[int]func(models.SampleOutcome)
	nextObs   int

	closeOnce sync.Once
	closeErr  error
}

// New wires a session from explicit collaborators
func New(store ReadingStore, source sensor.ReadingSource, policy *ThresholdPolicy, logger zerolog.Logger, opts ...Option) *Session {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		store:     store,
		source:    source,
		policy:    policy,
		metrics:   NewMetricsCalculator(store),
		logger:    logger.With().Str("session_id", id).Logger(),
		now:       time.Now,
		observers: make(map[int]func(models.SampleOutcome)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the SQLite store (creating tables if missing) and returns a
// session that owns it. Close releases the store.
func Open(ctx context.Context, config Config, logger zerolog.Logger) (*Session, error) {
	if err := ValidateLimits(config.Limits); err != nil {
		return nil, fmt.Errorf("invalid default limits: %w", err)
	}

	store, err := storage.NewSQLiteStore(ctx, storage.SQLiteConfig{
		Path:      config.DBPath,
		OpTimeout: config.OpTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	s := New(store, sensor.NewPseudoSensor(config.Source, nil), NewThresholdPolicy(config.Limits), logger,
		WithSampleInterval(config.SampleInterval),
		WithCloser(store),
	)
	s.logger.Info().
		Str("db_path", config.DBPath).
		Interface("limits", config.Limits).
		Msg("Monitoring session opened")
	return s, nil
}

// ID returns the session's unique identifier
func (s *Session) ID() string {
	return s.id
}

// Close releases the store handle. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
		s.logger.Info().Msg("Monitoring session closed")
	})
	return s.closeErr
}

// Sample runs one cycle: generate, convert, append temperature, append
// humidity, evaluate. The two appends are independent; if the humidity
// append fails the temperature record stays and the error is returned.
// Once started, a sample is not interrupted by ctx cancellation.
func (s *Session) Sample(ctx context.Context) (models.SampleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	humidity, tempF := s.source.Generate()
	tempC := sensor.ToCelsius(tempF)
	ts := s.timestamp()

	tempID, err := s.store.AppendTemperature(ctx, tempF, tempC, ts)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to store temperature")
		return models.SampleOutcome{}, fmt.Errorf("failed to store temperature: %w", err)
	}

	if _, err := s.store.AppendHumidity(ctx, humidity, ts); err != nil {
		s.logger.Error().
			Err(err).
			Int64("temperature_id", tempID).
			Msg("Failed to store humidity, temperature record kept")
		return models.SampleOutcome{}, fmt.Errorf("failed to store humidity: %w", err)
	}

	outcome := models.SampleOutcome{
		TemperatureF: tempF,
		TemperatureC: tempC,
		Humidity:     humidity,
		Time:         ts,
		Alarm:        s.policy.Evaluate(tempF, humidity),
	}

	if outcome.Alarm != nil {
		s.logger.Warn().
			Str("limit", outcome.Alarm.Kind.String()).
			Float64("limit_value", outcome.Alarm.Limit).
			Float64("value", outcome.Alarm.Value).
			Msg(outcome.Alarm.Message)
	}
	s.logger.Debug().Msgf("sampled: %s", outcome.String())

	s.notify(outcome)
	return outcome, nil
}

// SampleMany runs n samples sequentially, pausing the configured interval
// between them. On the first failure it stops and returns the outcomes
// produced so far together with the error. Cancellation is honoured only
// between samples.
func (s *Session) SampleMany(ctx context.Context, n int) ([]models.SampleOutcome, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}

	outcomes := make([]models.SampleOutcome, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return outcomes, err
			}
		}

		outcome, err := s.Sample(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("sample %d of %d: %w", i+1, n, err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Run samples on a fixed interval until ctx is cancelled. Failed samples
// are logged and the loop carries on.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("Periodic sampling started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Periodic sampling stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sample(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Periodic sample failed")
			}
		}
	}
}

// SetLimit replaces one threshold
func (s *Session) SetLimit(kind models.LimitKind, value float64) error {
	if err := s.policy.SetLimit(kind, value); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected limit change")
		return err
	}
	s.logger.Info().Str("limit", kind.String()).Float64("value", value).Msg("Limit updated")
	return nil
}

// Limits returns the current thresholds
func (s *Session) Limits() models.Limits {
	return s.policy.Limits()
}

// ResetLimits restores the thresholds the session started with
func (s *Session) ResetLimits() {
	s.policy.Reset()
	s.logger.Info().Msg("Limits reset to defaults")
}

// ComputeMetrics summarizes the full stored history
func (s *Session) ComputeMetrics(ctx context.Context) (models.SummaryMetrics, error) {
	return s.metrics.Compute(ctx)
}

// TemperatureHistory returns every stored temperature in the requested unit
func (s *Session) TemperatureHistory(ctx context.Context, unit storage.Unit) (models.Series, error) {
	return s.store.AllTemperatures(ctx, unit)
}

// HumidityHistory returns every stored humidity value
func (s *Session) HumidityHistory(ctx context.Context) (models.Series, error) {
	return s.store.AllHumidities(ctx)
}

// Subscribe registers fn to receive every successful outcome. fn is called
// while sampling is locked and must not block. The returned func removes it.
func (s *Session) Subscribe(fn func(models.SampleOutcome)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Session) notify(outcome models.SampleOutcome) {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	for _, fn := range s.observers {
		fn(outcome)
	}
}

// timestamp never goes backwards, so stored times follow insertion order
// even if the wall clock is stepped back. Caller holds s.mu.
func (s *Session) timestamp() time.Time {
	t := s.now()
	if t.Before(s.lastTime) {
		t = s.lastTime
	}
	s.lastTime = t
	return t
}

func (s *Session) pause(ctx context.Context) error {
	if s.interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
