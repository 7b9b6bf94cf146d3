package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
)

// Unit selects which temperature column a history read projects
type Unit string

const (
	Fahrenheit Unit = "f"
	Celsius    Unit = "c"
)

// timeLayout is how record times are written. Always UTC so that text
// comparison in retention deletes matches time order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Store defines the interface for reading persistence
type Store interface {
	Close() error
	Migrate(ctx context.Context) error
	AppendTemperature(ctx context.Context, valueF, valueC float64, t time.Time) (int64, error)
	AppendHumidity(ctx context.Context, value float64, t time.Time) (int64, error)
	AppendReading(ctx context.Context, valueF, valueC, humidity float64, t time.Time) (int64, int64, error)
	AllTemperatures(ctx context.Context, unit Unit) (models.Series, error)
	AllHumidities(ctx context.Context) (models.Series, error)
	DeleteTemperature(ctx context.Context, id int64) error
	DeleteHumidity(ctx context.Context, id int64) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error)
	Dump(ctx context.Context) (*Dump, error)
	Stats(ctx context.Context) (*StorageStats, error)
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteConfig holds settings for opening the store
type SQLiteConfig struct {
	Path      string        // Database file path
	OpTimeout time.Duration // Deadline applied to each append (0 = none)
}

// SQLiteStore persists temperature and humidity records in two append-only tables
type SQLiteStore struct {
	db        *sql.DB
	path      string
	opTimeout time.Duration
	logger    zerolog.Logger
}

// Dump is the full content of both tables
type Dump struct {
	Temperatures []models.TemperatureRecord `json:"temperatures"`
	Humidities   []models.HumidityRecord    `json:"humidities"`
}

// StorageStats contains information about the database
type StorageStats struct {
	TemperatureRecords int64     `json:"temperature_records"`
	HumidityRecords    int64     `json:"humidity_records"`
	OldestRecord       time.Time `json:"oldest_record,omitempty"`
	NewestRecord       time.Time `json:"newest_record,omitempty"`
	DatabaseSizeMB     float64   `json:"database_size_mb"`
}

// NewSQLiteStore opens the database, applies pragmas and creates the schema
// if it is missing.
func NewSQLiteStore(ctx context.Context, config SQLiteConfig, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, wrap("open", fmt.Errorf("failed to open database: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, wrap("open", fmt.Errorf("failed to ping database: %w", err))
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, wrap("open", fmt.Errorf("failed to set pragma %q: %w", pragma, err))
		}
	}

	// Single writer; appends are serialized by the connection pool as well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:        db,
		path:      config.Path,
		opTimeout: config.OpTimeout,
		logger:    logger,
	}

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", config.Path).Msg("SQLite store initialized")

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the schema if it doesn't exist
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS temperature (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value_f REAL NOT NULL,
		value_c REAL NOT NULL,
		time DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS humidity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value REAL NOT NULL,
		time DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_temperature_time ON temperature(time);
	CREATE INDEX IF NOT EXISTS idx_humidity_time ON humidity(time);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrap("migrate", fmt.Errorf("failed to create schema: %w", err))
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// opContext applies the configured per-operation deadline
func (s *SQLiteStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout > 0 {
		return context.WithTimeout(ctx, s.opTimeout)
	}
	return context.WithCancel(ctx)
}

// AppendTemperature inserts one temperature record and returns its id
func (s *SQLiteStore) AppendTemperature(ctx context.Context, valueF, valueC float64, t time.Time) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO temperature (value_f, value_c, time) VALUES (?, ?, ?)",
		valueF, valueC, formatTime(t),
	)
	if err != nil {
		return 0, wrap("append temperature", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, wrap("append temperature", fmt.Errorf("failed to get insert id: %w", err))
	}
	return id, nil
}

// AppendHumidity inserts one humidity record and returns its id
func (s *SQLiteStore) AppendHumidity(ctx context.Context, value float64, t time.Time) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO humidity (value, time) VALUES (?, ?)",
		value, formatTime(t),
	)
	if err != nil {
		return 0, wrap("append humidity", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, wrap("append humidity", fmt.Errorf("failed to get insert id: %w", err))
	}
	return id, nil
}

// AppendReading writes a temperature and a humidity record in a single
// transaction. Either both rows are committed or neither is.
func (s *SQLiteStore) AppendReading(ctx context.Context, valueF, valueC, humidity float64, t time.Time) (int64, int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, wrap("append reading", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	ts := formatTime(t)
	tempResult, err := tx.ExecContext(ctx,
		"INSERT INTO temperature (value_f, value_c, time) VALUES (?, ?, ?)",
		valueF, valueC, ts,
	)
	if err != nil {
		return 0, 0, wrap("append reading", err)
	}
	humidResult, err := tx.ExecContext(ctx,
		"INSERT INTO humidity (value, time) VALUES (?, ?)",
		humidity, ts,
	)
	if err != nil {
		return 0, 0, wrap("append reading", err)
	}

	tempID, err := tempResult.LastInsertId()
	if err != nil {
		return 0, 0, wrap("append reading", err)
	}
	humidID, err := humidResult.LastInsertId()
	if err != nil {
		return 0, 0, wrap("append reading", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, wrap("append reading", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return tempID, humidID, nil
}

// AllTemperatures returns the full temperature history in insertion order,
// projecting the column selected by unit.
func (s *SQLiteStore) AllTemperatures(ctx context.Context, unit Unit) (models.Series, error) {
	var query string
	switch unit {
	case Fahrenheit:
		query = "SELECT value_f, time FROM temperature ORDER BY id ASC"
	case Celsius:
		query = "SELECT value_c, time FROM temperature ORDER BY id ASC"
	default:
		return models.Series{}, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return models.Series{}, wrap("read temperatures", err)
	}
	defer rows.Close()

	series, err := s.scanSeries(rows)
	if err != nil {
		return models.Series{}, wrap("read temperatures", err)
	}
	return series, nil
}

// AllHumidities returns the full humidity history in insertion order
func (s *SQLiteStore) AllHumidities(ctx context.Context) (models.Series, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT value, time FROM humidity ORDER BY id ASC")
	if err != nil {
		return models.Series{}, wrap("read humidities", err)
	}
	defer rows.Close()

	series, err := s.scanSeries(rows)
	if err != nil {
		return models.Series{}, wrap("read humidities", err)
	}
	return series, nil
}

// DeleteTemperature removes a single temperature record
func (s *SQLiteStore) DeleteTemperature(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "temperature", id)
}

// DeleteHumidity removes a single humidity record
func (s *SQLiteStore) DeleteHumidity(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "humidity", id)
}

// deleteByID is shared by the single-record deletes. table is never user input.
func (s *SQLiteStore) deleteByID(ctx context.Context, table string, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return wrap("delete "+table, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return wrap("delete "+table, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, table, id)
	}

	s.logger.Info().Str("table", table).Int64("id", id).Msg("Deleted record")
	return nil
}

// DeleteBefore removes records of both tables with a time before cutoff, in
// one transaction
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	result := PurgeResult{Cutoff: cutoff}
	ts := formatTime(cutoff)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PurgeResult{}, wrap("retention", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, target := range []struct {
		table string
		count *int64
	}{
		{"temperature", &result.Temperatures},
		{"humidity", &result.Humidities},
	} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+target.table+" WHERE time < ?", ts)
		if err != nil {
			return PurgeResult{}, wrap("retention", fmt.Errorf("failed to delete old %s records: %w", target.table, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return PurgeResult{}, wrap("retention", fmt.Errorf("failed to get rows affected: %w", err))
		}
		*target.count = n
	}

	if err := tx.Commit(); err != nil {
		return PurgeResult{}, wrap("retention", fmt.Errorf("failed to commit transaction: %w", err))
	}

	s.logger.Debug().
		Str("cutoff", ts).
		Int64("temperatures", result.Temperatures).
		Int64("humidities", result.Humidities).
		Msg("Deleted records before cutoff")

	return result, nil
}

// Dump returns every row of both tables in insertion order
func (s *SQLiteStore) Dump(ctx context.Context) (*Dump, error) {
	dump := &Dump{
		Temperatures: []models.TemperatureRecord{},
		Humidities:   []models.HumidityRecord{},
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, value_f, value_c, time FROM temperature ORDER BY id ASC")
	if err != nil {
		return nil, wrap("dump", err)
	}
	for rows.Next() {
		var r models.TemperatureRecord
		var ts string
		if err := rows.Scan(&r.ID, &r.ValueF, &r.ValueC, &ts); err != nil {
			rows.Close()
			return nil, wrap("dump", fmt.Errorf("failed to scan temperature: %w", err))
		}
		if r.Time, err = parseTimestamp(ts); err != nil {
			rows.Close()
			return nil, wrap("dump", err)
		}
		dump.Temperatures = append(dump.Temperatures, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrap("dump", fmt.Errorf("error iterating rows: %w", err))
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT id, value, time FROM humidity ORDER BY id ASC")
	if err != nil {
		return nil, wrap("dump", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.HumidityRecord
		var ts string
		if err := rows.Scan(&r.ID, &r.Value, &ts); err != nil {
			return nil, wrap("dump", fmt.Errorf("failed to scan humidity: %w", err))
		}
		if r.Time, err = parseTimestamp(ts); err != nil {
			return nil, wrap("dump", err)
		}
		dump.Humidities = append(dump.Humidities, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("dump", fmt.Errorf("error iterating rows: %w", err))
	}

	return dump, nil
}

// Stats returns statistics about the database
func (s *SQLiteStore) Stats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM temperature").Scan(&stats.TemperatureRecords)
	if err != nil {
		return nil, wrap("stats", fmt.Errorf("failed to count temperatures: %w", err))
	}
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM humidity").Scan(&stats.HumidityRecords)
	if err != nil {
		return nil, wrap("stats", fmt.Errorf("failed to count humidities: %w", err))
	}

	if stats.TemperatureRecords > 0 {
		var oldest, newest string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(time), MAX(time) FROM temperature").Scan(&oldest, &newest)
		if err != nil {
			return nil, wrap("stats", fmt.Errorf("failed to get time range: %w", err))
		}
		stats.OldestRecord, _ = parseTimestamp(oldest)
		stats.NewestRecord, _ = parseTimestamp(newest)
	}

	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

// scanSeries reads (value, time) rows into a Series
func (s *SQLiteStore) scanSeries(rows *sql.Rows) (models.Series, error) {
	series := models.Series{
		Values: []float64{},
		Times:  []time.Time{},
	}

	for rows.Next() {
		var v float64
		var ts string
		if err := rows.Scan(&v, &ts); err != nil {
			return models.Series{}, fmt.Errorf("failed to scan row: %w", err)
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return models.Series{}, err
		}
		series.Values = append(series.Values, v)
		series.Times = append(series.Times, t)
	}

	if err := rows.Err(); err != nil {
		return models.Series{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return series, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp. The
// driver may hand back DATETIME columns already converted, which database/sql
// renders as RFC3339Nano.
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.New("unable to parse timestamp: " + ts)
}
