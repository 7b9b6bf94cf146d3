package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/monitor"
	"github.com/afroash/env-monitor/internal/storage"
)

// fixedSource returns the same reading until changed
type fixedSource struct {
	mu       sync.Mutex
	humidity float64
	tempF    float64
}

func (f *fixedSource) Generate() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.humidity, f.tempF
}

func (f *fixedSource) set(humidity, tempF float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.humidity, f.tempF = humidity, tempF
}

type testEnv struct {
	server  *httptest.Server
	session *monitor.Session
	store   *storage.SQLiteStore
	cleaner *storage.RetentionCleaner
	api     *APIHandler
	log     *OutcomeLog
	hub     *Hub
	source  *fixedSource
}

// newTestEnv wires a real SQLite-backed session behind the API and hub
func newTestEnv(t *testing.T, origins ...string) *testEnv {
	t.Helper()
	return setupTestEnv(t, 0, origins...)
}

// setupTestEnv also starts a retention cleaner when retentionDays > 0
func setupTestEnv(t *testing.T, retentionDays int, origins ...string) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	store, err := storage.NewSQLiteStore(context.Background(), storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "api.db"),
	}, logger)
	require.NoError(t, err)

	source := &fixedSource{humidity: 50, tempF: 72}
	session := monitor.New(store, source, monitor.NewThresholdPolicy(models.DefaultLimits()), logger,
		monitor.WithCloser(store))

	outcomeLog := NewOutcomeLog(10)
	hub := NewHub(session, logger, origins...)
	session.Subscribe(func(o models.SampleOutcome) {
		outcomeLog.Add(o)
		hub.Publish(o)
	})

	api := NewAPIHandler(session, store, outcomeLog, 5, logger)
	api.SetHub(hub)

	var cleaner *storage.RetentionCleaner
	if retentionDays > 0 {
		cleaner = storage.NewRetentionCleaner(store, storage.RetentionCleanerConfig{
			RetentionDays: retentionDays,
			CleanupPeriod: time.Hour,
		}, logger)
		api.SetRetention(cleaner)
	}

	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("GET /ws", hub)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
		if cleaner != nil {
			cleaner.Stop()
		}
		session.Close()
	})

	return &testEnv{server: srv, session: session, store: store, cleaner: cleaner, api: api, log: outcomeLog, hub: hub, source: source}
}
