package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/afroash/env-monitor/internal/client"
	"github.com/afroash/env-monitor/internal/config"
	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/monitor"
	"github.com/afroash/env-monitor/internal/sensor"
	"github.com/afroash/env-monitor/internal/server"
	"github.com/afroash/env-monitor/internal/storage"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file (defaults are used when empty)")
	sampleCount := flag.Int("sample", 0, "take N samples, print outcomes and metrics, then exit")
	watchURL := flag.String("watch", "", "follow a running monitor's WebSocket stream, e.g. ws://localhost:8081/ws")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLog, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *watchURL != "":
		err = runWatch(ctx, *watchURL, logger)
	case *sampleCount > 0:
		err = runSample(ctx, cfg, *sampleCount, os.Stdout, logger)
	default:
		err = runServer(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Monitor exited with error")
		closeLog()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	cfg := config.Default()
	if err := cfg.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ensureDataDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// runSample takes n samples, writes each outcome and the resulting metrics to out
func runSample(ctx context.Context, cfg *config.AppConfig, n int, out io.Writer, logger zerolog.Logger) error {
	if err := ensureDataDir(cfg.Database.Path); err != nil {
		return err
	}

	session, err := monitor.Open(ctx, cfg.SessionConfig(), logger)
	if err != nil {
		return err
	}
	defer session.Close()

	outcomes, err := session.SampleMany(ctx, n)
	for _, o := range outcomes {
		fmt.Fprintln(out, o.String())
	}
	if err != nil {
		return fmt.Errorf("sampling stopped after %d of %d: %w", len(outcomes), n, err)
	}

	m, err := session.ComputeMetrics(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Metrics over %d samples: temperature min %.1f°F max %.1f°F avg %.1f°F, humidity min %.1f%% max %.1f%% avg %.1f%%\n",
		m.Count, m.MinTemp, m.MaxTemp, m.AvgTemp, m.MinHumid, m.MaxHumid, m.AvgHumid)
	return nil
}

// runWatch prints every message pushed by a running monitor until ctx ends
func runWatch(ctx context.Context, url string, logger zerolog.Logger) error {
	conn := client.NewConnection(client.DefaultConnectionConfig(url), func(msg models.Message) {
		fmt.Println(client.Describe(msg))
	}, logger)
	defer conn.Close()

	if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runServer serves the dashboard API and stream until ctx is cancelled
func runServer(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) error {
	logger.Info().
		Str("version", version).
		Int("port", cfg.Server.Port).
		Msg("Starting Environment Monitor")
	logger.Debug().Msg(cfg.String())

	if err := ensureDataDir(cfg.Database.Path); err != nil {
		return err
	}

	sc := cfg.SessionConfig()
	store, err := storage.NewSQLiteStore(ctx, storage.SQLiteConfig{
		Path:      sc.DBPath,
		OpTimeout: sc.OpTimeout,
	}, logger)
	if err != nil {
		return err
	}

	session := monitor.New(store, sensor.NewPseudoSensor(sc.Source, nil), monitor.NewThresholdPolicy(sc.Limits), logger,
		monitor.WithSampleInterval(sc.SampleInterval),
		monitor.WithCloser(store),
	)
	// The session owns the store from here on and is closed last
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close session")
		}
	}()

	var cleaner *storage.RetentionCleaner
	if cfg.Database.RetentionDays > 0 {
		cleaner = storage.NewRetentionCleaner(store, storage.RetentionCleanerConfig{
			RetentionDays: cfg.Database.RetentionDays,
			CleanupPeriod: cfg.Database.CleanupPeriod,
			PassTimeout:   time.Minute,
		}, logger)
		defer cleaner.Stop()
	}

	outcomeLog := server.NewOutcomeLog(cfg.Server.RecentSize)
	hub := server.NewHub(session, logger, cfg.Server.AllowedOrigins...)
	defer hub.Stop()

	unsubscribe := session.Subscribe(func(o models.SampleOutcome) {
		outcomeLog.Add(o)
		hub.Publish(o)
	})
	defer unsubscribe()

	api := server.NewAPIHandler(session, store, outcomeLog, cfg.Server.MaxBatch, logger)
	api.SetHub(hub)
	if cleaner != nil {
		api.SetRetention(cleaner)
	}

	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("GET /ws", hub)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":"%s","session_id":"%s"}`, version, session.ID())
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.Sampling.Auto {
		g.Go(func() error {
			err := session.Run(gctx, cfg.Sampling.Interval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	logger.Info().Msg("Server stopped")
	return err
}
