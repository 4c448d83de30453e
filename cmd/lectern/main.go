package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/api"
	"github.com/snarg/lectern/internal/config"
	"github.com/snarg/lectern/internal/ingest"
	"github.com/snarg/lectern/internal/metrics"
	"github.com/snarg/lectern/internal/mqttclient"
	"github.com/snarg/lectern/internal/storage"
	"github.com/snarg/lectern/internal/store"
	"github.com/snarg/lectern/internal/transcribe"
)

var version = "dev"

// liveStats feeds the metrics collector from whichever services are running.
type liveStats struct {
	pool *transcribe.WorkerPool
	bus  *ingest.EventBus
}

func (s liveStats) QueueDepth() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.Stats().Pending
}

func (s liveStats) SSESubscriberCount() int {
	if s.bus == nil {
		return 0
	}
	return s.bus.Subscribers()
}

func main() {
	startTime := time.Now()

	// Flags override env vars, which override the .env file.
	var flags config.Overrides
	flag.StringVar(&flags.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&flags.HTTPAddr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&flags.DatabasePath, "db", "", "store path (overrides DATABASE_PATH)")
	flag.StringVar(&flags.TranscriptsDir, "transcripts", "", "transcripts directory (overrides TRANSCRIPTS_DIR)")
	flag.StringVar(&flags.CacheDir, "cache", "", "recording cache directory (overrides CACHE_DIR)")
	flag.Parse()

	// Config
	cfg, err := config.Load(flags)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("lectern starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	dbLog := log.With().Str("component", "store").Logger()
	db, err := store.Open(ctx, cfg.DatabasePath, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Ingestion
	ingestLog := log.With().Str("component", "ingest").Logger()
	bus := ingest.NewEventBus(256)
	syncer := ingest.NewSyncer(db, bus, ingestLog)

	var watcher *ingest.Watcher
	if cfg.Watch {
		watcher = ingest.NewWatcher(syncer, cfg.TranscriptsDir, ingestLog)
		if err := watcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start transcript watcher")
		}
		defer watcher.Stop()
	}

	// Transcription pipeline, only when an ASR backend is configured
	var pool *transcribe.WorkerPool
	var background []storage.BackgroundService
	if cfg.ASRURL != "" {
		storageLog := log.With().Str("component", "storage").Logger()
		src, services, err := storage.New(cfg, storageLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize recording source")
		}
		background = services
		for _, svc := range background {
			svc.Start()
		}
		defer func() {
			for _, svc := range background {
				svc.Stop()
			}
		}()

		asrLog := log.With().Str("component", "transcribe").Logger()
		pool = transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
			Source:    src,
			Provider:  transcribe.NewWhisperClient(cfg.ASRURL, cfg.ASRModel, cfg.ASRTimeout),
			Syncer:    syncer,
			Bus:       bus,
			OutputDir: cfg.TranscriptsDir,
			ASROpts:   transcribe.TranscribeOpts{Language: cfg.ASRLanguage},
			Workers:   cfg.ASRWorkers,
			QueueSize: cfg.ASRQueue,
			DiskWait: storage.WaitOptions{
				MinFreeGB:     cfg.MinFreeGB,
				CheckInterval: cfg.DiskCheckInterval,
				MaxWait:       cfg.DiskMaxWait,
			},
			RunLogPath: filepath.Join(cfg.TranscriptsDir, "run_log.csv"),
			Timeout:    cfg.ASRTimeout,
			Log:        asrLog,
		})
		pool.Start()
		defer pool.Stop()
	}

	// MQTT announcements feed the transcription queue
	var sub *mqttclient.Subscriber
	if cfg.MQTTBrokerURL != "" && pool != nil {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		sub, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topics:    cfg.MQTTTopics,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Enqueue: func(key string, force bool) bool {
				return pool.Enqueue(transcribe.Job{Key: key, Force: force})
			},
			Log: mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer sub.Close()
	}

	// Metrics: counters register themselves, live gauges need the collector
	prometheus.MustRegister(metrics.NewCollector(db, liveStats{pool: pool, bus: bus}))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Services{
		DB:      db,
		Syncer:  syncer,
		Watcher: watcher,
		Bus:     bus,
		Pool:    pool,
		MQTT:    sub,
	}, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("lectern stopped")
}
