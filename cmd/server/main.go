package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"broadcast-playout/internal/broadcast"
	"broadcast-playout/internal/events"
	"broadcast-playout/internal/platform/config"
	"broadcast-playout/internal/platform/logger"
	"broadcast-playout/internal/platform/metrics"
	"broadcast-playout/internal/store"
	"broadcast-playout/internal/transcode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	_ = config.Load()

	cfg, err := config.Resolve(*configPath)
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Settings, log *slog.Logger) error {
	ctx := context.Background()

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeLocker)

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close event publisher", "error", err)
		}
	})

	pool, err := transcode.NewPool(cfg.TranscodeWorkers)
	if err != nil {
		return err
	}
	closers = append(closers, pool.Release)

	engine := transcode.NewFFmpeg(transcode.Config{
		FFmpegPath:      cfg.FFmpegPath,
		FFprobePath:     cfg.FFprobePath,
		StreamsDir:      cfg.StreamsDir,
		SegmentDuration: cfg.SegmentDuration,
		Timeout:         cfg.TranscodeTimeout,
	}, transcode.ExecRunner{}, log)

	met := metrics.New()
	svc := broadcast.NewService(st, locker, engine, pool, broadcast.Options{
		Logger:   log,
		Metrics:  met,
		Events:   publisher,
		Location: loc,
	})
	if err := svc.Init(ctx); err != nil {
		return fmt.Errorf("initialise collections: %w", err)
	}
	h := broadcast.NewHandler(svc, log, broadcast.UploadConfig{
		Dir:      cfg.UploadsDir,
		MaxBytes: cfg.MaxUploadBytes,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", met.Handler(func() { svc.RefreshGauges(context.Background()) }))
	r.Handle("/streams/*", http.StripPrefix("/streams", broadcast.StreamFiles(cfg.StreamsDir)))
	h.Routes(r)

	addr := ":" + cfg.Port
	// No write timeout: uploads block until transcoding finishes.
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"streams_dir", cfg.StreamsDir,
		"segment_duration", cfg.SegmentDuration,
		"transcode_workers", cfg.TranscodeWorkers,
		"transcode_timeout", cfg.TranscodeTimeout.String(),
		"timezone", loc.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Settings) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewInMemoryStore(), func() {}, nil
	case "postgres":
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}

func openLocker(ctx context.Context, cfg config.Settings, log *slog.Logger) (store.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return store.NewLocalLocker(), func() {}, nil
	}
	rl, err := store.NewRedisLocker(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, err
	}
	return rl, func() { _ = rl.Close() }, nil
}

func openPublisher(cfg config.Settings) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}, nil
	}
	k, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}
	return k, nil
}
