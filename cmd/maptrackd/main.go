// Package main wires together the tracking service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/api"
	"github.com/maptrack/maptrack/internal/clock/system"
	"github.com/maptrack/maptrack/internal/config"
	"github.com/maptrack/maptrack/internal/extractor"
	"github.com/maptrack/maptrack/internal/geo/geocode"
	"github.com/maptrack/maptrack/internal/logging"
	"github.com/maptrack/maptrack/internal/messenger"
	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/notify"
	"github.com/maptrack/maptrack/internal/schedule"
	"github.com/maptrack/maptrack/internal/service"
	"github.com/maptrack/maptrack/internal/store"
	"github.com/maptrack/maptrack/internal/tracking"
	"github.com/maptrack/maptrack/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	stores, err := service.OpenStores(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	clock := system.New()

	geocache, err := store.NewFile[geocode.Entry](filepath.Join(cfg.Storage.Dir, "geocache.json"))
	if err != nil {
		return fmt.Errorf("open geocache: %w", err)
	}
	provider := geocode.NewNominatim(geocode.NominatimConfig{
		BaseURL:   cfg.Geocoding.BaseURL,
		UserAgent: cfg.Geocoding.UserAgent,
		Timeout:   time.Duration(cfg.Geocoding.TimeoutSeconds) * time.Second,
		QPS:       cfg.Geocoding.QPS,
	})
	resolver := geocode.NewResolver(geocache, provider, clock, cfg.GeocodeTTL(), logger.Named("geocode"))

	engine, err := extractor.New(extractor.Config{
		TrackingURL:      cfg.Extractor.TrackingURL,
		ContractEndpoint: cfg.Extractor.ContractEndpoint,
		UserAgent:        cfg.Extractor.UserAgent,
		MaxParallel:      cfg.Extractor.MaxParallel,
		SessionTimeout:   time.Duration(cfg.Extractor.SessionTimeoutSec) * time.Second,
		InterceptWindow:  time.Duration(cfg.Extractor.InterceptWindowSec) * time.Second,
		ScreenshotsDir:   cfg.Extractor.ScreenshotsDir,
	}, logger.Named("extractor"))
	if err != nil {
		return fmt.Errorf("init extraction engine: %w", err)
	}
	defer engine.Close()

	tracker := service.NewTracker(engine, resolver, stores, logger.Named("tracker"))

	sender := messenger.NewRetrying(messenger.NewMemory(logger.Named("outbox")), logger.Named("messenger"))
	pool := worker.NewPool(cfg.Tracking.Workers)
	dispatcher := notify.NewDispatcher(ctx, tracker, sender, pool, logger.Named("notify"))

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	scheduler := schedule.NewCronScheduler(loc, logger.Named("cron"))
	defer scheduler.Stop()

	subs, err := store.NewFile[tracking.Subscription](filepath.Join(cfg.Storage.Dir, "schedule.json"))
	if err != nil {
		return fmt.Errorf("open schedule store: %w", err)
	}
	registry := schedule.NewRegistry(subs, scheduler, dispatcher.Fire, logger.Named("schedule"))
	if err := registry.Materialize(); err != nil {
		return fmt.Errorf("replay schedules: %w", err)
	}

	if count, err := stores.SubscriberCount(); err == nil {
		metrics.ActiveSubscribers.Set(float64(count))
	} else {
		logger.Warn("seeding subscriber gauge failed", zap.Error(err))
	}

	apiServer := api.NewServer(tracker, registry, resolver, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	pool.Wait()
	logger.Info("shutdown complete")
	return nil
}
