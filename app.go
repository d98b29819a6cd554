package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bid-analytics/config"
	"bid-analytics/fetch"
	"bid-analytics/models"
	"bid-analytics/services"
	"bid-analytics/storage"
	"bid-analytics/utils"
)

// app wires the pipeline components from configuration.
type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	loader    *services.Loader
	processor *services.Processor
	registry  *prometheus.Registry
	snapshot  storage.SnapshotStore

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	router := fetch.NewRouter()
	httpFetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchMaxAttempts, logger)
	router.Handle("http", httpFetcher)
	router.Handle("https", httpFetcher)
	browser := fetch.NewBrowserFetcher(cfg.ChromeBin, cfg.FetchTimeout, cfg.FetchMaxAttempts, logger)
	router.Handle(fetch.BrowserPrefix+"http", browser)
	router.Handle(fetch.BrowserPrefix+"https", browser)
	if cfg.S3Enabled() {
		s3, err := fetch.NewS3Fetcher(fetch.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		router.Handle("s3", s3)
	}

	metrics, err := services.NewMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	opts := []services.LoaderOption{services.WithMetrics(metrics)}
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pub, err := services.NewRedisPublisher(pingCtx, cfg.RedisAddr, cfg.RedisChannel, logger)
		cancel()
		if err != nil {
			logger.Warn("Redis event publishing disabled: %v", err)
		} else {
			opts = append(opts, services.WithObserver(pub))
			a.closers = append(a.closers, pub.Close)
			logger.Info("Publishing loader events to redis channel %s", cfg.RedisChannel)
		}
	}

	a.processor = services.NewProcessor(logger, cfg.PriceUnit)
	a.loader = services.NewLoader(
		router,
		services.NewValidator(nil),
		a.processor,
		logger,
		opts...,
	)

	if cfg.PersistSnapshots {
		pg, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Warn("Continuing without snapshot persistence")
		} else {
			a.snapshot = pg
			a.closers = append(a.closers, pg.Close)
		}
	}

	return a, nil
}

// loadWithFallback loads sourceID and, when the load fails, serves the
// loader's cached copy or else the stored snapshot.
func (a *app) loadWithFallback(ctx context.Context, sourceID string, useCache bool) ([]models.ProcessedRecord, error) {
	records, err := a.loader.Load(ctx, sourceID, useCache)
	if err == nil {
		if a.snapshot != nil {
			if werr := a.snapshot.Write(sourceID, records); werr != nil {
				a.logger.Error("PostgreSQL snapshot write failed: %v", werr)
			} else {
				a.logger.Info("Snapshot of %s stored in PostgreSQL (table: bids)", sourceID)
			}
		}
		return records, nil
	}

	if cached, ok := a.loader.Cached(sourceID); ok {
		a.logger.Warn("Load failed (%v); using cached dataset of %d records", err, len(cached))
		return cached, nil
	}

	if a.snapshot == nil {
		return nil, err
	}
	stored, ferr := a.snapshot.FetchAll(sourceID)
	if ferr != nil || len(stored) == 0 {
		a.logger.Error("No stored snapshot to fall back to: %v", ferr)
		return nil, err
	}
	// Re-derive display fields so the snapshot follows the current PRICE_UNIT.
	stored, perr := a.processor.Reprocess(stored)
	if perr != nil {
		a.logger.Error("Stored snapshot of %s is unusable: %v", sourceID, perr)
		return nil, err
	}
	a.logger.Warn("Load failed (%v); using stored snapshot of %d records", err, len(stored))
	return stored, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close: %v", err)
		}
	}
}
