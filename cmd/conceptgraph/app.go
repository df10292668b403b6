package conceptgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/soundprediction/conceptgraph"
	"github.com/soundprediction/conceptgraph/pkg/alert"
	"github.com/soundprediction/conceptgraph/pkg/config"
	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/extractor"
	cglogger "github.com/soundprediction/conceptgraph/pkg/logger"
	"github.com/soundprediction/conceptgraph/pkg/metrics"
	"github.com/soundprediction/conceptgraph/pkg/nlp"
	"github.com/soundprediction/conceptgraph/pkg/scheduler"
	"github.com/soundprediction/conceptgraph/pkg/telemetry"
	"github.com/spf13/cobra"
)

// app holds everything a command needs and what must be closed afterwards.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *conceptgraph.Client
	metrics *metrics.Collector

	closers []func() error
}

// newLogger builds the process logger. Error records are also written to
// parquet when a telemetry path is configured.
func newLogger(cfg *config.Config) (*slog.Logger, func() error) {
	handler := cglogger.NewHandler(os.Stderr, cfg.Log.Format, cglogger.ParseLevel(cfg.Log.Level))
	closeFn := func() error { return nil }

	if cfg.Telemetry.ParquetPath != "" {
		ph, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			slog.New(handler).Warn("Error tracking disabled", "error", err)
		} else {
			handler = ph
			closeFn = ph.Close
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn
}

// newApp wires the driver, language model, extractors, scheduler lock and
// metrics into a Client.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger, closeLogger := newLogger(cfg)
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, closeLogger)
	defer func() {
		if err != nil {
			_ = a.closeResources()
		}
	}()

	drv, err := driver.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}
	logger.Info("Database ready", "driver", drv.Provider())

	llm, err := nlp.New(ctx, cfg.NLP, nlp.Options{
		CircuitBreaker: cfg.CircuitBreaker,
		Alerter:        alert.New(cfg.Alert, logger),
		Logger:         logger,
		TokenUsageDir:  cfg.Telemetry.ParquetPath,
	})
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("failed to create language model client: %w", err)
	}
	a.closers = append(a.closers, llm.Close)

	concepts := extractor.NewLLMConceptExtractor(llm,
		extractor.WithTimeout(cfg.Pipeline.ExtractionTimeout),
		extractor.WithMaxChars(cfg.Pipeline.MaxTextChars),
		extractor.WithLogger(logger),
	)
	text := extractor.NewFileTextExtractor(cfg.Pipeline.MaxFileBytes)

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewCollector("conceptgraph")
	}

	var locker scheduler.Locker
	if cfg.Scheduler.RedisAddr != "" {
		rl, err := scheduler.DialRedisLocker(ctx, cfg.Scheduler.RedisAddr, cfg.Scheduler.RedisPassword, cfg.Scheduler.RedisDB, cfg.Scheduler.LockTTL)
		if err != nil {
			_ = drv.Close()
			return nil, fmt.Errorf("failed to connect batch lock: %w", err)
		}
		locker = rl
		a.closers = append(a.closers, rl.Close)
		logger.Info("Distributed batch lock enabled", "redis_addr", cfg.Scheduler.RedisAddr)
	}

	client, err := conceptgraph.NewClient(drv, text, concepts, &conceptgraph.Config{
		UploadDir:      cfg.Pipeline.UploadDir,
		KeepUploads:    cfg.Pipeline.KeepUploads,
		MatchThreshold: cfg.Pipeline.MatchThreshold,
		BatchDedupe:    cfg.Pipeline.BatchDedupe,
		MaxConcurrent:  cfg.Scheduler.MaxConcurrent,
		Locker:         locker,
		Metrics:        a.metrics,
	}, logger)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}

// Close waits for scheduled batches, closes the client and releases the
// remaining resources in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.client != nil {
		if err := a.client.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// loadConfig loads, applies flag overrides and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
