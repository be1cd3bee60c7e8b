// Package main provides the walksim binary that runs a batch of seeded random
// walks and writes a summary report to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/walksim/internal/config"
	"github.com/cory-johannsen/walksim/internal/game/batch"
	"github.com/cory-johannsen/walksim/internal/game/walk"
	"github.com/cory-johannsen/walksim/internal/observability"
	"github.com/cory-johannsen/walksim/internal/report"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and environment only")
	trials := flag.Int("trials", 0, "override batch.trials when > 0")
	strategy := flag.String("strategy", "", "override batch.strategy: fixed, derived, or unseeded")
	bucket := flag.Int("bucket", 10, "final position histogram bucket width; 0 = no histogram")
	logFile := flag.String("log-file", "", "append logs to this file instead of stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	seedStrategy, err := applyOverrides(&cfg, *trials, *strategy)
	if err != nil {
		log.Fatalf("applying flags: %v", err)
	}

	logger, closeLog, err := newLogger(cfg.Logging, *logFile)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer closeLog()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := walk.NewSimulator(logger)
	agg := batch.NewAggregator(sim, logger, cfg.Batch.Options())

	res, err := agg.RunBatch(ctx, cfg.Walk.ToWalk(), cfg.Batch.Trials, seedStrategy)
	if err != nil {
		logger.Fatal("running batch", zap.Error(err))
	}

	if err := report.Write(os.Stdout, report.Summarize(res, *bucket), cfg.Report.Format); err != nil {
		logger.Fatal("writing report", zap.Error(err))
	}

	logger.Info("walksim finished",
		zap.String("batch_id", res.ID),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// applyOverrides applies the -trials and -strategy flags to cfg and returns
// the resulting seed strategy.
//
// Postcondition: trials <= 0 and an empty strategy leave cfg unchanged; an
// unknown strategy returns an error and leaves cfg unchanged.
func applyOverrides(cfg *config.Config, trials int, strategy string) (batch.SeedStrategy, error) {
	name := cfg.Batch.Strategy
	if strategy != "" {
		name = strategy
	}
	s, err := batch.ParseSeedStrategy(name)
	if err != nil {
		return 0, err
	}
	cfg.Batch.Strategy = name
	if trials > 0 {
		cfg.Batch.Trials = trials
	}
	return s, nil
}

// newLogger builds the process logger. An empty path logs to stderr;
// otherwise logs are appended to path and the returned func closes it.
func newLogger(cfg config.LoggingConfig, path string) (*zap.Logger, func() error, error) {
	if path == "" {
		logger, err := observability.NewLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return logger, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger, err := observability.NewLoggerTo(cfg, f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, f.Close, nil
}
