// Command collector runs a single probing round and exits: fetch active
// targets, probe them, persist the results. Meant for cron-style setups that
// do not keep the api daemon running.
package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"portwatch/internal/config"
	"portwatch/internal/logging"
	"portwatch/internal/probe"
	"portwatch/internal/repo/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatal("collector_requires_database_url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db_connect_error", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Fatal("db_schema_error", zap.Error(err))
	}

	targets, err := pg.ListActive(ctx)
	if err != nil {
		logger.Fatal("target_snapshot_error", zap.Error(err))
	}
	if len(targets) == 0 {
		logger.Warn("no_active_targets")
		return
	}

	checker := probe.NewTCPChecker(cfg.ProbeTimeout)
	prober := probe.NewProber(logger, checker, cfg.ProbeConcurrency)

	start := time.Now()
	results := prober.Probe(ctx, targets)

	var successful int
	for _, r := range results {
		if r.IsSuccessful {
			successful++
		}
	}

	if err := pg.Append(ctx, results); err != nil {
		logger.Fatal("append_error", zap.Error(err))
	}
	logger.Info("round_complete",
		zap.Int("targets", len(targets)),
		zap.Int("successful", successful),
		zap.Duration("took", time.Since(start)),
	)
}
