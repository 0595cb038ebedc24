package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"portwatch/internal/config"
	"portwatch/internal/httpapi"
	"portwatch/internal/httpapi/middleware"
	"portwatch/internal/logging"
	"portwatch/internal/probe"
	"portwatch/internal/repo"
	"portwatch/internal/repo/memory"
	"portwatch/internal/repo/postgres"
	"portwatch/internal/scheduler"
	"portwatch/internal/stats"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		targets  repo.TargetStore
		results  repo.ResultStore
		settings repo.SettingStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db_connect_error", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("db_schema_error", zap.Error(err))
		}
		targets, results, settings = pg, pg, pg
		logger.Info("store_postgres")
	} else {
		m := memory.New()
		targets, results, settings = m, m, m
		logger.Info("store_memory")
	}

	checker := probe.NewTCPChecker(cfg.ProbeTimeout)
	prober := probe.NewProber(logger, checker, cfg.ProbeConcurrency)

	sched := scheduler.New(logger, targets, results, settings, prober)
	sched.Retention = cfg.Retention()
	go sched.Run(ctx)

	api := httpapi.NewServer(logger, targets, settings, stats.NewService(targets, results))
	api.Keys = middleware.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	api.AllowedOrigins = cfg.AllowedOrigins
	api.RateLimitPerMin = cfg.RateLimitPerMin

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("api_error", zap.Error(err))
	}
}
