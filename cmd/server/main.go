package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/api"
	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/buildconfig"
	"github.com/Harshitk-cp/wellspring/internal/config"
	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/Harshitk-cp/wellspring/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("invalid LOG_LEVEL, using info", zap.String("level", config.LogLevel()))
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting wellspring",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()))

	heuristic, err := bayes.ParseHeuristic(config.EliminationHeuristic())
	if err != nil {
		logger.Fatal("invalid ELIMINATION_HEURISTIC", zap.Error(err))
	}

	models, err := service.NewModelService(config.ModelPath(), heuristic, logger)
	if err != nil {
		logger.Fatal("failed to load model", zap.String("path", config.ModelPath()), zap.Error(err))
	}
	models.SetInterval(config.ModelReloadInterval())
	m := models.Current()
	logger.Info("model ready",
		zap.String("name", m.Name),
		zap.String("source", m.Source),
		zap.String("checksum", m.Checksum),
		zap.String("heuristic", heuristic.String()))

	ctx := context.Background()

	var assessments domain.AssessmentStore
	if dbURL := config.DatabaseURL(); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}
		logger.Info("connected to database")

		if err := store.Migrate(ctx, pool, config.MigrationsPath(), logger); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		assessments = store.NewAssessmentStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, assessment history is kept in memory")
		assessments = store.NewInMemoryAssessmentStore()
	}

	app := api.NewApp(models, assessments, api.Options{
		HistoryLimit:   config.HistoryLimit(),
		RetentionDays:  config.HistoryRetentionDays(),
		APIKey:         config.APIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, logger)

	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	app.Stop()
	logger.Info("server stopped")
}
