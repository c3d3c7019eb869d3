package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mnemo-dev/mnemo/internal/buildconfig"
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/service"
	"github.com/mnemo-dev/mnemo/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("mnemod starting",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()))

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if stats, err := store.NewMemoryStore(db).Stats(context.Background()); err == nil {
		logger.Info("database ready",
			zap.String("path", cfg.DBPath),
			zap.Int("memories", stats.Total),
			zap.Int("archived", stats.Archived))
	} else {
		logger.Warn("failed to read store stats", zap.Error(err))
	}

	engine := service.NewEngine(db, cfg, logger)
	engine.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	engine.Stop()
	logger.Info("stopped")
}

func newLogger(level string) *zap.Logger {
	zapLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
