package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/bootstrap"
	"github.com/rl1809/inventory-reservation/internal/config"
	"github.com/rl1809/inventory-reservation/internal/observability"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Service.Name, cfg.Service.Env, cfg.Service.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("bootstrap_failed", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close_failed", zap.Error(err))
		}
	}()

	logger.Info("service_starting",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("grpc_addr", cfg.GRPC.Addr),
		zap.String("store", cfg.Store.Driver),
		zap.String("lock", cfg.Lock.Driver),
	)
	if err := app.Run(ctx); err != nil {
		logger.Error("service_stopped", zap.Error(err))
		return
	}
	logger.Info("service_stopped")
}
