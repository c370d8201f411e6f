package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ecom-support/internal/adapter/api"
	"ecom-support/internal/app"
	"ecom-support/internal/config"
	"ecom-support/internal/usecase"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Observability)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Indices are built before the listener opens so no request ever sees a
	// half-loaded collection.
	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise service", zap.Error(err))
	}
	defer svc.Close()

	go svc.Warm(ctx)

	server := fiber.New(fiber.Config{
		AppName:               "E-commerce Support Assistant",
		DisableStartupMessage: cfg.IsProduction(),
	})

	handler := api.NewChatHandler(svc.Facade, svc.Limiter, usecase.Presets{
		Product: cfg.Sampling.Product,
		User:    cfg.Sampling.User,
	}, logger)
	api.SetupRouter(server, handler, api.HealthInfo{
		Version:     cfg.Version,
		Environment: cfg.Environment,
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("support assistant running",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.Environment),
		zap.String("vector_store", cfg.VectorStore.Type))
	if err := server.Listen(":" + cfg.Server.Port); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
