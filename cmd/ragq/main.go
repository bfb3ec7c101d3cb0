package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/app"
	"github.com/kailas-cloud/ragq/internal/config"
	dbRedis "github.com/kailas-cloud/ragq/internal/db/redis"
	logpkg "github.com/kailas-cloud/ragq/internal/logger"
	chiTransport "github.com/kailas-cloud/ragq/internal/transport/chi"
	"github.com/kailas-cloud/ragq/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, "ragq", cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragq API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("lookup_driver", cfg.Lookup.Driver),
	)

	// valkey and redis share the rueidis store
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		ClientName: "ragq",
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	pipeline, err := app.Build(ctx, cfg, store, app.Overrides{}, logger)
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	go func() {
		if err := pipeline.Run(ctx); err != nil {
			logger.Error("Background worker stopped", zap.Error(err))
		}
	}()

	server := chiTransport.NewServer(pipeline.Answers, pipeline.Health, logger).WithUsage(pipeline.Usage)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(cfg.Auth.APIKeys),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
