package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/app"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/config"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/database"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start payment service: %v", err)
	}
	logger := a.Logger

	if cfg.AppEnv != "production" {
		if err := database.Migrate(a.DB); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
	}

	a.StartBackground(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("BECE payment service started", zap.String("port", cfg.Port))
	<-quit
	logger.Info("Shutting down payment service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()
	a.Close()
	logger.Info("Server exited cleanly")
}
