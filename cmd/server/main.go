package main

import (
	"alcyxob/workout-planner/internal/app"
	"alcyxob/workout-planner/internal/config"
	"alcyxob/workout-planner/internal/logging"
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// @title Workout Planner API
// @version 1.0
// @description Training plans, their calendar, workout sessions and progress.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("could not load config: %s", err)
	}
	// --- Logging ---
	logging.Setup(logging.SetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})
	// gin's debug route dump only when we are logging at debug or trace
	if logging.GetLevel(cfg.Log.Level) < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("starting workout planner server...")

	// --- Dependencies ---
	ctx := context.Background()
	// Connects the database (indexes included), S3 when configured, cache and services
	application, err := app.New(ctx, cfg, "server")
	if err != nil {
		log.Fatalf("could not initialize: %s", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Errorf("failed to close resources: %s", err)
		}
	}()

	// --- Start HTTP Server ---
	server := application.Server() // router with /metrics, fixed read/write timeouts
	go func() {
		log.Infof(" > server listening on: [%s]", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe error: %s", err)
		}
	}()

	// --- Graceful Shutdown ---
	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	// Give in-flight requests 5 seconds to finish
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("server forced to shutdown: %s", err)
	}
	log.Info("server exiting")
}
