package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ev-booking-gateway/config"
	"ev-booking-gateway/internal/api"
	"ev-booking-gateway/internal/bookingapi"
	"ev-booking-gateway/internal/db"
	"ev-booking-gateway/internal/flow"
	"ev-booking-gateway/internal/logging"
	"ev-booking-gateway/internal/notification"
	"ev-booking-gateway/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	if v := os.Getenv("BOOKING_API_URL"); v != "" {
		cfg.BookingAPI.BaseURL = v
	}
	if v := os.Getenv("BOOKING_API_JWT_SECRET"); v != "" {
		cfg.BookingAPI.JWTSecret = v
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)

	client, err := bookingapi.NewClient(cfg.BookingAPI, logger.Named("bookingapi"))
	if err != nil {
		logger.Fatal("failed to build booking api client", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var webpushOptions *webpush.Options
	var dispatcher api.Dispatcher
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger.Named("push"))
		pool.Start(ctx)
		dispatcher = pool
	} else {
		logger.Warn("VAPID keys are not configured, booking notifications are disabled")
	}

	flows := flow.NewRegistry(client, cfg.Flow.RequestTimeout, cfg.Flow.SessionIdle, logger.Named("flow"))
	flows.OnBooked(api.NewBookingRecorder(appStore, dispatcher, logger))

	verifier := bookingapi.NewVerifier(cfg.BookingAPI.JWTSecret)
	if verifier == nil {
		logger.Warn("no jwt secret configured, sessions are keyed by raw token")
	}

	handler := api.NewHandler(client, flows, appStore, webpushOptions, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server, verifier, logger),
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port), zap.String("backend", cfg.BookingAPI.BaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server Shutdown", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}
