package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/config"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/mockapi"
)

func main() {
	cfg := config.LoadMockAPI()

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "campustrade-mockapi",
		Pretty:      cfg.LogPretty,
	})

	gin.SetMode(gin.ReleaseMode)

	api, err := mockapi.New(mockapi.Options{JWTSecret: cfg.JWTSecret, Seed: true}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create mock API")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info().Str("addr", cfg.Addr).
			Str("seller", mockapi.SellerEmail).
			Str("buyer", mockapi.BuyerEmail).
			Str("admin", mockapi.AdminEmail).
			Str("password", mockapi.SeedPassword).
			Msg("Starting mock API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Mock API failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down gracefully...")

	api.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down mock API")
	}

	log.Info().Msg("Server stopped")
}
