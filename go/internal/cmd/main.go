package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/contest/gateway"
	"github.com/keyduel/keyduel/go/internal/contest/stream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	streamConfig := stream.DefaultConfig()
	streamConfig.URL = natsURL
	publisher, err := stream.NewPublisher(streamConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()

	services := setupServices(db, publisher, config)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConsumerConfig.URL = natsURL
	gatewayService, err := gateway.NewService(gatewayConfig, services.Contests)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.Contests.Start(ctx)
	if err := services.Settler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start wager settler")
	}

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	server := setupServer(services, gatewayService)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	if err := services.Settler.Stop(); err != nil {
		log.Warn().Err(err).Msg("settler stop")
	}
	time.Sleep(time.Second)

	log.Info().Msg("server shutdown complete")
}
