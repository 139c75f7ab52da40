package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal/config"
	"github.com/scythe504/drawpool-backend/internal/game"
	"github.com/scythe504/drawpool-backend/internal/roomstate"
	"github.com/scythe504/drawpool-backend/internal/server"
	"github.com/scythe504/drawpool-backend/internal/store"
)

const (
	storeConnectDeadline = time.Minute
	janitorInterval      = 5 * time.Minute
	shutdownTimeout      = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupZerolog(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := store.Open(ctx, cfg.StoreURL, cfg.StoreToken, storeConnectDeadline)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open room state store")
	}
	defer kv.Close()

	go store.RunJanitor(ctx, kv, janitorInterval)

	coordinator := game.NewCoordinator(
		roomstate.NewRepository(kv, cfg.RoomTTL, time.Now),
		game.NewSessions(),
		game.Options{
			MaxMessageBytes: cfg.MaxMessageBytes,
			EventsPerSecond: cfg.EventsPerSecond,
			CheckOrigin:     server.OriginChecker(cfg.AllowedOrigins),
		},
	)

	srv := server.NewServer(cfg.Addr(), cfg.AllowedOrigins, coordinator)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	coordinator.Shutdown()
}

func setupZerolog(cfg config.Config) {
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.LevelFieldName = "severity"
	}
}
