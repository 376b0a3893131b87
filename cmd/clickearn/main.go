// Package main is the entry point for the clickearn console.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"clickearn/internal/app"
	"clickearn/internal/config"
	"clickearn/internal/console"
	"clickearn/internal/handler"
	"clickearn/internal/pkg/kv"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Configuration loaded successfully")

	// Cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage
	store, err := kv.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	out := console.NewOutput(os.Stdout)

	// Initialize the controller
	a, err := app.New(&app.Dependencies{
		Config:  cfg,
		Store:   store,
		OnDwell: handler.DwellNotifier(out),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create app")
		return
	}
	defer a.Close()

	c, err := console.New(&console.Dependencies{
		App:         a,
		Out:         out,
		In:          os.Stdin,
		HistoryFile: cfg.Console.HistoryFile,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create console")
		return
	}

	interactive := console.IsTerminal(os.Stdin)
	log.Debug().Bool("interactive", interactive).Msg("Console starting")

	if err := c.Run(ctx, interactive); err != nil {
		log.Error().Err(err).Msg("Console stopped with error")
		return
	}
	log.Info().Msg("Bye")
}
