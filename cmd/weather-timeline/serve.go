package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-timeline/internal/api/http"
	"github.com/i474232898/weather-timeline/internal/observability"
	"github.com/i474232898/weather-timeline/internal/scheduler"
)

func serveCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP report API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*envFile)
		},
	}
}

func serve(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	comps, err := buildComponents(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer comps.Close()

	// Keeps the rolling lightning feed warm in the cache.
	var refresher scheduler.Refresher
	if comps.lightning != nil {
		refresher = comps.lightning
	}
	sched := scheduler.New(refresher, cfg.LightningRefresh, cfg.HTTPTimeout)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-timeline",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * time.Minute,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, comps.service, comps.renderer, httpapi.Options{
		Zone:            cfg.Zone,
		AllowReanalysis: cfg.ReanalysisFallback,
		WarningsEnabled: cfg.WarningsEnabled,
		RequestTimeout:  90 * time.Second,
		BaseContext:     ctx,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	return nil
}
