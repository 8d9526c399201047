package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("weather-timeline failed")
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "weather-timeline",
		Short:         "Hourly weather timeline reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to a .env file (default .env)")

	rootCmd.AddCommand(
		serveCommand(&envFile),
		reportCommand(&envFile),
	)
	return rootCmd
}
