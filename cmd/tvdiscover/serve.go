package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/handsomefox/tv-discover/internal/config"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Listen port (default from PORT)")
	cobra.CheckErr(v.BindPFlag("port", serveCmd.Flags().Lookup("port")))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.New(v)
	if err != nil {
		return err
	}
	if apiKey != "" {
		cfg.TMDBAPIKey = apiKey
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, closer := logger.New(logger.Options{
		Level: level,
		JSON:  cfg.Env == config.Production,
		File:  cfg.LogFile,
	})
	defer func() {
		if err := closer.Close(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "close log file:", err)
		}
	}()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, cfg, log)
}
